// Package tui implements the interactive calibrate form. The diagnosis is
// recomputed on every keystroke.
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/dialin/internal/model"
)

// Run shows the calibrate form until the user quits and returns the final
// form state.
func Run(ctx context.Context, opts ...Option) (model.InputState, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := newModel(ctx, cfg)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return m.Inputs(), ctx.Err()
		}
		return m.Inputs(), fmt.Errorf("calibrate form: %w", err)
	}

	fm, ok := final.(Model)
	if !ok {
		return m.Inputs(), fmt.Errorf("calibrate form: unexpected model %T", final)
	}
	return fm.Inputs(), nil
}
