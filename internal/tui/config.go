package tui

import (
	"context"

	"github.com/Veraticus/dialin/internal/llm"
	"github.com/Veraticus/dialin/internal/model"
	"github.com/Veraticus/dialin/internal/tui/themes"
)

// Analyzer produces an AI diagnosis for the current form.
type Analyzer interface {
	Analyze(ctx context.Context, in llm.AnalysisInput, images []llm.ImagePart) (string, error)
}

// SaveFunc persists the form state.
type SaveFunc func(ctx context.Context, inputs model.InputState) error

// Config holds TUI configuration.
type Config struct {
	Theme    themes.Theme
	Analyzer Analyzer
	Save     SaveFunc
	Inputs   model.InputState
	Width    int
	Height   int
	ShowHelp bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Theme:  themes.Default,
		Width:  100,
		Height: 30,
		Inputs: model.InputState{Method: model.MethodEspresso},
	}
}

// WithTheme sets the color theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithInputs seeds the form.
func WithInputs(inputs model.InputState) Option {
	return func(c *Config) {
		if !inputs.Method.Valid() {
			inputs.Method = model.MethodEspresso
		}
		c.Inputs = inputs
	}
}

// WithAnalyzer enables the AI shortcut.
func WithAnalyzer(a Analyzer) Option {
	return func(c *Config) {
		c.Analyzer = a
	}
}

// WithSave enables the save shortcut.
func WithSave(fn SaveFunc) Option {
	return func(c *Config) {
		c.Save = fn
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}
