package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dialin/internal/common"
	"github.com/Veraticus/dialin/internal/llm"
	"github.com/Veraticus/dialin/internal/model"
)

type fakeAnalyzer struct {
	err  error
	got  llm.AnalysisInput
	html string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, in llm.AnalysisInput, _ []llm.ImagePart) (string, error) {
	f.got = in
	return f.html, f.err
}

func testModel(t *testing.T, opts ...Option) Model {
	t.Helper()
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newModel(context.Background(), cfg)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func focusOn(t *testing.T, m Model, id fieldID) Model {
	t.Helper()
	for i := 0; i < int(fieldCount) && m.focus != id; i++ {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}
	require.Equal(t, id, m.focus)
	return m
}

func TestModel_DiagnosisFollowsKeystrokes(t *testing.T) {
	m := testModel(t, WithInputs(model.InputState{
		Method:   model.MethodEspresso,
		Espresso: model.MethodParams{Dose: "18", CupYield: "36", Clicks: "8", Roast: "medium", ExtractionTime: "30", Crema: "ideal"},
	}))

	assert.Equal(t, model.KindChanneling, m.Diagnosis().Kind)

	m = focusOn(t, m, fieldTaste)
	m = typeText(t, m, "2")

	assert.Equal(t, "2", m.Inputs().Espresso.Taste)
	assert.Equal(t, model.KindDialedIn, m.Diagnosis().Kind)
}

func TestModel_UnderExtractionSuggestsFiner(t *testing.T) {
	m := testModel(t, WithInputs(model.InputState{
		Method:   model.MethodEspresso,
		Espresso: model.MethodParams{Dose: "18", CupYield: "36", Clicks: "8", Taste: "1", Crema: "pale"},
	}))

	m = focusOn(t, m, fieldTime)
	m = typeText(t, m, "18")

	assert.Equal(t, model.KindUnderExtracted, m.Diagnosis().Kind)
	assert.Equal(t, 7, m.Diagnosis().SuggestedClicks)
}

func TestModel_ToggleMethod(t *testing.T) {
	m := testModel(t, WithInputs(model.InputState{
		Method:   model.MethodEspresso,
		Espresso: model.MethodParams{Dose: "18"},
		Filter:   model.MethodParams{Dose: "15", CupYield: "250", ExtractionTime: "100"},
	}))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Equal(t, model.MethodFilter, m.Inputs().Method)
	assert.Equal(t, "15", m.fields[fieldDose].Value())
	assert.NotContains(t, m.visibleFields(), fieldCrema)
	assert.Equal(t, 120, m.Diagnosis().Target.Low)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Equal(t, model.MethodEspresso, m.Inputs().Method)
	assert.Equal(t, "18", m.fields[fieldDose].Value())
	assert.Contains(t, m.visibleFields(), fieldCrema)
}

func TestModel_FocusWraps(t *testing.T) {
	m := testModel(t)
	ids := m.visibleFields()

	m = focusOn(t, m, ids[len(ids)-1])
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ids[0], m.focus)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, ids[len(ids)-1], m.focus)
}

func TestModel_EditsOnlyTouchActiveMethod(t *testing.T) {
	m := testModel(t, WithInputs(model.InputState{Method: model.MethodFilter}))

	m = focusOn(t, m, fieldClicks)
	m = typeText(t, m, "22")

	assert.Equal(t, "22", m.Inputs().Filter.Clicks)
	assert.Empty(t, m.Inputs().Espresso.Clicks)
}

func TestModel_Analyze(t *testing.T) {
	fa := &fakeAnalyzer{html: "<p>Grind finer</p>"}
	m := testModel(t, WithAnalyzer(fa), WithInputs(model.InputState{
		Method:   model.MethodEspresso,
		Machine:  "Gaggia",
		Espresso: model.MethodParams{ExtractionTime: "18", Taste: "1"},
	}))

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	assert.True(t, m.analyzing)
	assert.NotNil(t, cmd)

	msg := m.analyze()()
	assert.Equal(t, "Gaggia", fa.got.Machine)
	require.NotNil(t, fa.got.Diagnosis)
	assert.Equal(t, model.KindUnderExtracted, fa.got.Diagnosis.Kind)

	m, _ = update(t, m, msg)
	assert.False(t, m.analyzing)
	assert.Equal(t, "<p>Grind finer</p>", m.analysis)
	assert.Contains(t, m.View(), "Grind finer")
}

func TestModel_AnalyzeFailure(t *testing.T) {
	fa := &fakeAnalyzer{err: errors.New("quota exhausted")}
	m := testModel(t, WithAnalyzer(fa))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	m, _ = update(t, m, m.analyze()())

	assert.False(t, m.analyzing)
	assert.Empty(t, m.analysis)
	assert.Contains(t, m.View(), "quota exhausted")
}

func TestModel_AnalysisDroppedAfterMethodToggle(t *testing.T) {
	fa := &fakeAnalyzer{html: "<p>espresso analysis</p>"}
	m := testModel(t, WithAnalyzer(fa))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	pending := m.analyze()
	reqCtx := m.analysisCtx

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	require.Equal(t, model.MethodFilter, m.Inputs().Method)
	assert.False(t, m.analyzing)
	assert.ErrorIs(t, context.Cause(reqCtx), common.ErrSuperseded)

	m, _ = update(t, m, pending())
	assert.Empty(t, m.analysis)
	assert.NotContains(t, m.View(), "espresso analysis")
}

func TestModel_NewAnalysisSupersedesPending(t *testing.T) {
	fa := &fakeAnalyzer{html: "<p>Grind finer</p>"}
	m := testModel(t, WithAnalyzer(fa))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	first := m.analyze()
	firstCtx := m.analysisCtx

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	second := m.analyze()
	assert.ErrorIs(t, context.Cause(firstCtx), common.ErrSuperseded)
	require.NoError(t, m.analysisCtx.Err())

	m, _ = update(t, m, first())
	assert.True(t, m.analyzing)
	assert.Empty(t, m.analysis)

	m, _ = update(t, m, second())
	assert.False(t, m.analyzing)
	assert.Equal(t, "<p>Grind finer</p>", m.analysis)
}

func TestModel_EditCancelsPendingAnalysis(t *testing.T) {
	fa := &fakeAnalyzer{html: "<p>for 14 g</p>"}
	m := testModel(t, WithAnalyzer(fa))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	pending := m.analyze()

	m = typeText(t, m, "9")
	assert.False(t, m.analyzing)

	m, _ = update(t, m, pending())
	assert.Empty(t, m.analysis)
}

func TestModel_AnalyzeWithoutAnalyzer(t *testing.T) {
	m := testModel(t)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	assert.Nil(t, cmd)
	assert.False(t, m.analyzing)
	assert.Contains(t, m.View(), "not configured")
}

func TestModel_Save(t *testing.T) {
	var saved model.InputState
	m := testModel(t, WithSave(func(_ context.Context, in model.InputState) error {
		saved = in
		return nil
	}))

	m = focusOn(t, m, fieldDose)
	m = typeText(t, m, "17")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	assert.Equal(t, "17", saved.Espresso.Dose)
	assert.Contains(t, m.View(), "Saved")
}

func TestModel_Quit(t *testing.T) {
	m := testModel(t)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestModel_ViewShowsForm(t *testing.T) {
	m := testModel(t, WithInputs(model.InputState{
		Method:   model.MethodEspresso,
		Espresso: model.MethodParams{Dose: "18", CupYield: "36"},
	}))

	view := m.View()
	assert.Contains(t, view, "ESPRESSO")
	assert.Contains(t, view, "Crema")
	assert.Contains(t, view, "Ratio 1:2.0")
	assert.Contains(t, view, "Diagnosis")
}
