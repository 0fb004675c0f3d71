package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dialin/internal/model"
)

func TestRenderDiagnosis(t *testing.T) {
	d := model.Diagnosis{
		Kind:            model.KindUnderExtracted,
		Title:           "Under-extracted",
		Text:            "Shot ran fast.",
		Items:           []string{"Grind finer"},
		Ratio:           model.ComputeRatio(18, 36),
		Target:          model.Window{Low: 25, High: 35},
		Yield:           36,
		GrindAdjustment: -2,
		SuggestedClicks: 6,
	}

	out := RenderDiagnosis(d)
	assert.Contains(t, out, "Under-extracted")
	assert.Contains(t, out, "Grind finer")
	assert.Contains(t, out, "Target 25-35 s")
	assert.Contains(t, out, "try 6 clicks")
}

func TestSuggestion(t *testing.T) {
	assert.Equal(t, "Grind finer: try 6 clicks", suggestion(model.Diagnosis{GrindAdjustment: -2, SuggestedClicks: 6}))
	assert.Equal(t, "Grind coarser: try 10 clicks", suggestion(model.Diagnosis{GrindAdjustment: 2, SuggestedClicks: 10}))
	assert.Equal(t, "Keep the grind at 8 clicks", suggestion(model.Diagnosis{SuggestedClicks: 8}))
}

func TestRenderDocument(t *testing.T) {
	doc := model.Document{
		SchemaVersion: model.CurrentSchemaVersion,
		ActiveSetupID: "s1",
		Inputs:        model.InputState{Method: model.MethodEspresso, Machine: "Gaggia"},
		Setups:        []model.Setup{{ID: "s1", Name: "Home", Method: model.MethodEspresso, Machine: "Gaggia"}},
		Recipes: []model.Recipe{
			{ID: "r1", Name: "Morning", SetupID: "s1", CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), AIDiagnosis: "<p>ok</p>"},
			{ID: "r2", Name: "Orphan", SetupID: "gone", CreatedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
		},
	}

	out := RenderDocument(doc, "local")
	assert.Contains(t, out, "Gaggia")
	assert.Contains(t, out, "Setups (1)")
	assert.Contains(t, out, "Recipes (2)")
	assert.Contains(t, out, "2026-03-01")
	assert.Contains(t, out, "(setup missing)")
	assert.Contains(t, out, RobotIcon)
}

func TestRenderReading(t *testing.T) {
	espresso := RenderReading(model.ExtractionReading{Method: model.MethodEspresso, Dose: 18, CupYield: 36, Clicks: 8, Crema: model.CremaPale, Taste: model.TasteSour})
	assert.Contains(t, espresso, "pale")
	assert.Contains(t, espresso, "1 (sour)")

	filter := RenderReading(model.ExtractionReading{Method: model.MethodFilter, Dose: 15, CupYield: 250, Taste: model.TasteBalanced})
	assert.NotContains(t, filter, "Crema")
	assert.Contains(t, filter, "2 (balanced)")
}

func TestNewProgressBar(t *testing.T) {
	var out bytes.Buffer
	bar := NewProgressBar(&out, 10, "Writing journal...")

	require.NoError(t, bar.Add(4))
	require.NoError(t, bar.Add(6))
	assert.True(t, bar.IsFinished())
	assert.Contains(t, out.String(), "10/10")
}
