package model

import (
	"slices"
	"strings"
	"time"
)

// CurrentSchemaVersion is written alongside every persisted document.
const CurrentSchemaVersion = 2

// MethodParams is the form state for one brew method. Values are kept as the
// raw strings the form produced; ReadingFromParams turns them into numbers.
type MethodParams struct {
	Dose           string `json:"dose"`
	CupYield       string `json:"cupYield"`
	Clicks         string `json:"clicks"`
	Roast          string `json:"roast"`
	ExtractionTime string `json:"extractionTime"`
	Crema          string `json:"crema"`
	Taste          string `json:"taste"`
}

// InputState is the current nested shape of the calibration form.
type InputState struct {
	Sensory     *Sensory     `json:"sensory,omitempty"`
	Method      Method       `json:"method"`
	Machine     string       `json:"machine"`
	Grinder     string       `json:"grinder"`
	Accessories []string     `json:"accessories"`
	Espresso    MethodParams `json:"espresso"`
	Filter      MethodParams `json:"filter"`
}

// Active returns the parameter set of the selected method.
func (s InputState) Active() MethodParams {
	if s.Method == MethodFilter {
		return s.Filter
	}
	return s.Espresso
}

// Reading coerces the active parameter set into a typed reading.
func (s InputState) Reading() ExtractionReading {
	r := ReadingFromParams(s.Method, s.Active())
	if !s.Sensory.IsZero() {
		sensory := *s.Sensory
		r.Sensory = &sensory
	}
	return r
}

// Setup is a named equipment profile.
type Setup struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Machine     string   `json:"machine"`
	Grinder     string   `json:"grinder"`
	Method      Method   `json:"method"`
	Accessories []string `json:"accessories"`
}

// NormalizeAccessories trims, deduplicates and sorts accessory labels.
// Accessories have set semantics, so order is not meaningful.
func NormalizeAccessories(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" || slices.Contains(out, a) {
			continue
		}
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// SameAccessories compares two accessory lists as sets.
func SameAccessories(a, b []string) bool {
	return slices.Equal(NormalizeAccessories(a), NormalizeAccessories(b))
}

// Recipe is a saved reading tied to a setup.
type Recipe struct {
	CreatedAt   time.Time    `json:"createdAt"`
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	SetupID     string       `json:"setupId"`
	Method      Method       `json:"method"`
	AIDiagnosis string       `json:"aiDiagnosis,omitempty"`
	Params      MethodParams `json:"params"`
}

// Reading coerces the recipe snapshot into a typed reading.
func (r Recipe) Reading() ExtractionReading {
	return ReadingFromParams(r.Method, r.Params)
}

// Document is the composite per-user payload. It is always read and written
// as a whole.
type Document struct {
	ActiveSetupID string     `json:"activeSetupId"`
	Setups        []Setup    `json:"setups"`
	Recipes       []Recipe   `json:"recipes"`
	Inputs        InputState `json:"inputs"`
	SchemaVersion int        `json:"schemaVersion"`
}

// FindSetup returns the setup with the given id.
func (d *Document) FindSetup(id string) (*Setup, bool) {
	for i := range d.Setups {
		if d.Setups[i].ID == id {
			return &d.Setups[i], true
		}
	}
	return nil, false
}

// FindRecipe returns the recipe with the given id.
func (d *Document) FindRecipe(id string) (*Recipe, bool) {
	for i := range d.Recipes {
		if d.Recipes[i].ID == id {
			return &d.Recipes[i], true
		}
	}
	return nil, false
}
