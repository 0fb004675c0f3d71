// Package calibration maps an extraction reading to a diagnosis using a fixed
// decision table. Evaluation is pure: no I/O, no shared state.
package calibration

import (
	"fmt"

	"github.com/Veraticus/dialin/internal/model"
)

// Target windows in seconds. Both bounds are inclusive.
var (
	EspressoWindow = model.Window{Low: 25, High: 35}
	FilterWindow   = model.Window{Low: 120, High: 150}
)

// WindowFor returns the target extraction window of a method.
func WindowFor(method model.Method) model.Window {
	if method == model.MethodFilter {
		return FilterWindow
	}
	return EspressoWindow
}

// Diagnose evaluates a reading against the decision table for its method.
// The first matching rule wins. Diagnose never panics and always returns one
// of the defined diagnosis kinds.
func Diagnose(reading model.ExtractionReading) model.Diagnosis {
	r := normalize(reading)
	w := WindowFor(r.Method)

	d := model.Diagnosis{
		Ratio:           r.Ratio(),
		Target:          w,
		Yield:           model.Round1(r.CupYield),
		SuggestedClicks: r.Clicks,
	}

	t := r.ExtractionTime
	switch {
	case r.Method == model.MethodEspresso && r.Crema == model.CremaBubbly:
		tooFresh(&d)
	case r.Taste == model.TasteBalanced && w.Contains(t):
		dialedIn(&d, r)
	case t < w.Low && r.Taste == model.TasteBitter:
		channelingConflict(&d, r)
	case t < w.Low:
		d.GrindAdjustment = -1
		underExtracted(&d, r)
	case t > w.High:
		d.GrindAdjustment = 1
		overExtracted(&d, r)
	default:
		channeling(&d, r)
	}

	d.SuggestedClicks = r.Clicks + d.GrindAdjustment
	return d
}

// normalize replaces out-of-range values so every rule sees a valid reading.
func normalize(r model.ExtractionReading) model.ExtractionReading {
	if !r.Method.Valid() {
		r.Method = model.MethodEspresso
	}
	if !r.Roast.Valid() {
		r.Roast = model.DefaultRoast
	}
	if !r.Crema.Valid() {
		r.Crema = model.DefaultCrema
	}
	if r.ExtractionTime < 0 {
		r.ExtractionTime = 0
	}
	if r.Taste == model.TasteUnknown {
		r.Taste = DeriveTaste(r.Sensory)
	}
	if r.Taste < model.TasteSour || r.Taste > model.TasteBitter {
		r.Taste = model.TasteUnknown
	}
	return r
}

// DeriveTaste folds the extended sensory ratings into the 1-3 taste scale.
// It returns TasteUnknown when no ratings were given.
func DeriveTaste(s *model.Sensory) model.Taste {
	if s.IsZero() || (s.Acidity == "" && s.Bitterness == "") {
		return model.TasteUnknown
	}
	sour := s.Acidity == model.LevelHigh
	bitter := s.Bitterness == model.LevelHigh
	switch {
	case sour && bitter:
		// Both at once is a channeling symptom, never a balanced cup.
		return model.TasteUnknown
	case sour:
		return model.TasteSour
	case bitter:
		return model.TasteBitter
	default:
		return model.TasteBalanced
	}
}

func windowLabel(w model.Window) string {
	return fmt.Sprintf("%d-%ds", w.Low, w.High)
}
