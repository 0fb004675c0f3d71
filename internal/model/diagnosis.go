package model

// DiagnosisKind identifies which rule of the calibration table matched.
type DiagnosisKind string

// Diagnosis kinds, in rule precedence order.
const (
	KindTooFresh           DiagnosisKind = "too_fresh"
	KindDialedIn           DiagnosisKind = "dialed_in"
	KindChannelingConflict DiagnosisKind = "channeling_conflict"
	KindUnderExtracted     DiagnosisKind = "under_extracted"
	KindOverExtracted      DiagnosisKind = "over_extracted"
	KindChanneling         DiagnosisKind = "channeling"
)

// Window is an inclusive target range of extraction seconds.
type Window struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Contains reports whether seconds lies inside the window, bounds included.
func (w Window) Contains(seconds int) bool {
	return seconds >= w.Low && seconds <= w.High
}

// Diagnosis is the derived result of evaluating a reading.
type Diagnosis struct {
	Kind            DiagnosisKind `json:"kind"`
	Title           string        `json:"title"`
	Text            string        `json:"text"`
	Items           []string      `json:"items"`
	Ratio           Ratio         `json:"ratio"`
	Target          Window        `json:"target"`
	Yield           float64       `json:"yield"`
	GrindAdjustment int           `json:"grindAdjustment"`
	SuggestedClicks int           `json:"suggestedClicks"`
}
