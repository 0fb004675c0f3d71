// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Method selects which parameter set and which rule table apply.
type Method string

// Brew methods.
const (
	MethodEspresso Method = "espresso"
	MethodFilter   Method = "filter"
)

// Valid reports whether m is a known brew method.
func (m Method) Valid() bool {
	return m == MethodEspresso || m == MethodFilter
}

// Roast is the roast level of the beans.
type Roast string

// Roast levels.
const (
	RoastLight  Roast = "light"
	RoastMedium Roast = "medium"
	RoastDark   Roast = "dark"
)

// Valid reports whether r is a known roast level.
func (r Roast) Valid() bool {
	return r == RoastLight || r == RoastMedium || r == RoastDark
}

// Crema describes the foam layer on top of an espresso.
type Crema string

// Crema observations.
const (
	CremaIdeal  Crema = "ideal"
	CremaPale   Crema = "pale"
	CremaBubbly Crema = "bubbly"
	CremaDark   Crema = "dark"
)

// Valid reports whether c is a known crema observation.
func (c Crema) Valid() bool {
	switch c {
	case CremaIdeal, CremaPale, CremaBubbly, CremaDark:
		return true
	}
	return false
}

// Taste is the ordinal taste rating of a cup.
type Taste int

// Taste ratings. TasteUnknown means the field was missing or unparseable.
const (
	TasteUnknown  Taste = 0
	TasteSour     Taste = 1
	TasteBalanced Taste = 2
	TasteBitter   Taste = 3
)

// Level is a low/medium/high sensory rating.
type Level string

// Sensory levels.
const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l == LevelLow || l == LevelMedium || l == LevelHigh
}

// Sensory holds the extended, independent sensory ratings.
type Sensory struct {
	Acidity      Level  `json:"acidity,omitempty"`
	Bitterness   Level  `json:"bitterness,omitempty"`
	Body         Level  `json:"body,omitempty"`
	CremaColor   string `json:"cremaColor,omitempty"`
	CremaDensity string `json:"cremaDensity,omitempty"`
}

// IsZero reports whether no sensory rating was given.
func (s *Sensory) IsZero() bool {
	return s == nil || (s.Acidity == "" && s.Bitterness == "" && s.Body == "" && s.CremaColor == "" && s.CremaDensity == "")
}

// Coercion defaults applied when a form field is missing or not numeric.
const (
	DefaultDose            = 14.0
	DefaultRatio           = 2.0
	DefaultClicks          = 8
	DefaultEspressoSeconds = 28
	DefaultFilterSeconds   = 135
	DefaultRoast           = RoastMedium
	DefaultCrema           = CremaIdeal
)

const ratioUndefined = "N/A"

// ExtractionReading is a typed, method-scoped brew reading.
type ExtractionReading struct {
	Sensory        *Sensory `json:"sensory,omitempty"`
	Method         Method   `json:"method"`
	Roast          Roast    `json:"roast"`
	Crema          Crema    `json:"crema"`
	Dose           float64  `json:"dose"`
	CupYield       float64  `json:"cupYield"`
	Clicks         int      `json:"clicks"`
	ExtractionTime int      `json:"extractionTime"`
	Taste          Taste    `json:"taste"`
}

// Ratio returns the brew ratio of the reading.
func (r ExtractionReading) Ratio() Ratio {
	return ComputeRatio(r.Dose, r.CupYield)
}

// Ratio is yield divided by dose, rounded to one decimal. It is undefined
// unless both dose and yield are positive.
type Ratio struct {
	Value   float64
	Defined bool
}

// ComputeRatio returns round(yield/dose, 1), or an undefined ratio when either
// input is not positive.
func ComputeRatio(dose, cupYield float64) Ratio {
	if dose <= 0 || cupYield <= 0 || math.IsNaN(dose) || math.IsNaN(cupYield) {
		return Ratio{}
	}
	return Ratio{Value: Round1(cupYield / dose), Defined: true}
}

// String renders the ratio as "1:N" or "N/A".
func (r Ratio) String() string {
	if !r.Defined {
		return ratioUndefined
	}
	return "1:" + strconv.FormatFloat(r.Value, 'f', 1, 64)
}

// MarshalText renders the ratio for JSON payloads.
func (r Ratio) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ReadingFromParams coerces form-state parameters into a typed reading.
// Missing or non-numeric fields fall back to the documented defaults.
func ReadingFromParams(method Method, p MethodParams) ExtractionReading {
	if !method.Valid() {
		method = MethodEspresso
	}

	dose := positiveFloat(p.Dose, DefaultDose)
	cupYield := positiveFloat(p.CupYield, 0)
	if cupYield == 0 {
		cupYield = Round1(dose * DefaultRatio)
	}

	defaultTime := DefaultEspressoSeconds
	if method == MethodFilter {
		defaultTime = DefaultFilterSeconds
	}

	roast := Roast(strings.ToLower(strings.TrimSpace(p.Roast)))
	if !roast.Valid() {
		roast = DefaultRoast
	}
	crema := Crema(strings.ToLower(strings.TrimSpace(p.Crema)))
	if !crema.Valid() {
		crema = DefaultCrema
	}

	taste := Taste(parseIntOr(p.Taste, 0))
	if taste < TasteSour || taste > TasteBitter {
		taste = TasteUnknown
	}

	return ExtractionReading{
		Method:         method,
		Dose:           dose,
		CupYield:       cupYield,
		Clicks:         positiveInt(p.Clicks, DefaultClicks),
		Roast:          roast,
		ExtractionTime: positiveInt(p.ExtractionTime, defaultTime),
		Crema:          crema,
		Taste:          taste,
	}
}

func positiveFloat(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func positiveInt(s string, fallback int) int {
	v := parseIntOr(s, 0)
	if v <= 0 {
		return fallback
	}
	return v
}

// parseIntOr reads s as a number truncated toward zero, so every value the
// migration accepts as numeric ("28.4", "1e3") coerces the same way. Text with
// a unit suffix such as "28s" falls back to its leading integer.
func parseIntOr(s string, fallback int) int {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
			return fallback
		}
		return int(f)
	}

	end := 0
	for end < len(s) && (s[end] == '-' && end == 0 || s[end] >= '0' && s[end] <= '9') {
		end++
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return fallback
	}
	return v
}

// FormatNumber renders a float the way form fields store it: no trailing
// zeros, at most one decimal.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(Round1(v), 'f', -1, 64)
}

// String returns a compact description used in logs.
func (r ExtractionReading) String() string {
	return fmt.Sprintf("%s dose=%.1fg yield=%.1fg clicks=%d time=%ds taste=%d crema=%s roast=%s",
		r.Method, r.Dose, r.CupYield, r.Clicks, r.ExtractionTime, r.Taste, r.Crema, r.Roast)
}
