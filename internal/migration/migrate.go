// Package migration normalizes stored payloads of any prior shape into the
// current model types. Migration never fails: anything it cannot read is
// replaced by defaults.
package migration

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/Veraticus/dialin/internal/model"
)

// Field defaults for the form state.
var (
	EspressoDefaults = model.MethodParams{
		Dose:           "18",
		CupYield:       "36",
		Clicks:         "8",
		Roast:          string(model.RoastMedium),
		ExtractionTime: "28",
		Crema:          string(model.CremaIdeal),
		Taste:          "2",
	}
	FilterDefaults = model.MethodParams{
		Dose:           "15",
		CupYield:       "250",
		Clicks:         "20",
		Roast:          string(model.RoastMedium),
		ExtractionTime: "135",
		Crema:          "",
		Taste:          "2",
	}
)

// flatKeys are the extraction fields older single-profile payloads kept at the
// top level. "ratio" predates cupYield.
var flatKeys = []string{"dose", "cupYield", "ratio", "clicks", "roast", "extractionTime", "crema", "taste"}

// Migrate converts a loosely typed payload into the current nested form state.
// raw may be decoded JSON, raw JSON bytes, or any value that marshals to a JSON
// object. Migrate is idempotent.
func Migrate(raw any) model.InputState {
	return migrateInputs(toObject(raw))
}

// MigrateExtraction reads a single-method extraction payload, the shape a
// client sends when it posts only the active method's fields. The method is
// taken from the payload and the other fields fall back to that method's
// defaults.
func MigrateExtraction(raw any) (model.Method, model.MethodParams) {
	m := toObject(raw)
	method := methodFrom(m["method"])
	if method == model.MethodFilter {
		return method, paramsFrom(m, FilterDefaults)
	}
	return method, paramsFrom(m, EspressoDefaults)
}

func migrateInputs(m map[string]any) model.InputState {
	s := model.InputState{
		Method:      methodFrom(m["method"]),
		Machine:     stringFrom(m["machine"]),
		Grinder:     stringFrom(m["grinder"]),
		Accessories: accessoriesFrom(m["accessories"]),
		Sensory:     sensoryFrom(m["sensory"]),
	}

	switch nested, ok := m["espresso"].(map[string]any); {
	case ok:
		s.Espresso = paramsFrom(nested, EspressoDefaults)
	case hasFlatFields(m):
		s.Espresso = paramsFrom(m, EspressoDefaults)
	default:
		s.Espresso = EspressoDefaults
	}

	if nested, ok := m["filter"].(map[string]any); ok {
		s.Filter = paramsFrom(nested, FilterDefaults)
	} else {
		s.Filter = FilterDefaults
	}
	return s
}

func hasFlatFields(m map[string]any) bool {
	for _, k := range flatKeys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// paramsFrom reads one method's fields from m, filling gaps from defaults.
func paramsFrom(m map[string]any, defaults model.MethodParams) model.MethodParams {
	p := model.MethodParams{
		Dose:           numberOr(m["dose"], defaults.Dose),
		Clicks:         numberOr(m["clicks"], defaults.Clicks),
		ExtractionTime: numberOr(m["extractionTime"], defaults.ExtractionTime),
		Roast:          defaults.Roast,
		Crema:          defaults.Crema,
		Taste:          defaults.Taste,
	}

	if r := model.Roast(strings.ToLower(stringFrom(m["roast"]))); r.Valid() {
		p.Roast = string(r)
	}
	if c := model.Crema(strings.ToLower(stringFrom(m["crema"]))); c.Valid() {
		p.Crema = string(c)
	}
	if t, err := strconv.Atoi(stringFrom(m["taste"])); err == nil && t >= int(model.TasteSour) && t <= int(model.TasteBitter) {
		p.Taste = strconv.Itoa(t)
	}

	switch {
	case stringFrom(m["cupYield"]) != "":
		p.CupYield = numberOr(m["cupYield"], defaults.CupYield)
	case stringFrom(m["ratio"]) != "":
		p.CupYield = yieldFromRatio(p.Dose, stringFrom(m["ratio"]), defaults.CupYield)
	default:
		p.CupYield = defaults.CupYield
	}
	return p
}

func yieldFromRatio(dose, ratio, fallback string) string {
	d, err := strconv.ParseFloat(dose, 64)
	if err != nil || d <= 0 {
		return fallback
	}
	r, err := strconv.ParseFloat(strings.TrimPrefix(ratio, "1:"), 64)
	if err != nil || r <= 0 {
		return fallback
	}
	return model.FormatNumber(d * r)
}

// numberOr returns v as a string when it holds a number, or fallback.
func numberOr(v any, fallback string) string {
	s := stringFrom(v)
	if s == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return s
}

func methodFrom(v any) model.Method {
	if m := model.Method(strings.ToLower(stringFrom(v))); m.Valid() {
		return m
	}
	return model.MethodEspresso
}

// stringFrom stringifies scalar JSON values. Everything else yields "".
func stringFrom(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return ""
}

func accessoriesFrom(v any) []string {
	out := []string{}
	switch x := v.(type) {
	case string:
		for _, part := range strings.Split(x, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case []string:
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func sensoryFrom(v any) *model.Sensory {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	level := func(key string) model.Level {
		if l := model.Level(strings.ToLower(stringFrom(m[key]))); l.Valid() {
			return l
		}
		return ""
	}
	s := &model.Sensory{
		Acidity:      level("acidity"),
		Bitterness:   level("bitterness"),
		Body:         level("body"),
		CremaColor:   stringFrom(m["cremaColor"]),
		CremaDensity: stringFrom(m["cremaDensity"]),
	}
	if s.IsZero() {
		return nil
	}
	return s
}

// toObject coerces raw into a JSON object. Non-objects yield nil.
func toObject(raw any) map[string]any {
	var data []byte
	switch x := raw.(type) {
	case nil:
		return nil
	case map[string]any:
		return x
	case []byte:
		data = x
	case json.RawMessage:
		data = x
	case string:
		data = []byte(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil
		}
		data = b
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
