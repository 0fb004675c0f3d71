package migration

import (
	"math"
	"strings"
	"time"

	"github.com/Veraticus/dialin/internal/model"
)

// NewDocument returns a fully defaulted document at the current schema version.
func NewDocument() model.Document {
	return model.Document{
		Setups:        []model.Setup{},
		Recipes:       []model.Recipe{},
		Inputs:        Migrate(nil),
		SchemaVersion: model.CurrentSchemaVersion,
	}
}

// MigrateDocument converts a stored per-user payload into the current document
// shape. Tagged documents are dispatched on their schemaVersion. Untagged
// payloads are classified once by shape: a workspace (setups or recipes) or a
// legacy flat form state.
func MigrateDocument(raw any) model.Document {
	m := toObject(raw)
	if m == nil {
		return NewDocument()
	}

	if v, ok := schemaVersion(m); ok && v >= 1 {
		return decodeWorkspace(m)
	}

	_, hasSetups := m["setups"]
	_, hasRecipes := m["recipes"]
	if hasSetups || hasRecipes {
		return decodeWorkspace(m)
	}

	doc := NewDocument()
	doc.Inputs = migrateInputs(m)
	return doc
}

func schemaVersion(m map[string]any) (int, bool) {
	f, ok := m["schemaVersion"].(float64)
	if !ok || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// decodeWorkspace reads a v1 or v2 workspace. v1 documents stored the form
// state flat at the top level next to setups and recipes; v2 nests it under
// "inputs".
func decodeWorkspace(m map[string]any) model.Document {
	doc := NewDocument()
	doc.ActiveSetupID = stringFrom(m["activeSetupId"])

	if inputs, ok := m["inputs"].(map[string]any); ok {
		doc.Inputs = migrateInputs(inputs)
	} else {
		doc.Inputs = migrateInputs(m)
	}

	if list, ok := m["setups"].([]any); ok {
		for _, item := range list {
			if obj, ok := item.(map[string]any); ok {
				doc.Setups = append(doc.Setups, setupFrom(obj))
			}
		}
	}
	if list, ok := m["recipes"].([]any); ok {
		for _, item := range list {
			if obj, ok := item.(map[string]any); ok {
				doc.Recipes = append(doc.Recipes, recipeFrom(obj))
			}
		}
	}

	if _, ok := doc.FindSetup(doc.ActiveSetupID); !ok {
		doc.ActiveSetupID = ""
	}
	return doc
}

func setupFrom(m map[string]any) model.Setup {
	return model.Setup{
		ID:          stringFrom(m["id"]),
		Name:        stringFrom(m["name"]),
		Machine:     stringFrom(m["machine"]),
		Grinder:     stringFrom(m["grinder"]),
		Method:      methodFrom(m["method"]),
		Accessories: model.NormalizeAccessories(accessoriesFrom(m["accessories"])),
	}
}

func recipeFrom(m map[string]any) model.Recipe {
	r := model.Recipe{
		ID:          stringFrom(m["id"]),
		Name:        stringFrom(m["name"]),
		SetupID:     stringFrom(m["setupId"]),
		Method:      methodFrom(m["method"]),
		CreatedAt:   timeFrom(m["createdAt"]),
		AIDiagnosis: aiDiagnosisFrom(m["aiDiagnosis"]),
	}

	defaults := EspressoDefaults
	if r.Method == model.MethodFilter {
		defaults = FilterDefaults
	}
	if params, ok := m["params"].(map[string]any); ok {
		r.Params = paramsFrom(params, defaults)
	} else {
		r.Params = paramsFrom(m, defaults)
	}
	return r
}

func aiDiagnosisFrom(v any) string {
	s, _ := v.(string)
	return s
}

// timeFrom accepts RFC 3339 strings, millisecond epochs, and
// {seconds, nanoseconds} timestamp objects. Anything else is the zero time.
func timeFrom(v any) time.Time {
	switch x := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(x)); err == nil {
			return t.UTC()
		}
	case float64:
		if x > 0 && !math.IsInf(x, 0) {
			return time.UnixMilli(int64(x)).UTC()
		}
	case map[string]any:
		sec, _ := x["seconds"].(float64)
		nsec, _ := x["nanoseconds"].(float64)
		if sec > 0 {
			return time.Unix(int64(sec), int64(nsec)).UTC()
		}
	}
	return time.Time{}
}
