// Package workspace edits the setups and recipes of a composite document.
// Operations mutate the document in place; persisting it is the caller's job.
package workspace

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/dialin/internal/model"
)

// Workspace errors.
var (
	ErrSetupNotFound  = errors.New("setup not found")
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrDanglingSetup means a recipe points at a setup that no longer exists.
	// The view or edit must be aborted; the reference is never repaired.
	ErrDanglingSetup = errors.New("recipe references a missing setup")
	ErrInvalidName   = errors.New("name cannot be empty")
)

// UpsertSetup inserts setup, or replaces the setup with the same id. An empty
// id gets a fresh one. Changing the equipment of the active setup also updates
// the form state. The stored copy is returned.
func UpsertSetup(doc *model.Document, setup model.Setup) (model.Setup, error) {
	setup.Name = strings.TrimSpace(setup.Name)
	if setup.Name == "" {
		return model.Setup{}, fmt.Errorf("setup: %w", ErrInvalidName)
	}
	if !setup.Method.Valid() {
		setup.Method = model.MethodEspresso
	}
	setup.Accessories = model.NormalizeAccessories(setup.Accessories)

	if setup.ID == "" {
		setup.ID = uuid.NewString()
	}
	if existing, ok := doc.FindSetup(setup.ID); ok {
		changed := equipmentChanged(*existing, setup)
		*existing = setup
		if changed && doc.ActiveSetupID == setup.ID {
			applyEquipment(doc, setup)
		}
		return setup, nil
	}
	doc.Setups = append(doc.Setups, setup)
	return setup, nil
}

// DeleteSetup removes a setup. Recipes that reference it are kept and become
// dangling. The active setup id is cleared when it pointed at the removed setup.
func DeleteSetup(doc *model.Document, id string) error {
	i := slices.IndexFunc(doc.Setups, func(s model.Setup) bool { return s.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSetupNotFound, id)
	}
	doc.Setups = slices.Delete(doc.Setups, i, i+1)
	if doc.ActiveSetupID == id {
		doc.ActiveSetupID = ""
	}
	return nil
}

// SetActiveSetup selects a setup and copies its equipment into the form state.
func SetActiveSetup(doc *model.Document, id string) error {
	setup, ok := doc.FindSetup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSetupNotFound, id)
	}
	doc.ActiveSetupID = id
	applyEquipment(doc, *setup)
	return nil
}

func applyEquipment(doc *model.Document, setup model.Setup) {
	doc.Inputs.Machine = setup.Machine
	doc.Inputs.Grinder = setup.Grinder
	doc.Inputs.Method = setup.Method
	doc.Inputs.Accessories = slices.Clone(setup.Accessories)
}

func equipmentChanged(a, b model.Setup) bool {
	return a.Machine != b.Machine ||
		a.Grinder != b.Grinder ||
		a.Method != b.Method ||
		!model.SameAccessories(a.Accessories, b.Accessories)
}

// SaveRecipe stores recipe under its setup. Missing ids and creation times are
// assigned. Saving an existing id replaces that recipe but keeps its creation
// time, and keeps its cached diagnosis only while method and params are
// unchanged. Editing a recipe whose setup was deleted yields ErrDanglingSetup.
func SaveRecipe(doc *model.Document, recipe model.Recipe, now time.Time) (model.Recipe, error) {
	recipe.Name = strings.TrimSpace(recipe.Name)
	if recipe.Name == "" {
		return model.Recipe{}, fmt.Errorf("recipe: %w", ErrInvalidName)
	}
	if !recipe.Method.Valid() {
		recipe.Method = model.MethodEspresso
	}

	var existing *model.Recipe
	if recipe.ID != "" {
		existing, _ = doc.FindRecipe(recipe.ID)
	}
	if _, ok := doc.FindSetup(recipe.SetupID); !ok {
		if existing != nil {
			return model.Recipe{}, fmt.Errorf("recipe %s: %w: %s", recipe.ID, ErrDanglingSetup, recipe.SetupID)
		}
		return model.Recipe{}, fmt.Errorf("recipe %q: %w: %s", recipe.Name, ErrSetupNotFound, recipe.SetupID)
	}

	if existing != nil {
		recipe.CreatedAt = existing.CreatedAt
		if recipe.AIDiagnosis == "" && recipe.Method == existing.Method && recipe.Params == existing.Params {
			recipe.AIDiagnosis = existing.AIDiagnosis
		}
		*existing = recipe
		return recipe, nil
	}

	if recipe.ID == "" {
		recipe.ID = uuid.NewString()
	}

	if recipe.CreatedAt.IsZero() {
		recipe.CreatedAt = now.UTC()
	}
	doc.Recipes = append(doc.Recipes, recipe)
	return recipe, nil
}

// RecipeFromInputs snapshots the active method of the form state as a recipe.
func RecipeFromInputs(doc *model.Document, name string) model.Recipe {
	return model.Recipe{
		Name:    name,
		SetupID: doc.ActiveSetupID,
		Method:  doc.Inputs.Method,
		Params:  doc.Inputs.Active(),
	}
}

// DeleteRecipe removes a recipe.
func DeleteRecipe(doc *model.Document, id string) error {
	i := slices.IndexFunc(doc.Recipes, func(r model.Recipe) bool { return r.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRecipeNotFound, id)
	}
	doc.Recipes = slices.Delete(doc.Recipes, i, i+1)
	return nil
}

// RecipeWithSetup resolves a recipe together with its setup. A missing setup
// yields ErrDanglingSetup.
func RecipeWithSetup(doc *model.Document, id string) (model.Recipe, model.Setup, error) {
	recipe, ok := doc.FindRecipe(id)
	if !ok {
		return model.Recipe{}, model.Setup{}, fmt.Errorf("%w: %s", ErrRecipeNotFound, id)
	}
	setup, ok := doc.FindSetup(recipe.SetupID)
	if !ok {
		return *recipe, model.Setup{}, fmt.Errorf("recipe %s: %w: %s", recipe.ID, ErrDanglingSetup, recipe.SetupID)
	}
	return *recipe, *setup, nil
}

// RecipesForSetup lists the recipes saved under a setup, newest first.
func RecipesForSetup(doc *model.Document, setupID string) []model.Recipe {
	var out []model.Recipe
	for _, r := range doc.Recipes {
		if r.SetupID == setupID {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Recipe) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// CacheDiagnosis stores the AI diagnosis HTML on a recipe.
func CacheDiagnosis(doc *model.Document, id, html string) error {
	recipe, ok := doc.FindRecipe(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecipeNotFound, id)
	}
	recipe.AIDiagnosis = html
	return nil
}
