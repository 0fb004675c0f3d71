package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/dialin/internal/calibration"
	"github.com/Veraticus/dialin/internal/llm"
	"github.com/Veraticus/dialin/internal/migration"
	"github.com/Veraticus/dialin/internal/model"
	"github.com/Veraticus/dialin/internal/service"
	"github.com/Veraticus/dialin/internal/workspace"
)

type stateResponse struct {
	Document        *model.Document `json:"document"`
	Source          service.Source  `json:"source"`
	RemoteAvailable bool            `json:"remoteAvailable"`
}

type saveResponse struct {
	Source          service.Source `json:"source"`
	RemoteAvailable bool           `json:"remoteAvailable"`
}

type setupResponse struct {
	Setup model.Setup `json:"setup"`
	saveResponse
}

type activeSetupResponse struct {
	Inputs model.InputState `json:"inputs"`
	saveResponse
}

type recipeRequest struct {
	Params  *model.MethodParams `json:"params"`
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	SetupID string              `json:"setupId"`
	Method  model.Method        `json:"method"`
}

type setupRecipesResponse struct {
	Recipes []model.Recipe `json:"recipes"`
	Setup   model.Setup    `json:"setup"`
}

type recipeResponse struct {
	Recipe model.Recipe `json:"recipe"`
	saveResponse
}

type recipeDetailResponse struct {
	Diagnosis model.Diagnosis `json:"diagnosis"`
	Recipe    model.Recipe    `json:"recipe"`
	Setup     model.Setup     `json:"setup"`
}

type recipeAnalysisResponse struct {
	Analysis string `json:"analysis"`
	saveResponse
}

type recipeAnalyzeRequest struct {
	ImageParts []imagePart `json:"imageParts"`
}

func (s *Server) handleGetState(c *gin.Context) {
	doc, source, err := s.store.Load(c.Request.Context(), currentUser(c))
	if err != nil {
		s.storeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse{
		Document:        doc,
		Source:          source,
		RemoteAvailable: s.store.RemoteAvailable(),
	})
}

// handlePutState accepts a document of any schema version and stores its
// migrated form.
func (s *Server) handlePutState(c *gin.Context) {
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	doc := migration.MigrateDocument([]byte(raw))
	source, err := s.store.Save(c.Request.Context(), currentUser(c), &doc)
	if err != nil {
		s.storeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, s.saved(source))
}

func (s *Server) handleUpsertSetup(c *gin.Context) {
	var setup model.Setup
	if err := c.ShouldBindJSON(&setup); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	var stored model.Setup
	source, ok := s.mutate(c, func(doc *model.Document) error {
		var err error
		stored, err = workspace.UpsertSetup(doc, setup)
		return err
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, setupResponse{Setup: stored, saveResponse: s.saved(source)})
}

func (s *Server) handleDeleteSetup(c *gin.Context) {
	id := c.Param("id")
	source, ok := s.mutate(c, func(doc *model.Document) error {
		return workspace.DeleteSetup(doc, id)
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.saved(source))
}

func (s *Server) handleActivateSetup(c *gin.Context) {
	id := c.Param("id")
	var inputs model.InputState
	source, ok := s.mutate(c, func(doc *model.Document) error {
		if err := workspace.SetActiveSetup(doc, id); err != nil {
			return err
		}
		inputs = doc.Inputs
		return nil
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, activeSetupResponse{Inputs: inputs, saveResponse: s.saved(source)})
}

// handleSaveRecipe stores a recipe. Without params the current form state
// of the active setup is snapshotted.
func (s *Server) handleSaveRecipe(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	var stored model.Recipe
	source, ok := s.mutate(c, func(doc *model.Document) error {
		recipe := workspace.RecipeFromInputs(doc, req.Name)
		recipe.ID = req.ID
		if req.SetupID != "" {
			recipe.SetupID = req.SetupID
		}
		if req.Params != nil {
			recipe.Method = req.Method
			recipe.Params = *req.Params
		}
		var err error
		stored, err = workspace.SaveRecipe(doc, recipe, s.now())
		return err
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, recipeResponse{Recipe: stored, saveResponse: s.saved(source)})
}

// handleSetupRecipes lists the recipes saved under one setup, newest first.
func (s *Server) handleSetupRecipes(c *gin.Context) {
	doc, _, err := s.store.Load(c.Request.Context(), currentUser(c))
	if err != nil {
		s.storeFailure(c, err)
		return
	}

	id := c.Param("id")
	setup, ok := doc.FindSetup(id)
	if !ok {
		s.workspaceFailure(c, fmt.Errorf("%w: %s", workspace.ErrSetupNotFound, id))
		return
	}
	recipes := workspace.RecipesForSetup(doc, id)
	if recipes == nil {
		recipes = []model.Recipe{}
	}
	c.JSON(http.StatusOK, setupRecipesResponse{Setup: *setup, Recipes: recipes})
}

func (s *Server) handleGetRecipe(c *gin.Context) {
	doc, _, err := s.store.Load(c.Request.Context(), currentUser(c))
	if err != nil {
		s.storeFailure(c, err)
		return
	}

	recipe, setup, err := workspace.RecipeWithSetup(doc, c.Param("id"))
	if err != nil {
		s.workspaceFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, recipeDetailResponse{
		Recipe:    recipe,
		Setup:     setup,
		Diagnosis: calibration.Diagnose(recipe.Reading()),
	})
}

func (s *Server) handleDeleteRecipe(c *gin.Context) {
	id := c.Param("id")
	source, ok := s.mutate(c, func(doc *model.Document) error {
		return workspace.DeleteRecipe(doc, id)
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.saved(source))
}

// handleAnalyzeRecipe runs the AI analysis for a saved recipe and caches the
// result on it. The document is reloaded before writing so edits made while
// the analysis ran are kept.
func (s *Server) handleAnalyzeRecipe(c *gin.Context) {
	var req recipeAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	id := c.Param("id")
	doc, _, err := s.store.Load(c.Request.Context(), currentUser(c))
	if err != nil {
		s.storeFailure(c, err)
		return
	}
	recipe, setup, err := workspace.RecipeWithSetup(doc, id)
	if err != nil {
		s.workspaceFailure(c, err)
		return
	}

	in := llm.InputFromRecipe(recipe, setup)
	d := calibration.Diagnose(recipe.Reading())
	in.Diagnosis = &d

	html, ok := s.runAnalysis(c, in, req.ImageParts)
	if !ok {
		return
	}

	source, ok := s.mutate(c, func(doc *model.Document) error {
		return workspace.CacheDiagnosis(doc, id, html)
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, recipeAnalysisResponse{Analysis: html, saveResponse: s.saved(source)})
}

// mutate loads the caller's document, applies fn, and saves the result. It
// reports false when it already wrote an error response.
func (s *Server) mutate(c *gin.Context, fn func(doc *model.Document) error) (service.Source, bool) {
	ctx := c.Request.Context()
	user := currentUser(c)

	doc, _, err := s.store.Load(ctx, user)
	if err != nil {
		s.storeFailure(c, err)
		return "", false
	}
	if err := fn(doc); err != nil {
		s.workspaceFailure(c, err)
		return "", false
	}
	source, err := s.store.Save(ctx, user, doc)
	if err != nil {
		s.storeFailure(c, err)
		return "", false
	}
	return source, true
}

func (s *Server) saved(source service.Source) saveResponse {
	return saveResponse{Source: source, RemoteAvailable: s.store.RemoteAvailable()}
}

func (s *Server) storeFailure(c *gin.Context, err error) {
	s.logger.Error("document store failed", "user", currentUser(c), "error", err)
	abortError(c, http.StatusInternalServerError, "could not access saved settings")
}

func (s *Server) workspaceFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workspace.ErrDanglingSetup):
		abortError(c, http.StatusConflict, "this recipe's setup was deleted; recreate the setup or delete the recipe")
	case errors.Is(err, workspace.ErrSetupNotFound), errors.Is(err, workspace.ErrRecipeNotFound):
		abortError(c, http.StatusNotFound, capitalize(err.Error()))
	case errors.Is(err, workspace.ErrInvalidName):
		abortError(c, http.StatusBadRequest, capitalize(err.Error()))
	default:
		s.logger.Error("workspace operation failed", "error", err)
		abortError(c, http.StatusInternalServerError, "internal error")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
