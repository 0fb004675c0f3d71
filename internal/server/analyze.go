package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/dialin/internal/calibration"
	"github.com/Veraticus/dialin/internal/common"
	"github.com/Veraticus/dialin/internal/llm"
	"github.com/Veraticus/dialin/internal/migration"
	"github.com/Veraticus/dialin/internal/model"
)

// statusClientClosedRequest is logged when the caller went away before the
// analysis finished. Nobody reads the response.
const statusClientClosedRequest = 499

type imagePart struct {
	InlineData llm.InlineImage `json:"inlineData"`
}

type diagnoseRequest struct {
	Inputs json.RawMessage `json:"inputs"`
}

type diagnoseResponse struct {
	Diagnosis model.Diagnosis         `json:"diagnosis"`
	Reading   model.ExtractionReading `json:"reading"`
}

type analyzeRequest struct {
	Inputs      json.RawMessage `json:"inputs"`
	Extraction  json.RawMessage `json:"extraction"`
	ActiveSetup *model.Setup    `json:"activeSetup"`
	ImageParts  []imagePart     `json:"imageParts"`
}

type analyzeResponse struct {
	Analysis string `json:"analysis"`
}

func (s *Server) handleDiagnose(c *gin.Context) {
	var req diagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	reading := migration.Migrate([]byte(req.Inputs)).Reading()
	c.JSON(http.StatusOK, diagnoseResponse{
		Diagnosis: calibration.Diagnose(reading),
		Reading:   reading,
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	in := analysisInput(req)
	html, ok := s.runAnalysis(c, in, req.ImageParts)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analyzeResponse{Analysis: html})
}

// analysisInput accepts either the full form state or a single extraction
// plus the active setup. Both paths go through migration so loosely typed
// clients get the same defaults as stored documents.
func analysisInput(req analyzeRequest) llm.AnalysisInput {
	var in llm.AnalysisInput
	if len(req.Inputs) == 0 && len(req.Extraction) > 0 {
		method, params := migration.MigrateExtraction([]byte(req.Extraction))
		in = llm.AnalysisInput{Method: method, Params: params}
		if req.ActiveSetup != nil {
			in.Machine = req.ActiveSetup.Machine
			in.Grinder = req.ActiveSetup.Grinder
			in.Accessories = model.NormalizeAccessories(req.ActiveSetup.Accessories)
		}
	} else {
		in = llm.InputFromState(migration.Migrate([]byte(req.Inputs)))
	}

	d := calibration.Diagnose(model.ReadingFromParams(in.Method, in.Params))
	in.Diagnosis = &d
	return in
}

// runAnalysis validates images, registers the request as the caller's only
// in-flight analysis, and maps failures to HTTP errors. It reports false
// when a response has already been written.
func (s *Server) runAnalysis(c *gin.Context, in llm.AnalysisInput, parts []imagePart) (string, bool) {
	if s.analyzer == nil {
		abortError(c, http.StatusServiceUnavailable, common.ErrAnalysisUnavailable.Error())
		return "", false
	}

	inline := make([]llm.InlineImage, 0, len(parts))
	for _, p := range parts {
		inline = append(inline, p.InlineData)
	}
	images, err := llm.DecodeImages(inline)
	if err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return "", false
	}

	ctx, done := s.inflight.begin(c.Request.Context(), clientKey(c))
	defer done()

	html, err := s.analyzer.Analyze(ctx, in, images)
	if err == nil {
		return html, true
	}

	status, msg := s.analysisFailure(ctx, c.Request.Context(), err)
	s.logger.Warn("analysis failed", "status", status, "client", clientKey(c), "error", err)
	abortError(c, status, msg)
	return "", false
}

func (s *Server) analysisFailure(ctx, requestCtx context.Context, err error) (int, string) {
	switch {
	case errors.Is(context.Cause(ctx), common.ErrSuperseded):
		return http.StatusConflict, "analysis superseded by a newer request"
	case requestCtx.Err() != nil:
		return statusClientClosedRequest, "request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "the AI service timed out"
	default:
		return http.StatusBadGateway, common.UserMessage(err, "the AI service could not analyze this extraction")
	}
}
