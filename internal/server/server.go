// Package server exposes the calibration engine, AI analysis, and per-user
// document storage over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Veraticus/dialin/internal/llm"
	"github.com/Veraticus/dialin/internal/service"
)

// Analyzer produces an HTML diagnosis for one extraction.
type Analyzer interface {
	Analyze(ctx context.Context, in llm.AnalysisInput, images []llm.ImagePart) (string, error)
}

// Options configures a Server.
type Options struct {
	Store service.StateStore
	// Analyzer may be nil, in which case analysis endpoints answer 503.
	Analyzer       Analyzer
	Logger         *slog.Logger
	Now            func() time.Time
	JWTSecret      string
	AllowedOrigins []string
}

// Server is the HTTP API.
type Server struct {
	store    service.StateStore
	analyzer Analyzer
	logger   *slog.Logger
	now      func() time.Time
	inflight *inflightRegistry
	router   *gin.Engine
	secret   string
}

// New builds a Server and its routes. Without a JWT secret the server runs
// in guest mode: every caller shares the guest user key.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		store:    opts.Store,
		analyzer: opts.Analyzer,
		logger:   opts.Logger,
		now:      opts.Now,
		inflight: newInflightRegistry(),
		secret:   opts.JWTSecret,
	}
	s.router = s.routes(opts.AllowedOrigins)
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// GuestMode reports whether authentication is disabled.
func (s *Server) GuestMode() bool {
	return s.secret == ""
}

func (s *Server) routes(origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	if len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type", clientIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := r.Group("/api")
	api.Use(s.identify())
	api.POST("/diagnose", s.handleDiagnose)
	api.POST("/analyze", s.handleAnalyze)

	user := api.Group("")
	user.Use(s.requireUser())
	user.GET("/state", s.handleGetState)
	user.PUT("/state", s.handlePutState)
	user.POST("/setups", s.handleUpsertSetup)
	user.DELETE("/setups/:id", s.handleDeleteSetup)
	user.PUT("/setups/:id/active", s.handleActivateSetup)
	user.GET("/setups/:id/recipes", s.handleSetupRecipes)
	user.POST("/recipes", s.handleSaveRecipe)
	user.GET("/recipes/:id", s.handleGetRecipe)
	user.DELETE("/recipes/:id", s.handleDeleteRecipe)
	user.POST("/recipes/:id/analyze", s.handleAnalyzeRecipe)

	return r
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr, "guest_mode", s.GuestMode(), "ai_enabled", s.analyzer != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.inflight.cancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
