package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/dialin/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the calibration API.

Without auth.jwt_secret the server runs in guest mode: every caller shares one
document, stored locally only. With a secret, state routes require a bearer
token (see "dialin token") and documents sync to the configured remote.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	guest := cfg.GuestMode()
	store, _, err := openStore(ctx, cfg, guest)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("failed to close store", "error", closeErr)
		}
	}()

	opts := server.Options{
		Store:          store,
		Logger:         slog.Default(),
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	if cfg.AIEnabled() {
		analyzer, aErr := newAnalyzer(cfg)
		if aErr != nil {
			return aErr
		}
		defer analyzer.Close()
		opts.Analyzer = analyzer
	} else {
		slog.Warn("AI analysis disabled: no API key configured", "provider", cfg.LLM.Provider)
	}

	srv, err := server.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info("starting dialin",
		"addr", cfg.Server.Addr,
		"guest_mode", guest,
		"remote", cfg.Storage.Remote,
		"remote_available", store.RemoteAvailable(),
		"ai", cfg.AIEnabled())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		// Ends when Run fails or the signal context is done.
		<-gctx.Done()
		if ctx.Err() != nil {
			slog.Info("received shutdown signal, draining requests")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("dialin stopped")
	return nil
}
