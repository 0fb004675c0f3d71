package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/dialin/internal/calibration"
	"github.com/Veraticus/dialin/internal/cli"
	"github.com/Veraticus/dialin/internal/model"
	"github.com/Veraticus/dialin/internal/tui"
	"github.com/Veraticus/dialin/internal/tui/themes"
)

const defaultUser = "guest"

func calibrateCmd() *cobra.Command {
	var (
		user  string
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Interactive calibration form",
		Long: `Open a terminal form seeded with your saved inputs. The diagnosis updates as
you type. ctrl+s saves the form, ctrl+a asks the AI barista when an API key is
configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCalibrate(cmd, user, plain)
		},
	}

	cmd.Flags().StringVar(&user, "user", defaultUser, "user key whose document is edited")
	cmd.Flags().BoolVar(&plain, "plain", false, "use the colorless theme")

	return cmd
}

func runCalibrate(cmd *cobra.Command, user string, plain bool) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, _, err := openStore(ctx, cfg, user == defaultUser)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("failed to close store", "error", closeErr)
		}
	}()

	doc, source, err := store.Load(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	slog.Debug("loaded document", "user", user, "source", source)

	opts := []tui.Option{
		tui.WithInputs(doc.Inputs),
		tui.WithSave(func(ctx context.Context, inputs model.InputState) error {
			doc.Inputs = inputs
			_, saveErr := store.Save(ctx, user, doc)
			return saveErr
		}),
	}
	if plain {
		opts = append(opts, tui.WithTheme(themes.Mono))
	}
	if cfg.AIEnabled() {
		analyzer, aErr := newAnalyzer(cfg)
		if aErr != nil {
			return aErr
		}
		defer analyzer.Close()
		opts = append(opts, tui.WithAnalyzer(analyzer))
	}

	final, err := tui.Run(ctx, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderDiagnosis(calibration.Diagnose(final.Reading())))
	return nil
}
