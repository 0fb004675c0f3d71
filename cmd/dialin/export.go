package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/dialin/internal/cli"
	"github.com/Veraticus/dialin/internal/sheets"
)

func exportCmd() *cobra.Command {
	var (
		user string
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export saved recipes to a Google Sheets brew journal",
		Long: `Write every saved recipe, with its setup and rule-based suggestion, to a
Google Sheets brew journal. The journal tab is replaced on each export.

Authenticate with a service account (sheets.service_account_path) or run
"dialin export login" once to store an OAuth token.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, _, err := openStore(ctx, cfg, user == defaultUser)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			doc, _, err := store.Load(ctx, user)
			if err != nil {
				return fmt.Errorf("failed to load document: %w", err)
			}

			rows := sheets.BuildJournalRows(*doc)
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No saved recipes to export."))
				return nil
			}

			if !yes {
				question := fmt.Sprintf("Replace the %q tab of %q with %d recipes?", cfg.Sheets.SheetTitle, cfg.Sheets.SpreadsheetName, len(rows))
				ok, confirmErr := cli.Confirm(ctx, cli.NewLineReader(cmd.InOrStdin()), cmd.OutOrStdout(), question, true)
				if confirmErr != nil {
					return confirmErr
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Export canceled."))
					return nil
				}
			}

			writer, err := sheets.NewWriter(ctx, cfg.Sheets, slog.Default())
			if err != nil {
				return err
			}

			interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
			exportCtx := interrupts.HandleInterrupts(ctx, "Export")

			bar := cli.NewProgressBar(cmd.ErrOrStderr(), sheets.JournalSize(rows), "Writing journal...")
			writer.OnProgress(func(n int) {
				if addErr := bar.Add(n); addErr != nil {
					slog.Warn("Failed to update progress bar", "error", addErr)
				}
			})

			spreadsheetID, err := writer.Write(exportCtx, user, rows)
			if err != nil {
				if interrupts.WasInterrupted() {
					return nil
				}
				return fmt.Errorf("export failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d recipes", len(rows))))
			fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("https://docs.google.com/spreadsheets/d/"+spreadsheetID))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", defaultUser, "user key whose recipes are exported")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	cmd.AddCommand(exportLoginCmd())

	return cmd
}

func exportLoginCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize Google Sheets access with OAuth",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Sheets.TokenFile == "" {
				return fmt.Errorf("sheets.token_file must be set to store the token")
			}

			if _, err := sheets.Login(cmd.Context(), cfg.Sheets, listen, slog.Default()); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Token saved to "+cfg.Sheets.TokenFile))
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8085", "loopback address for the OAuth callback")

	return cmd
}
