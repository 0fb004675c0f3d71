package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/dialin/internal/cli"
	"github.com/Veraticus/dialin/internal/config"
	"github.com/Veraticus/dialin/internal/migration"
	"github.com/Veraticus/dialin/internal/model"
)

func stateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and migrate stored documents",
	}

	cmd.AddCommand(stateShowCmd())
	cmd.AddCommand(stateMigrateCmd())
	cmd.AddCommand(stateListCmd())

	return cmd
}

func stateShowCmd() *cobra.Command {
	var (
		user   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a user's document",
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

			doc, source, err := store.Load(ctx, user)
			if err != nil {
				return fmt.Errorf("failed to load document: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), doc)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderDocument(*doc, string(source)))
			if !store.RemoteAvailable() && cfg.Storage.Remote != config.RemoteNone {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("Remote storage unavailable; showing the local copy."))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", defaultUser, "user key")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw document as JSON")

	return cmd
}

func stateMigrateCmd() *cobra.Command {
	var (
		file string
		user string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade a legacy JSON document to the current schema",
		Long: `Read a document in any historical shape (flat inputs, nested inputs, or a
full workspace) and print it in the current schema. With --user the result is
also saved for that user.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := migrateFile(file)
			if err != nil {
				return err
			}

			if user == "" {
				return writeJSON(cmd.OutOrStdout(), &doc)
			}

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

			source, err := store.Save(ctx, user, &doc)
			if err != nil {
				return fmt.Errorf("failed to save document: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Saved migrated document for %s (%s)", user, source)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file to migrate (- for stdin)")
	cmd.Flags().StringVar(&user, "user", "", "save the result for this user key")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func stateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List document keys in the local database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, local, err := openStore(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			keys, err := local.Keys(ctx)
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No documents stored locally."))
				return nil
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

// migrateFile decodes a JSON file of any schema version into the current
// document shape. Malformed values fall back to defaults.
func migrateFile(path string) (model.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(config.ExpandPath(path))
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.Document{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	doc := migration.MigrateDocument(raw)
	slog.Debug("migrated document", "file", path, "setups", len(doc.Setups), "recipes", len(doc.Recipes))
	return doc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
