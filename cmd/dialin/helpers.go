package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/dialin/internal/config"
	"github.com/Veraticus/dialin/internal/llm"
	"github.com/Veraticus/dialin/internal/service"
	"github.com/Veraticus/dialin/internal/storage"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the local database and, unless localOnly is set, the
// configured remote backend. A remote that cannot be reached or authorized
// leaves the Store local-only. The returned Store owns both.
func openStore(ctx context.Context, cfg *config.Config, localOnly bool) (*storage.Store, *storage.SQLiteStorage, error) {
	local, err := storage.NewSQLiteStorage(cfg.Storage.LocalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local database: %w", err)
	}
	if err := local.Migrate(ctx); err != nil {
		_ = local.Close()
		return nil, nil, fmt.Errorf("failed to migrate local database: %w", err)
	}

	var remote service.DocumentStore
	if !localOnly {
		remote, err = openRemote(ctx, cfg)
		if err != nil {
			slog.Warn("Remote storage unavailable, using local storage only",
				"remote", cfg.Storage.Remote, "error", err)
			remote = nil
		}
	}

	return storage.NewStore(remote, local, slog.Default()), local, nil
}

// openRemote returns a nil interface when no remote backend is configured or
// when it fails to open.
func openRemote(ctx context.Context, cfg *config.Config) (service.DocumentStore, error) {
	switch cfg.Storage.Remote {
	case config.RemoteRedis:
		r, err := storage.NewRedisStore(ctx, cfg.Storage.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return r, nil
	case config.RemoteGCS:
		g, err := storage.NewGCSStore(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, fmt.Errorf("failed to create gcs client: %w", err)
		}
		return g, nil
	default:
		return nil, nil
	}
}

func newAnalyzer(cfg *config.Config) (*llm.Analyzer, error) {
	if !cfg.AIEnabled() {
		return nil, fmt.Errorf("no API key configured for %s (set llm.api_key or DIALIN_LLM_API_KEY)", cfg.LLM.Provider)
	}
	a, err := llm.NewAnalyzer(cfg.LLM, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	return a, nil
}

// readImages loads photo files for an analysis request. The same limits
// apply as for uploaded images.
func readImages(paths []string) ([]llm.ImagePart, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	inline := make([]llm.InlineImage, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(config.ExpandPath(p))
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		inline = append(inline, llm.InlineImage{
			MimeType: http.DetectContentType(data),
			Data:     base64.StdEncoding.EncodeToString(data),
		})
	}
	return llm.DecodeImages(inline)
}
