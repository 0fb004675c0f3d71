package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dialin/internal/config"
	"github.com/Veraticus/dialin/internal/migration"
	"github.com/Veraticus/dialin/internal/service"
	"github.com/Veraticus/dialin/internal/storage"
)

func storeConfig(t *testing.T, remote string) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{
			LocalPath: filepath.Join(t.TempDir(), "dialin.db"),
			Remote:    remote,
		},
	}
}

func TestOpenStore_UnreachableRedisFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	cfg := storeConfig(t, config.RemoteRedis)
	cfg.Storage.Redis = storage.RedisOptions{Addr: "127.0.0.1:1"}

	store, local, err := openStore(ctx, cfg, false)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NotNil(t, local)
	t.Cleanup(func() { _ = store.Close() })

	assert.False(t, store.RemoteAvailable())

	doc := migration.NewDocument()
	doc.Inputs.Espresso.Dose = "19"
	src, err := store.Save(ctx, "ana", &doc)
	require.NoError(t, err)
	assert.Equal(t, service.SourceLocal, src)

	loaded, src, err := store.Load(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, service.SourceLocal, src)
	assert.Equal(t, "19", loaded.Inputs.Espresso.Dose)
}

func TestOpenStore_MissingGCSBucketFallsBackToLocal(t *testing.T) {
	cfg := storeConfig(t, config.RemoteGCS)

	store, _, err := openStore(context.Background(), cfg, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.False(t, store.RemoteAvailable())
}

func TestOpenStore_ReachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := storeConfig(t, config.RemoteRedis)
	cfg.Storage.Redis = storage.RedisOptions{Addr: mr.Addr()}

	store, _, err := openStore(context.Background(), cfg, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.True(t, store.RemoteAvailable())
}

func TestOpenStore_LocalOnlySkipsRemote(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := storeConfig(t, config.RemoteRedis)
	cfg.Storage.Redis = storage.RedisOptions{Addr: mr.Addr()}

	store, _, err := openStore(context.Background(), cfg, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.False(t, store.RemoteAvailable())
}
