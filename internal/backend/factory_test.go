package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/storage/jsonfile"
	"budget/internal/storage/memory"
	"budget/internal/storage/sqlite"
)

func TestBackendType(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		assert.True(t, bt.IsValid(), bt)
	}
	assert.False(t, BackendType("sheets").IsValid())
	assert.Equal(t, []string{"json", "sqlite", "memory"}, GetBackendTypeStrings())
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{Backend: "postgres"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{Backend: "sqlite", SQLitePath: "x.db", DataFile: "d.json", SeedDir: "seed"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "x.db", cfg.SQLiteDBPath)
	assert.Equal(t, "d.json", cfg.DataFile)
	assert.Equal(t, "seed", cfg.DataDirectory)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Type: JSONBackend}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Error(t, Config{Type: "nope"}.Validate())
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := NewFactory(nil)

	t.Run("json", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: JSONBackend, DataFile: filepath.Join(dir, "budget_data.json")})
		require.NoError(t, err)
		assert.IsType(t, &jsonfile.Store{}, res.Store)
		assert.NoError(t, res.Ready(ctx))
		assert.NoError(t, res.Close())
	})

	t.Run("sqlite", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "budget.db")})
		require.NoError(t, err)
		assert.IsType(t, &sqlite.Store{}, res.Store)
		assert.NoError(t, res.Ready(ctx))
		assert.NoError(t, res.Close())
	})

	t.Run("memory seeded", func(t *testing.T) {
		seed := filepath.Join(dir, "seed")
		require.NoError(t, os.MkdirAll(seed, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(seed, "seed_categories.txt"), []byte("books\n"), 0o644))

		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, DataDirectory: seed})
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, res.Store)
		assert.Nil(t, res.Ready)

		snap, err := res.Store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Books"}, snap.Categories)
	})

	t.Run("memory unseeded", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, DataDirectory: filepath.Join(dir, "missing")})
		require.NoError(t, err)
		_, err = res.Store.Load(ctx)
		assert.ErrorIs(t, err, core.ErrSnapshotNotFound)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := f.CreateBackend(ctx, Config{Type: "sheets"})
		assert.Error(t, err)
	})
}
