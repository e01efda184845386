package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khata/internal/config"
	"khata/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", SeedDir: "seed"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "x.db", cfg.SQLiteDBPath)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)
	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: "postgres"}.Validate())
	assert.ElementsMatch(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}

func TestCreateMemory(t *testing.T) {
	res, err := NewFactory(nil).Create(context.Background(), Config{Type: MemoryBackend, SeedDir: t.TempDir()})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Nil(t, res.Ping)
	cats, err := res.Store.Categories(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, core.KnownCategories, cats)
}

func TestCreateSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "khata.db")
	res, err := NewFactory(nil).Create(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	defer res.Cleanup()

	require.NotNil(t, res.Ping)
	assert.NoError(t, res.Ping(context.Background()))
}
