package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thredvault/backend/internal/config"
	"thredvault/backend/internal/store"
)

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	_, _, err := OpenStore(context.Background(), config.Config{StoreBackend: "mongo"})
	assert.Error(t, err)

	_, _, err = OpenStore(context.Background(), config.Config{StoreBackend: config.BackendPostgres})
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, _, err = OpenStore(context.Background(), config.Config{StoreBackend: config.BackendMySQL})
	assert.ErrorContains(t, err, "MYSQL_DSN")
}

func TestOpenStoreCSV(t *testing.T) {
	dir := t.TempDir()
	records, closer, err := OpenStore(context.Background(), config.Config{
		StoreBackend: config.BackendCSV,
		DataDir:      filepath.Join(dir, "data"),
		BackupDir:    filepath.Join(dir, "backups"),
	})
	require.NoError(t, err)
	assert.Nil(t, closer)

	_, isBackupper := records.(store.Backupper)
	assert.True(t, isBackupper)
}

func TestOpenStoreMemoryIsSeeded(t *testing.T) {
	records, _, err := OpenStore(context.Background(), config.Config{StoreBackend: config.BackendMemory})
	require.NoError(t, err)

	lines, err := store.LoadInventory(context.Background(), records)
	require.NoError(t, err)
	assert.NotEmpty(t, lines)
}

func TestLoadCatalogDefaultsWithoutFile(t *testing.T) {
	cat, err := LoadCatalog(config.Config{})
	require.NoError(t, err)

	brand, ok := cat.BrandForGroup("YZY_Slides")
	assert.True(t, ok)
	assert.Equal(t, "YZY", brand)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(config.Config{CatalogFile: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}
