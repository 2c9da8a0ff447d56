// Package bootstrap opens the record store and catalog named by the
// configuration. It is shared by the server and the maintenance commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"thredvault/backend/internal/catalog"
	"thredvault/backend/internal/config"
	"thredvault/backend/internal/store"
	"thredvault/backend/internal/store/csvfile"
	"thredvault/backend/internal/store/memory"
	"thredvault/backend/internal/store/sqlstore"
)

// OpenStore picks the record store named by STORE_BACKEND. The returned
// closer is nil for backends that hold no connection.
func OpenStore(ctx context.Context, cfg config.Config) (store.RecordStore, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return memory.NewSeeded(), nil, nil
	case config.BackendCSV:
		s, err := csvfile.New(cfg.DataDir, cfg.BackupDir)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		s, err := sqlstore.New(ctx, sqlstore.Postgres, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendMySQL:
		if cfg.MySQLDSN == "" {
			return nil, nil, errors.New("MYSQL_DSN is required for the mysql backend")
		}
		s, err := sqlstore.New(ctx, sqlstore.MySQL, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

// LoadCatalog reads CATALOG_FILE, or returns the built-in tables.
func LoadCatalog(cfg config.Config) (catalog.Catalog, error) {
	if cfg.CatalogFile == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	return cat, nil
}
