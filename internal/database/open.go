package database

import (
	"context"
	"fmt"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/config"
)

// Open connects to the store selected by cfg.StoreDriver and makes sure its
// tables exist. The returned func releases the connection.
func Open(ctx context.Context, cfg *config.Config) (DBManager, func(), error) {
	var (
		dbManager DBManager
		closeFunc func()
	)

	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		store, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		dbManager = store
		closeFunc = func() { _ = store.Close() }
	default:
		pool, err := ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		dbManager = NewPostgresDBManager(pool)
		closeFunc = pool.Close
	}

	if err := CreateTables(ctx, dbManager); err != nil {
		closeFunc()
		return nil, nil, err
	}
	return dbManager, closeFunc, nil
}

// CreateTables creates every table the application uses. It is idempotent.
func CreateTables(ctx context.Context, dbManager DBManager) error {
	if err := dbManager.CreateSubmissionsTable(ctx); err != nil {
		return fmt.Errorf("error creating submissions table: %w", err)
	}
	if err := dbManager.CreateIngestionRunsTable(ctx); err != nil {
		return fmt.Errorf("error creating ingestion_runs table: %w", err)
	}
	return nil
}
