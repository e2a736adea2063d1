package core

import (
	"context"
	"fmt"

	"plantkeeper/internal/infra/persistence/firestore"
	"plantkeeper/internal/infra/persistence/memory"
	"plantkeeper/internal/infra/persistence/postgres"
	"plantkeeper/internal/infra/persistence/sqlite"
	"plantkeeper/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory    StorageDriver = "memory"    // in-memory only (tests / ephemeral)
	StorageSQLite    StorageDriver = "sqlite"    // embedded sqlite file
	StoragePostgres  StorageDriver = "postgres"  // PostgreSQL server
	StorageFirestore StorageDriver = "firestore" // Cloud Firestore collection
)

// StorageConfig selects and configures the persistent backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	Firestore   firestore.Config
}

// OpenPersistentStore builds the backend named by cfg.Driver. An empty driver
// defaults to sqlite.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *domain.RulesEngine, opts ...memory.Option) (domain.PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine, opts...), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine, opts...)
	case StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres driver requires a dsn")
		}
		return postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
	case StorageFirestore:
		return firestore.NewStore(ctx, cfg.Firestore, engine, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
