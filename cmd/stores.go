package cmd

import (
	"database/sql"
	"fmt"

	"github.com/nextlevelbuilder/tgrelay/internal/config"
	"github.com/nextlevelbuilder/tgrelay/internal/store"
	"github.com/nextlevelbuilder/tgrelay/internal/store/migrations"
	"github.com/nextlevelbuilder/tgrelay/internal/store/pg"
	"github.com/nextlevelbuilder/tgrelay/internal/store/sqlite"
)

func storeConfig(cfg *config.Config) store.StoreConfig {
	return store.StoreConfig{
		Driver:      cfg.Queue.Driver,
		Path:        cfg.Queue.Path,
		PostgresDSN: cfg.Queue.PostgresDSN,
	}
}

// openStores opens the configured queue backend, applying migrations.
func openStores(sc store.StoreConfig) (*store.Stores, error) {
	switch sc.Driver {
	case "", store.DriverSQLite:
		q, err := sqlite.Open(sc.Path)
		if err != nil {
			return nil, err
		}
		return &store.Stores{Queue: q}, nil
	case store.DriverPostgres:
		q, err := pg.NewPGQueue(sc.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return &store.Stores{Queue: q}, nil
	default:
		return nil, &config.ConfigurationError{Field: "queue.driver", Reason: fmt.Sprintf("unknown driver %q", sc.Driver)}
	}
}

// openRawDB opens the queue database without migrating it, for the migrate
// and doctor commands. It returns the migrations backend name.
func openRawDB(sc store.StoreConfig) (*sql.DB, string, error) {
	switch sc.Driver {
	case "", store.DriverSQLite:
		db, err := sqlite.OpenDB(sc.Path)
		if err != nil {
			return nil, "", err
		}
		return db.DB, migrations.SQLite, nil
	case store.DriverPostgres:
		if sc.PostgresDSN == "" {
			return nil, "", fmt.Errorf("TGRELAY_POSTGRES_DSN environment variable is not set")
		}
		db, err := pg.OpenDB(sc.PostgresDSN)
		if err != nil {
			return nil, "", err
		}
		return db, migrations.Postgres, nil
	default:
		return nil, "", fmt.Errorf("unknown queue driver %q", sc.Driver)
	}
}
