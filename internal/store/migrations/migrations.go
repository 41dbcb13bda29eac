// Package migrations embeds the queue schema for every supported backend and
// applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// Backend names accepted by New and Up.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// RequiredVersion is the schema version this binary expects.
const RequiredVersion uint = 1

// New builds a migrator for db. Closing the returned Migrate also closes db.
func New(db *sql.DB, backend string) (*migrate.Migrate, error) {
	var (
		drv database.Driver
		err error
	)
	switch backend {
	case SQLite:
		drv, err = sqlite.WithInstance(db, &sqlite.Config{})
	case Postgres:
		drv, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return nil, fmt.Errorf("unknown queue backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(files, backend)
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, backend, drv)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// Up applies all pending migrations. db stays open: the migrator is
// deliberately not closed because that would close db as well.
func Up(db *sql.DB, backend string) error {
	m, err := New(db, backend)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	v, dirty, _ := m.Version()
	slog.Debug("queue schema ready", "backend", backend, "version", v, "dirty", dirty)
	return nil
}
