package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/tgrelay/internal/store"
	"github.com/nextlevelbuilder/tgrelay/internal/store/migrations"
)

// OpenDB opens a pgx-backed connection pool and verifies it with a ping.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewPGQueue opens the Postgres queue (managed mode) and applies migrations.
func NewPGQueue(dsn string, opts ...Option) (*PGQueue, error) {
	if dsn == "" {
		return nil, store.WrapStorage("open", fmt.Errorf("TGRELAY_POSTGRES_DSN is not set"))
	}
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, store.WrapStorage("open", err)
	}
	if err := migrations.Up(db, migrations.Postgres); err != nil {
		db.Close()
		return nil, store.WrapStorage("migrate", err)
	}
	return newPGQueue(db, opts...), nil
}
