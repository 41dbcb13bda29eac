// Package sqlite implements store.MessageQueue on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/tgrelay/internal/store"
	"github.com/nextlevelbuilder/tgrelay/internal/store/migrations"
)

const messageCols = `id, direction, content, timestamp, processed`

const headSubquery = `SELECT id FROM messages WHERE processed = 0 ORDER BY timestamp ASC, id ASC LIMIT 1`

// Queue is a SQLite-backed store.MessageQueue.
// A single connection serialises every statement, so a dequeue can never
// interleave with another one.
type Queue struct {
	db    *sqlx.DB
	path  string
	clock func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides the time source used to stamp new messages.
func WithClock(clock func() time.Time) Option {
	return func(q *Queue) { q.clock = clock }
}

// OpenDB opens the SQLite file at path (creating its directory) with WAL and
// a busy timeout, limited to one connection. No migrations are applied.
func OpenDB(path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, errors.New("empty database path")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Open opens (creating if needed) the queue database at path and applies
// pending schema migrations.
func Open(path string, opts ...Option) (*Queue, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, store.WrapStorage("open", err)
	}
	if err := migrations.Up(db.DB, migrations.SQLite); err != nil {
		db.Close()
		return nil, store.WrapStorage("migrate", err)
	}

	q := &Queue{db: db, path: path, clock: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Path returns the database file location.
func (q *Queue) Path() string { return q.path }

func (q *Queue) Enqueue(ctx context.Context, dir store.Direction, content string) (int64, error) {
	if err := store.ValidateEnqueue(dir, content); err != nil {
		return 0, err
	}

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO messages (direction, content, timestamp, processed) VALUES (?, ?, ?, 0)`,
		string(dir), content, q.clock().UnixMilli(),
	)
	if err != nil {
		return 0, store.WrapStorage("enqueue", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, store.WrapStorage("enqueue", err)
	}
	return id, nil
}

func (q *Queue) Peek(ctx context.Context) (*store.Message, error) {
	var m store.Message
	err := q.db.GetContext(ctx, &m,
		`SELECT `+messageCols+` FROM messages WHERE processed = 0 ORDER BY timestamp ASC, id ASC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.WrapStorage("peek", err)
	}
	return &m, nil
}

func (q *Queue) Dequeue(ctx context.Context) (*store.Message, error) {
	return q.claim(ctx, "dequeue",
		`UPDATE messages SET processed = 1 WHERE id = (`+headSubquery+`) RETURNING `+messageCols)
}

func (q *Queue) DequeueIf(ctx context.Context, dir store.Direction) (*store.Message, error) {
	if !dir.Valid() {
		return nil, &store.ValidationError{Field: "direction", Reason: "unknown direction " + string(dir)}
	}
	return q.claim(ctx, "dequeue",
		`UPDATE messages SET processed = 1 WHERE id = (`+headSubquery+`) AND direction = ? RETURNING `+messageCols,
		string(dir))
}

// claim runs a single-row UPDATE … RETURNING inside a transaction.
func (q *Queue) claim(ctx context.Context, op, query string, args ...any) (*store.Message, error) {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, store.WrapStorage(op, err)
	}
	defer tx.Rollback()

	var m store.Message
	err = tx.GetContext(ctx, &m, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.WrapStorage(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, store.WrapStorage(op, err)
	}
	return &m, nil
}

func (q *Queue) UnprocessedCount(ctx context.Context) (int, error) {
	var n int
	if err := q.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages WHERE processed = 0`); err != nil {
		return 0, store.WrapStorage("count", err)
	}
	return n, nil
}

func (q *Queue) Stats(ctx context.Context) (store.Stats, error) {
	var s store.Stats
	err := q.db.GetContext(ctx, &s, `SELECT
		COALESCE(SUM(CASE WHEN processed = 0 AND direction = 'inbound' THEN 1 ELSE 0 END), 0) AS pending_inbound,
		COALESCE(SUM(CASE WHEN processed = 0 AND direction = 'outbound' THEN 1 ELSE 0 END), 0) AS pending_outbound,
		COALESCE(SUM(CASE WHEN processed = 1 THEN 1 ELSE 0 END), 0) AS processed
		FROM messages`)
	if err != nil {
		return store.Stats{}, store.WrapStorage("stats", err)
	}
	return s, nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

var _ store.MessageQueue = (*Queue)(nil)
