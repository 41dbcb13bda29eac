package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nextlevelbuilder/tgrelay/internal/store"
)

const messageCols = `id, direction, content, ts, processed`

// claimLockKey is the advisory lock that serialises head claims, so a
// claimant never reads past a head row another transaction is inspecting.
const claimLockKey int64 = 0x7467726c6179 // "tgrlay"

// PGQueue implements store.MessageQueue backed by Postgres.
type PGQueue struct {
	db    *sql.DB
	clock func() time.Time
}

// Option configures a PGQueue.
type Option func(*PGQueue)

// WithClock overrides the time source used to stamp new messages.
func WithClock(clock func() time.Time) Option {
	return func(q *PGQueue) { q.clock = clock }
}

func newPGQueue(db *sql.DB, opts ...Option) *PGQueue {
	q := &PGQueue{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (s *PGQueue) Enqueue(ctx context.Context, dir store.Direction, content string) (int64, error) {
	if err := store.ValidateEnqueue(dir, content); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO relay_messages (direction, content, ts, processed)
		 VALUES ($1, $2, $3, false) RETURNING id`,
		string(dir), content, s.clock().UnixMilli(),
	).Scan(&id)
	if err != nil {
		return 0, store.WrapStorage("enqueue", err)
	}
	return id, nil
}

func (s *PGQueue) Peek(ctx context.Context) (*store.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageCols+` FROM relay_messages
		 WHERE processed = false ORDER BY ts, id LIMIT 1`)
	m, err := scanMessage(row)
	if err != nil {
		return nil, store.WrapStorage("peek", err)
	}
	return m, nil
}

func (s *PGQueue) Dequeue(ctx context.Context) (*store.Message, error) {
	return s.claim(ctx, "")
}

func (s *PGQueue) DequeueIf(ctx context.Context, dir store.Direction) (*store.Message, error) {
	if !dir.Valid() {
		return nil, &store.ValidationError{Field: "direction", Reason: "unknown direction " + string(dir)}
	}
	return s.claim(ctx, dir)
}

// claim takes the claim lock, reads the oldest pending row, checks its
// direction when dir is set, and marks it processed in the same transaction.
// Concurrent claimants queue on the lock and each sees the head left by the
// previous one, so (ts, id) order holds and no row is handed out twice.
func (s *PGQueue) claim(ctx context.Context, dir store.Direction) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.WrapStorage("dequeue", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, claimLockKey); err != nil {
		return nil, store.WrapStorage("dequeue", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+messageCols+` FROM relay_messages
		 WHERE processed = false ORDER BY ts, id LIMIT 1
		 FOR UPDATE`)
	m, err := scanMessage(row)
	if err != nil {
		return nil, store.WrapStorage("dequeue", err)
	}
	if m == nil || (dir != "" && m.Direction != dir) {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE relay_messages SET processed = true WHERE id = $1`, m.ID); err != nil {
		return nil, store.WrapStorage("dequeue", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, store.WrapStorage("dequeue", err)
	}
	m.Processed = true
	return m, nil
}

func (s *PGQueue) UnprocessedCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM relay_messages WHERE processed = false`).Scan(&n)
	if err != nil {
		return 0, store.WrapStorage("count", err)
	}
	return n, nil
}

func (s *PGQueue) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE NOT processed AND direction = 'inbound'),
		   COUNT(*) FILTER (WHERE NOT processed AND direction = 'outbound'),
		   COUNT(*) FILTER (WHERE processed)
		 FROM relay_messages`).Scan(&st.PendingInbound, &st.PendingOutbound, &st.Processed)
	if err != nil {
		return store.Stats{}, store.WrapStorage("stats", err)
	}
	return st, nil
}

func (s *PGQueue) Close() error {
	return s.db.Close()
}

func scanMessage(row *sql.Row) (*store.Message, error) {
	var m store.Message
	var dir string
	err := row.Scan(&m.ID, &dir, &m.Content, &m.Timestamp, &m.Processed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Direction = store.Direction(dir)
	return &m, nil
}

var _ store.MessageQueue = (*PGQueue)(nil)
