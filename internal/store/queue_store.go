package store

import (
	"context"
	"time"
)

// Direction tells which way a queued message travels.
type Direction string

const (
	DirectionOutbound Direction = "outbound" // host → remote user
	DirectionInbound  Direction = "inbound"  // remote user → host
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionOutbound || d == DirectionInbound
}

// Message is one relayed text message.
type Message struct {
	ID        int64     `json:"id" db:"id"`
	Direction Direction `json:"direction" db:"direction"`
	Content   string    `json:"content" db:"content"`
	Timestamp int64     `json:"timestamp" db:"timestamp"` // ms since epoch, assigned at insertion
	Processed bool      `json:"processed" db:"processed"`
}

// CreatedAt returns the insertion time.
func (m *Message) CreatedAt() time.Time { return time.UnixMilli(m.Timestamp) }

// Stats summarises the queue for status output.
type Stats struct {
	PendingInbound  int `json:"pending_inbound" db:"pending_inbound"`
	PendingOutbound int `json:"pending_outbound" db:"pending_outbound"`
	Processed       int `json:"processed" db:"processed"`
}

// MessageQueue is the durable FIFO shared by both relay directions.
// Unprocessed messages are ordered by (timestamp, id); each message is
// dequeued at most once.
type MessageQueue interface {
	// Enqueue inserts a new unprocessed message and returns its id.
	// The write is durable when Enqueue returns.
	Enqueue(ctx context.Context, dir Direction, content string) (int64, error)

	// Peek returns the earliest unprocessed message without changing it.
	// Returns nil when the queue is empty.
	Peek(ctx context.Context) (*Message, error)

	// Dequeue atomically claims the earliest unprocessed message.
	// Returns nil when the queue is empty.
	Dequeue(ctx context.Context) (*Message, error)

	// DequeueIf claims the earliest unprocessed message only if it travels in dir.
	// Returns nil (and leaves the queue untouched) otherwise.
	DequeueIf(ctx context.Context, dir Direction) (*Message, error)

	UnprocessedCount(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// ValidateEnqueue checks enqueue arguments before any mutation.
func ValidateEnqueue(dir Direction, content string) error {
	if !dir.Valid() {
		return &ValidationError{Field: "direction", Reason: "unknown direction " + string(dir)}
	}
	if content == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return nil
}
