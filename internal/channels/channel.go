// Package channels defines the contract between the relay core and a remote
// chat transport. The relay only needs three calls from a transport: long-poll
// for updates, send a text, and identify itself for connectivity checks.
package channels

import (
	"context"
	"fmt"

	"github.com/mattn/go-runewidth"
)

// Update is one unit of remote delivery. Text is empty when the update does
// not carry a plain text message (edits, joins, stickers, …).
type Update struct {
	UpdateID int
	SenderID int64
	Text     string
}

// Identity describes the bot account behind a transport.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
}

// Transport is the remote chat API the relay drives.
type Transport interface {
	// GetUpdates long-polls for updates with id >= offset, waiting up to
	// timeoutSec seconds and returning at most limit updates in delivery order.
	GetUpdates(ctx context.Context, offset, timeoutSec, limit int) ([]Update, error)

	// SendMessage delivers text to recipientID.
	SendMessage(ctx context.Context, recipientID int64, text string) error

	// GetSelf returns the transport's own identity.
	GetSelf(ctx context.Context) (Identity, error)
}

// TransportError wraps any failure of the remote API.
type TransportError struct {
	Op  string // "getUpdates", "sendMessage", "getMe"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Truncate shortens s to maxWidth display cells, appending "..." if truncated.
// Never splits a multi-byte rune.
func Truncate(s string, maxWidth int) string {
	return runewidth.Truncate(s, maxWidth, "...")
}
