package bus

import "github.com/nextlevelbuilder/tgrelay/pkg/protocol"

// Event is a relay notification delivered to subscribers.
type Event struct {
	Name    string      `json:"name"`              // protocol.Event* constant
	Payload interface{} `json:"payload,omitempty"` // one of the *Payload types below
}

// InboundPayload accompanies protocol.EventInboundReceived.
type InboundPayload struct {
	UpdateID  int    `json:"update_id"`
	MessageID int64  `json:"message_id"` // queue id
	Content   string `json:"content"`
}

// OutboundPayload accompanies protocol.EventOutboundSent.
type OutboundPayload struct {
	MessageID int64  `json:"message_id"`
	Content   string `json:"content"`
}

// ErrorPayload accompanies the *_error events.
type ErrorPayload struct {
	Component string `json:"component"`            // "poller", "drainer", "mcp"
	MessageID int64  `json:"message_id,omitempty"` // queue id when a specific message was affected
	Err       error  `json:"-"`
}

// Error returns the wrapped error text (empty when Err is nil).
func (p ErrorPayload) Error() string {
	if p.Err == nil {
		return ""
	}
	return p.Err.Error()
}

// IsError reports whether the event carries an ErrorPayload.
func (e Event) IsError() bool {
	switch e.Name {
	case protocol.EventPollError, protocol.EventSendError, protocol.EventStorageError:
		return true
	}
	return false
}

// EventHandler handles a broadcast event. Handlers run on the publisher's
// goroutine and must not block.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription.
// Relay components receive one explicitly instead of emitting on a global.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}
