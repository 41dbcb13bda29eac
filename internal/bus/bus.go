// Package bus fans relay notifications out to subscribers.
package bus

import (
	"sync"

	"github.com/google/uuid"
)

// MessageBus is an in-process EventPublisher.
type MessageBus struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
}

// New creates an empty MessageBus.
func New() *MessageBus {
	return &MessageBus{handlers: make(map[string]EventHandler)}
}

// Subscribe registers handler under id, replacing any previous handler with the same id.
// An empty id gets a generated one.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	if id == "" {
		id = uuid.NewString()
	}
	b.mu.Lock()
	b.handlers[id] = handler
	b.mu.Unlock()
}

// Unsubscribe removes the handler registered under id.
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.handlers, id)
	b.mu.Unlock()
}

// Broadcast delivers event to every subscriber synchronously.
func (b *MessageBus) Broadcast(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// Discard is an EventPublisher that drops everything.
type Discard struct{}

func (Discard) Subscribe(string, EventHandler) {}
func (Discard) Unsubscribe(string)             {}
func (Discard) Broadcast(Event)                {}

var (
	_ EventPublisher = (*MessageBus)(nil)
	_ EventPublisher = Discard{}
)
