package mcp

import (
	"log/slog"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/tgrelay/internal/bus"
	"github.com/nextlevelbuilder/tgrelay/pkg/protocol"
)

// forwardInbound subscribes to the bus and pushes each inbound arrival to
// every connected client as a notifications/message log entry.
func (s *Server) forwardInbound() {
	s.events.Subscribe(busSubscriberID, s.onEvent)
}

func (s *Server) onEvent(e bus.Event) {
	if e.Name != protocol.EventInboundReceived {
		return
	}
	p, ok := e.Payload.(bus.InboundPayload)
	if !ok {
		slog.Warn("inbound event with unexpected payload", "payload", e.Payload)
		return
	}
	s.notify(protocol.NotificationLogMessage, map[string]any{
		"level":  mcpgo.LoggingLevelInfo,
		"logger": protocol.NotificationLogger,
		"data": map[string]any{
			"update_id":  p.UpdateID,
			"message_id": p.MessageID,
			"content":    p.Content,
		},
	})
}
