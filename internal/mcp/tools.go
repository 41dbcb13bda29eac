package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/tgrelay/internal/store"
	"github.com/nextlevelbuilder/tgrelay/pkg/protocol"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(mcpgo.NewTool(protocol.ToolSendMessage,
		mcpgo.WithDescription("Queue a message to be sent to the authorized Telegram user"),
		mcpgo.WithString(protocol.ArgMessage,
			mcpgo.Required(),
			mcpgo.Description("The message text to send"),
		),
	), s.handleSend)

	s.mcp.AddTool(mcpgo.NewTool(protocol.ToolGetMessages,
		mcpgo.WithDescription("Fetch and consume new messages received from the Telegram user, oldest first"),
		mcpgo.WithNumber(protocol.ArgCount,
			mcpgo.Description(fmt.Sprintf("Maximum number of messages to return (default %d)", s.defaultCount)),
		),
	), s.handleGet)

	s.mcp.AddTool(mcpgo.NewTool(protocol.ToolStatus,
		mcpgo.WithDescription("Report how many messages are waiting in each direction"),
		mcpgo.WithReadOnlyHintAnnotation(true),
	), s.handleStatus)
}

func (s *Server) handleSend(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	message, ok := req.GetArguments()[protocol.ArgMessage].(string)
	if !ok || message == "" {
		return mcpgo.NewToolResultError("Message is required and must be a string"), nil
	}

	id, err := s.queue.Enqueue(ctx, store.DirectionOutbound, message)
	if err != nil {
		slog.Error("failed to queue outbound message", "error", err)
		return mcpgo.NewToolResultError("Failed to queue message: " + err.Error()), nil
	}

	slog.Info("outbound message queued", "message_id", id)
	return mcpgo.NewToolResultText("Message queued successfully: " + message), nil
}

func (s *Server) handleGet(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	count := req.GetInt(protocol.ArgCount, s.defaultCount)
	if count <= 0 {
		count = s.defaultCount
	}

	var got []string
	for len(got) < count {
		m, err := s.queue.DequeueIf(ctx, store.DirectionInbound)
		if err != nil {
			// Already-claimed messages are consumed; report them with the error.
			slog.Error("failed to fetch inbound messages", "fetched", len(got), "error", err)
			return mcpgo.NewToolResultError(fmt.Sprintf("Failed to get messages: %v%s", err, formatPartial(got))), nil
		}
		if m == nil {
			break
		}
		got = append(got, m.Content)
	}

	if len(got) == 0 {
		return mcpgo.NewToolResultText("No new messages"), nil
	}
	return mcpgo.NewToolResultText("Received messages:\n" + formatNumbered(got)), nil
}

func (s *Server) handleStatus(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	st, err := s.queue.Stats(ctx)
	if err != nil {
		return mcpgo.NewToolResultError("Failed to read queue status: " + err.Error()), nil
	}
	return mcpgo.NewToolResultText(fmt.Sprintf(
		"Pending inbound: %d\nPending outbound: %d\nProcessed: %d",
		st.PendingInbound, st.PendingOutbound, st.Processed,
	)), nil
}

func formatNumbered(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, item)
	}
	return sb.String()
}

func formatPartial(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "\nReceived before the failure:\n" + formatNumbered(items)
}
