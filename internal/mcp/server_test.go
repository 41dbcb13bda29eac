package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/tgrelay/internal/bus"
	"github.com/nextlevelbuilder/tgrelay/internal/store"
	"github.com/nextlevelbuilder/tgrelay/internal/store/sqlite"
	"github.com/nextlevelbuilder/tgrelay/pkg/protocol"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *sqlite.Queue) {
	t.Helper()
	q, err := sqlite.Open(filepath.Join(t.TempDir(), "mcp.db"))
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return NewServer(q, bus.New(), "test", opts...), q
}

func callTool(t *testing.T, handler func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error), name string, args map[string]any) *mcpgo.CallToolResult {
	t.Helper()
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func resultText(t *testing.T, res *mcpgo.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := mcpgo.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("content is %T, want text", res.Content[0])
	}
	return tc.Text
}

func TestSendQueuesOutbound(t *testing.T) {
	s, q := newTestServer(t)

	res := callTool(t, s.handleSend, protocol.ToolSendMessage, map[string]any{"message": "ping"})
	if res.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != "Message queued successfully: ping" {
		t.Errorf("text = %q", got)
	}

	m, err := q.Peek(context.Background())
	if err != nil || m == nil {
		t.Fatalf("peek: %v %v", m, err)
	}
	if m.Direction != store.DirectionOutbound || m.Content != "ping" {
		t.Errorf("queued %+v", m)
	}
}

func TestSendValidation(t *testing.T) {
	s, q := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing", map[string]any{}},
		{"empty", map[string]any{"message": ""}},
		{"not a string", map[string]any{"message": 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, s.handleSend, protocol.ToolSendMessage, tt.args)
			if !res.IsError {
				t.Fatal("expected error result")
			}
			if got := resultText(t, res); got != "Message is required and must be a string" {
				t.Errorf("text = %q", got)
			}
		})
	}

	n, _ := q.UnprocessedCount(context.Background())
	if n != 0 {
		t.Errorf("nothing should be queued, got %d", n)
	}
}

func TestSendStorageFailure(t *testing.T) {
	s, q := newTestServer(t)
	q.Close()

	res := callTool(t, s.handleSend, protocol.ToolSendMessage, map[string]any{"message": "x"})
	if !res.IsError {
		t.Fatal("expected error result")
	}
	if got := resultText(t, res); !strings.HasPrefix(got, "Failed to queue message: ") {
		t.Errorf("text = %q", got)
	}
}

func TestGetMessages(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		inbound []string
		args    map[string]any
		want    string
		left    int
	}{
		{"empty", nil, nil, "No new messages", 0},
		{"all", []string{"a", "b"}, nil, "Received messages:\n1. a\n2. b", 0},
		{"count limits", []string{"a", "b", "c"}, map[string]any{"count": float64(2)}, "Received messages:\n1. a\n2. b", 1},
		{"zero count uses default", []string{"a"}, map[string]any{"count": float64(0)}, "Received messages:\n1. a", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, q := newTestServer(t)
			for _, c := range tt.inbound {
				if _, err := q.Enqueue(ctx, store.DirectionInbound, c); err != nil {
					t.Fatal(err)
				}
			}
			res := callTool(t, s.handleGet, protocol.ToolGetMessages, tt.args)
			if got := resultText(t, res); got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
			n, _ := q.UnprocessedCount(ctx)
			if n != tt.left {
				t.Errorf("left = %d, want %d", n, tt.left)
			}
		})
	}
}

func TestGetMessagesStopsAtOutboundHead(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()

	q.Enqueue(ctx, store.DirectionOutbound, "to user")
	q.Enqueue(ctx, store.DirectionInbound, "from user")

	res := callTool(t, s.handleGet, protocol.ToolGetMessages, nil)
	if got := resultText(t, res); got != "No new messages" {
		t.Errorf("text = %q", got)
	}
	n, _ := q.UnprocessedCount(ctx)
	if n != 2 {
		t.Errorf("outbound head must block inbound fetch, %d left", n)
	}
}

func TestDefaultCountOption(t *testing.T) {
	s, q := newTestServer(t, WithDefaultCount(1))
	ctx := context.Background()
	q.Enqueue(ctx, store.DirectionInbound, "a")
	q.Enqueue(ctx, store.DirectionInbound, "b")

	res := callTool(t, s.handleGet, protocol.ToolGetMessages, nil)
	if got := resultText(t, res); got != "Received messages:\n1. a" {
		t.Errorf("text = %q", got)
	}
}

func TestStatus(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()
	q.Enqueue(ctx, store.DirectionInbound, "a")
	q.Enqueue(ctx, store.DirectionOutbound, "b")

	res := callTool(t, s.handleStatus, protocol.ToolStatus, nil)
	want := "Pending inbound: 1\nPending outbound: 1\nProcessed: 0"
	if got := resultText(t, res); got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}

func TestForwardInboundNotifies(t *testing.T) {
	s, _ := newTestServer(t)

	var (
		mu    sync.Mutex
		calls []map[string]any
	)
	s.notify = func(method string, params map[string]any) {
		if method != protocol.NotificationLogMessage {
			t.Errorf("method = %q", method)
		}
		mu.Lock()
		calls = append(calls, params)
		mu.Unlock()
	}
	s.forwardInbound()

	s.events.Broadcast(bus.Event{Name: protocol.EventOutboundSent, Payload: bus.OutboundPayload{MessageID: 1}})
	s.events.Broadcast(bus.Event{Name: protocol.EventInboundReceived, Payload: bus.InboundPayload{UpdateID: 9, MessageID: 2, Content: "hey"}})

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("got %d notifications, want 1", len(calls))
	}
	if calls[0]["logger"] != protocol.NotificationLogger {
		t.Errorf("logger = %v", calls[0]["logger"])
	}
	data := calls[0]["data"].(map[string]any)
	if data["content"] != "hey" {
		t.Errorf("data = %v", data)
	}
}

func TestProbeListsTools(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.ServerName != protocol.ServerName {
		t.Errorf("server name = %q", res.ServerName)
	}
	want := []string{protocol.ToolGetMessages, protocol.ToolSendMessage, protocol.ToolStatus}
	if strings.Join(res.Tools, ",") != strings.Join(want, ",") {
		t.Errorf("tools = %v, want %v", res.Tools, want)
	}
}

func TestCallToolThroughClient(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()

	client, err := mcpclient.NewInProcessClient(s.MCP())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	if err := client.Start(ctx); err != nil {
		t.Fatal(err)
	}
	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "test", Version: "0"}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		t.Fatal(err)
	}

	req := mcpgo.CallToolRequest{}
	req.Params.Name = protocol.ToolSendMessage
	req.Params.Arguments = map[string]any{"message": "via client"}
	res, err := client.CallTool(ctx, req)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("error result: %s", resultText(t, res))
	}

	m, err := q.Peek(ctx)
	if err != nil || m == nil || m.Content != "via client" {
		t.Fatalf("peek = %+v, %v", m, err)
	}
}
