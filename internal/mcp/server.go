// Package mcp exposes the relay queue to an MCP host as tools and forwards
// inbound arrivals as logging notifications.
package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/tgrelay/internal/bus"
	"github.com/nextlevelbuilder/tgrelay/internal/store"
	"github.com/nextlevelbuilder/tgrelay/internal/tracing"
	"github.com/nextlevelbuilder/tgrelay/pkg/protocol"
)

const busSubscriberID = "mcp-notifier"

// Server wraps an mcp-go server bound to one message queue.
type Server struct {
	mcp          *server.MCPServer
	queue        store.MessageQueue
	events       bus.EventPublisher
	tracer       trace.Tracer
	defaultCount int
	notify       func(method string, params map[string]any)
}

// Option configures the Server.
type Option func(*Server)

// WithTracer sets the tracer used for mcp.tool spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithDefaultCount overrides how many messages get_telegram_messages returns
// when the caller gives no count.
func WithDefaultCount(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.defaultCount = n
		}
	}
}

// NewServer builds the tool server. version is reported to hosts during
// initialize.
func NewServer(queue store.MessageQueue, events bus.EventPublisher, version string, opts ...Option) *Server {
	if events == nil {
		events = bus.Discard{}
	}
	s := &Server{
		queue:        queue,
		events:       events,
		tracer:       tracing.Noop().Tracer(),
		defaultCount: protocol.DefaultFetchCount,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(protocol.ServerName, version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(s.traceTool),
	)
	s.notify = s.mcp.SendNotificationToAllClients
	s.registerTools()
	return s
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// traceTool wraps every tool call in an mcp.tool span.
func (s *Server) traceTool(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		ctx, span := s.tracer.Start(ctx, tracing.SpanTool, trace.WithAttributes(
			attribute.String("mcp.tool.name", req.Params.Name),
		))
		defer span.End()

		start := time.Now()
		res, err := next(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if res != nil && res.IsError {
			span.SetStatus(codes.Error, "tool error result")
		}
		slog.Debug("mcp tool call", "tool", req.Params.Name, "duration", time.Since(start), "error", err)
		return res, err
	}
}

// ServeStdio serves the MCP protocol on in/out until ctx is done or in
// reaches EOF. Inbound arrivals are forwarded while serving.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.forwardInbound()
	defer s.events.Unsubscribe(busSubscriberID)

	slog.Info("mcp server listening on stdio", "server", protocol.ServerName)
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)) {
		return nil
	}
	return err
}

// ServeHTTP serves the streamable HTTP transport on addr until ctx is done.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	s.forwardInbound()
	defer s.events.Unsubscribe(busSubscriberID)

	httpSrv := server.NewStreamableHTTPServer(s.mcp)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("mcp server listening on http", "addr", addr)
		errCh <- httpSrv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("mcp http shutdown", "error", err)
		}
		return nil
	}
}
