// Package relay moves messages between the Telegram transport and the durable
// queue: the Poller ingests authorized inbound text, the Drainer delivers
// queued outbound text.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/tgrelay/internal/bus"
	"github.com/nextlevelbuilder/tgrelay/internal/channels"
	"github.com/nextlevelbuilder/tgrelay/internal/store"
	"github.com/nextlevelbuilder/tgrelay/internal/tracing"
	"github.com/nextlevelbuilder/tgrelay/pkg/protocol"
)

// previewWidth bounds message text in log lines.
const previewWidth = 60

// PollerConfig tunes the ingestion loop.
type PollerConfig struct {
	AuthorizedUserID int64
	PollTimeoutSec   int           // long-poll wait passed to getUpdates
	PollLimit        int           // max updates per getUpdates
	PollInterval     time.Duration // delay between cycles
	WindowCapacity   int
	WindowMargin     int
}

func (c *PollerConfig) applyDefaults() {
	if c.PollTimeoutSec <= 0 {
		c.PollTimeoutSec = 10
	}
	if c.PollLimit <= 0 {
		c.PollLimit = 100
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
}

// Poller long-polls the transport and enqueues INBOUND messages from the
// authorized sender, each update id at most once.
type Poller struct {
	transport channels.Transport
	queue     store.MessageQueue
	events    bus.EventPublisher
	tracer    trace.Tracer
	cfg       PollerConfig

	// cycleMu serialises poll cycles and guards window. highest is only
	// written under cycleMu but may be read at any time.
	cycleMu sync.Mutex
	window  *dedupWindow
	highest atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollerTracer sets the tracer used for relay.poll spans.
func WithPollerTracer(t trace.Tracer) PollerOption {
	return func(p *Poller) {
		if t != nil {
			p.tracer = t
		}
	}
}

// NewPoller creates a stopped Poller. A nil events publisher discards events.
func NewPoller(transport channels.Transport, queue store.MessageQueue, events bus.EventPublisher, cfg PollerConfig, opts ...PollerOption) *Poller {
	cfg.applyDefaults()
	if events == nil {
		events = bus.Discard{}
	}
	p := &Poller{
		transport: transport,
		queue:     queue,
		events:    events,
		tracer:    tracing.Noop().Tracer(),
		cfg:       cfg,
		window:    newDedupWindow(cfg.WindowCapacity, cfg.WindowMargin),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling goroutine. It is a no-op when already polling.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	slog.Info("telegram polling started",
		"authorized_user", p.cfg.AuthorizedUserID,
		"timeout_sec", p.cfg.PollTimeoutSec,
		"interval", p.cfg.PollInterval,
	)
	go p.loop(pollCtx, p.done)
}

// Stop cancels any in-flight long poll and waits for the loop to exit.
// It is idempotent and safe to call before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	cancel()
	<-done
	slog.Info("telegram polling stopped")
}

// Running reports whether the polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Run starts polling and blocks until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.Start(ctx)
	<-ctx.Done()
	p.Stop()
	return nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := p.PollOnce(ctx); err != nil {
			slog.Debug("poll cycle ended with error", "error", err)
		}

		timer := time.NewTimer(p.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// HighestSeen returns the highest update id observed so far.
func (p *Poller) HighestSeen() int {
	return int(p.highest.Load())
}

// PollOnce runs a single getUpdates cycle and returns how many messages were
// enqueued. Transport and storage failures are published on the bus and also
// returned.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	cycleID := uuid.NewString()
	offset := p.HighestSeen() + 1
	ctx, span := p.tracer.Start(ctx, tracing.SpanPoll, trace.WithAttributes(
		attribute.String("relay.cycle_id", cycleID),
		attribute.Int("relay.offset", offset),
	))
	defer span.End()

	updates, err := p.transport.GetUpdates(ctx, offset, p.cfg.PollTimeoutSec, p.cfg.PollLimit)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown cancelled the long poll.
			return 0, ctx.Err()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "getUpdates failed")
		slog.Warn("telegram poll failed", "cycle", cycleID, "error", err)
		p.events.Broadcast(bus.Event{
			Name:    protocol.EventPollError,
			Payload: bus.ErrorPayload{Component: "poller", Err: err},
		})
		return 0, err
	}
	span.SetAttributes(attribute.Int("relay.updates", len(updates)))

	enqueued := 0
	for _, u := range updates {
		if p.window.has(u.UpdateID) {
			slog.Debug("duplicate update skipped", "cycle", cycleID, "update_id", u.UpdateID)
			continue
		}

		prevHighest := p.highest.Load()
		if int64(u.UpdateID) > prevHighest {
			p.highest.Store(int64(u.UpdateID))
		}

		if u.Text == "" || u.SenderID != p.cfg.AuthorizedUserID {
			slog.Debug("update discarded",
				"cycle", cycleID,
				"update_id", u.UpdateID,
				"sender", u.SenderID,
				"has_text", u.Text != "",
			)
			continue
		}

		p.window.add(u.UpdateID)
		p.window.prune(p.HighestSeen())

		id, err := p.queue.Enqueue(ctx, store.DirectionInbound, u.Text)
		if err != nil {
			// Forget the update so the next poll (same offset) delivers it again.
			p.window.remove(u.UpdateID)
			p.highest.Store(prevHighest)

			if ctx.Err() != nil {
				// Shutdown interrupted the write; not a storage fault.
				return enqueued, ctx.Err()
			}

			span.RecordError(err)
			span.SetStatus(codes.Error, "enqueue failed")
			slog.Error("failed to enqueue inbound message", "cycle", cycleID, "update_id", u.UpdateID, "error", err)

			var serr *store.StorageError
			if !errors.As(err, &serr) {
				err = store.WrapStorage("enqueue", err)
			}
			p.events.Broadcast(bus.Event{
				Name:    protocol.EventStorageError,
				Payload: bus.ErrorPayload{Component: "poller", Err: err},
			})
			return enqueued, fmt.Errorf("update %d: %w", u.UpdateID, err)
		}

		enqueued++
		slog.Info("inbound message queued",
			"cycle", cycleID,
			"update_id", u.UpdateID,
			"message_id", id,
			"preview", channels.Truncate(u.Text, previewWidth),
		)
		p.events.Broadcast(bus.Event{
			Name:    protocol.EventInboundReceived,
			Payload: bus.InboundPayload{UpdateID: u.UpdateID, MessageID: id, Content: u.Text},
		})
	}

	span.SetAttributes(attribute.Int("relay.enqueued", enqueued))
	return enqueued, nil
}
