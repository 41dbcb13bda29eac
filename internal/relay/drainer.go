package relay

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/tgrelay/internal/bus"
	"github.com/nextlevelbuilder/tgrelay/internal/channels"
	"github.com/nextlevelbuilder/tgrelay/internal/store"
	"github.com/nextlevelbuilder/tgrelay/internal/tracing"
	"github.com/nextlevelbuilder/tgrelay/pkg/protocol"
)

// DefaultDrainInterval is the tick period when none is configured.
const DefaultDrainInterval = 500 * time.Millisecond

// Drainer delivers OUTBOUND messages from the queue head to the authorized
// user. A message is marked processed before the send, so a failed send is
// reported and never retried.
type Drainer struct {
	queue     store.MessageQueue
	transport channels.Transport
	events    bus.EventPublisher
	tracer    trace.Tracer
	recipient int64
	interval  time.Duration
}

// DrainerOption configures a Drainer.
type DrainerOption func(*Drainer)

// WithDrainerTracer sets the tracer used for relay.drain spans.
func WithDrainerTracer(t trace.Tracer) DrainerOption {
	return func(d *Drainer) {
		if t != nil {
			d.tracer = t
		}
	}
}

// NewDrainer creates a Drainer sending to recipient every interval.
func NewDrainer(queue store.MessageQueue, transport channels.Transport, events bus.EventPublisher, recipient int64, interval time.Duration, opts ...DrainerOption) *Drainer {
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	if events == nil {
		events = bus.Discard{}
	}
	d := &Drainer{
		queue:     queue,
		transport: transport,
		events:    events,
		tracer:    tracing.Noop().Tracer(),
		recipient: recipient,
		interval:  interval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run ticks until ctx is done.
func (d *Drainer) Run(ctx context.Context) error {
	slog.Info("outbound drain started", "interval", d.interval, "recipient", d.recipient)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("outbound drain stopped")
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick claims the queue head if it is OUTBOUND and sends it. It returns the
// claimed message (nil when nothing was claimed) and the send or storage
// error, which has already been published on the bus.
func (d *Drainer) Tick(ctx context.Context) (*store.Message, error) {
	ctx, span := d.tracer.Start(ctx, tracing.SpanDrain)
	defer span.End()

	msg, err := d.queue.DequeueIf(ctx, store.DirectionOutbound)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "dequeue failed")
		slog.Error("outbound dequeue failed", "error", err)
		d.events.Broadcast(bus.Event{
			Name:    protocol.EventStorageError,
			Payload: bus.ErrorPayload{Component: "drainer", Err: err},
		})
		return nil, err
	}
	if msg == nil {
		span.SetAttributes(attribute.Bool("relay.claimed", false))
		return nil, nil
	}
	span.SetAttributes(
		attribute.Bool("relay.claimed", true),
		attribute.Int64("relay.message_id", msg.ID),
	)

	if err := d.transport.SendMessage(ctx, d.recipient, msg.Content); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sendMessage failed")
		slog.Error("outbound send failed, message dropped", "message_id", msg.ID, "error", err)
		d.events.Broadcast(bus.Event{
			Name:    protocol.EventSendError,
			Payload: bus.ErrorPayload{Component: "drainer", MessageID: msg.ID, Err: err},
		})
		return msg, err
	}

	slog.Info("outbound message sent", "message_id", msg.ID, "preview", channels.Truncate(msg.Content, previewWidth))
	d.events.Broadcast(bus.Event{
		Name:    protocol.EventOutboundSent,
		Payload: bus.OutboundPayload{MessageID: msg.ID, Content: msg.Content},
	})
	return msg, nil
}
