package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

// Router broadcasts events to every session subscribed under the
// event's room, plus the permanent sinks (search index, timeline).
//
// It provides best-effort fan-out with no delivery, durability or retry
// guarantees. Within one room, delivery order matches submission order:
// a single consumer goroutine drains the event channel, so fan-out is
// FIFO per group. A failed delivery to one recipient never aborts
// delivery to the others.
//
// Router is safe for concurrent use by multiple goroutines.
type Router struct {
	log            *slog.Logger
	registry       contract.IRegistry
	permanentSinks []contract.EventSink
	events         chan event.DomainEvent
	sinkTimeout    time.Duration
	stats          *observability.Stats
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, bufferSize int,
	sinkTimeout time.Duration, stats *observability.Stats) *Router {
	return &Router{
		log:         log,
		registry:    registry,
		events:      make(chan event.DomainEvent, bufferSize),
		sinkTimeout: sinkTimeout,
		stats:       stats,
	}
}

// Publish submits an event for fan-out. It suspends the caller when
// the buffer is full rather than dropping, so a sender's successive
// sends stay in submission order.
func (r *Router) Publish(ctx context.Context, e event.DomainEvent) error {
	select {
	case r.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Add registers sinks that receive every event regardless of room.
// Must be called before Run.
func (r *Router) Add(sinks ...contract.EventSink) *Router {
	r.permanentSinks = append(r.permanentSinks, sinks...)
	return r
}

func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-r.events:
			r.Fanout(ctx, evt)
		case <-ctx.Done():
			r.log.Debug("Context done, stopping broadcast router")
			return nil
		}
	}
}

// Fanout delivers one event to the permanent sinks and to every session
// in the event's room, including the sender. Per-recipient failures are
// isolated: logged, counted, and skipped.
func (r *Router) Fanout(ctx context.Context, evt event.DomainEvent) {
	r.stats.EventRouted()
	sinks := append(r.permanentSinks, r.registry.SinksForRoom(evt.Room())...)
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, r.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			r.stats.DeliveryFailed()
			r.log.Warn("Sink delivery failed", "room", evt.Room(), "error", err)
		}
		cancel()
	}
}
