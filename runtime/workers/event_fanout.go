package workers

import (
	"context"
	"log/slog"
	"meet-lab/contract"
	"meet-lab/domain/event"
	"sort"
	"time"
)

// EventFanout delivers queued events, in queue order, to the members of the event's room
// and to the permanent sinks. Member delivery never crosses rooms.
// A sink that doesn't answer within sinkTimeout loses the event, the room keeps going.
type EventFanout struct {
	log            *slog.Logger
	events         <-chan event.DomainEvent
	registry       contract.IRegistry
	permanentSinks []contract.EventSink
	sinkTimeout    time.Duration
}

func NewEventFanout(log *slog.Logger, events <-chan event.DomainEvent, registry contract.IRegistry,
	sinkTimeout time.Duration, permanentSinks ...contract.EventSink) *EventFanout {
	return &EventFanout{
		log:            log,
		events:         events,
		registry:       registry,
		permanentSinks: permanentSinks,
		sinkTimeout:    sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout delivers one event to every interested sink.
// RoomCreated only feeds the permanent sinks, clients have no wire form for it.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	if _, ok := evt.(event.RoomCreated); ok {
		w.deliverPermanent(ctx, evt)
		return
	}

	exclude := ""
	if posted, ok := evt.(event.MessagePosted); ok {
		exclude = posted.ExcludeID
	}

	members := w.registry.GetSinksForRoom(evt.RoomKey())
	ids := make([]string, 0, len(members))
	for id := range members {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		w.deliver(ctx, members[id], evt, "connection", id)
	}
	w.deliverPermanent(ctx, evt)
}

func (w *EventFanout) deliverPermanent(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.permanentSinks {
		w.deliver(ctx, sink, evt, "sink", contract.GetSinkName(sink))
	}
}

func (w *EventFanout) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent, key, name string) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, evt); err != nil {
		w.log.Debug("Event not delivered", key, name, "room", evt.RoomKey(), "error", err)
	}
}
