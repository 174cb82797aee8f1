package runtime

import (
	"context"
	"log/slog"
	"meet-lab/contract"
	"meet-lab/domain"
	"meet-lab/domain/event"
	"time"
)

var _ contract.IDispatcher = (*Dispatcher)(nil)

// Dispatcher turns room state into events and queues them for the fan-out worker.
// A single queue keeps the emission order of every room.
type Dispatcher struct {
	log    *slog.Logger
	events chan event.DomainEvent
	now    func() time.Time
}

func NewDispatcher(log *slog.Logger, bufferSize int) *Dispatcher {
	return &Dispatcher{
		log:    log,
		events: make(chan event.DomainEvent, bufferSize),
		now:    time.Now,
	}
}

// Events is drained by the EventFanout worker.
func (d *Dispatcher) Events() chan event.DomainEvent {
	return d.events
}

// publish waits for room in the queue. A cancelled caller still gets its event
// queued when there is room for it.
func (d *Dispatcher) publish(ctx context.Context, e event.DomainEvent) error {
	select {
	case d.events <- e:
		return nil
	default:
	}
	d.log.Debug("Event queue is full, waiting", "room", e.RoomKey())
	select {
	case d.events <- e:
		return nil
	case <-ctx.Done():
		d.log.Warn("Event dropped", "room", e.RoomKey(), "error", ctx.Err())
		return ctx.Err()
	}
}

func (d *Dispatcher) EmitSnapshot(ctx context.Context, room domain.RoomKey, kind event.SnapshotKind, views []domain.ParticipantView) error {
	return d.publish(ctx, event.RoomSnapshot{Room: room, Kind: kind, Views: views, At: d.now()})
}

func (d *Dispatcher) EmitDestination(ctx context.Context, room domain.RoomKey, point *domain.Point) error {
	return d.publish(ctx, event.DestinationUpdated{Room: room, Point: point, At: d.now()})
}

func (d *Dispatcher) EmitDestinationEta(ctx context.Context, room domain.RoomKey, userID string, quote domain.RouteQuote, failed bool) error {
	e := event.DestinationEta{Room: room, UserID: userID, Distance: domain.NotAvailable, Eta: domain.NotAvailable, At: d.now()}
	if !failed {
		e.Distance, e.Eta = quote.Distance(), quote.Eta()
	}
	return d.publish(ctx, e)
}

func (d *Dispatcher) EmitRoomCreated(ctx context.Context, room domain.RoomKey, createdAt time.Time) error {
	return d.publish(ctx, event.RoomCreated{Room: room, CreatedAt: createdAt})
}

// RelayChat sends a chat line to the room, the sender is skipped when excludeSender is set
// since clients render their own lines locally.
func (d *Dispatcher) RelayChat(ctx context.Context, message domain.ChatMessage, excludeSender bool) error {
	e := event.MessagePosted{Message: message}
	if excludeSender {
		e.ExcludeID = message.SenderID
	}
	return d.publish(ctx, e)
}
