// Package runtime holds the presence engine: sessions, rooms, update rounds and event dispatch.
// It owns every room state transition, the transports only translate wire events into calls.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"meet-lab/contract"
	"meet-lab/domain"
	"meet-lab/domain/event"
	"meet-lab/errors"
	"meet-lab/moderation"
	"meet-lab/observability"
	"meet-lab/runtime/workers"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// queueWarnPercent is the dispatcher fill level above which the capacity worker warns.
const queueWarnPercent = 80

// Orchestrator drives the connection lifecycle: Unjoined -> Active -> Terminated.
// It is the only component creating or deleting rooms.
type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	supervisor     contract.ISupervisor
	registry       *Registry
	store          *RoomStore
	dispatcher     *Dispatcher
	pipeline       *Pipeline
	moderator      *moderation.Moderator
	monitoring     *observability.MonitoringManager
	permanentSinks []contract.EventSink
	sinkTimeout    time.Duration
	metricInterval time.Duration
	now            func() time.Time
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry *Registry, store *RoomStore,
	router contract.RouteProvider, moderator *moderation.Moderator, monitoring *observability.MonitoringManager,
	bufferSize int, sinkTimeout, routingTimeout, metricInterval time.Duration) *Orchestrator {
	dispatcher := NewDispatcher(log, bufferSize)
	return &Orchestrator{
		log:            log,
		supervisor:     supervisor,
		registry:       registry,
		store:          store,
		dispatcher:     dispatcher,
		pipeline:       NewPipeline(log, registry, store, router, dispatcher, monitoring, routingTimeout),
		moderator:      moderator,
		monitoring:     monitoring,
		sinkTimeout:    sinkTimeout,
		metricInterval: metricInterval,
		now:            time.Now,
	}
}

// Add registers sinks receiving every event of every room.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Start registers the fan-out and sampling workers and blocks until the supervisor stops.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	fanout := workers.NewEventFanout(o.log, o.dispatcher.Events(), o.registry, o.sinkTimeout, o.permanentSinks...)
	o.supervisor.Add(fanout)
	if o.metricInterval > 0 {
		queues := []workers.NamedChannel{{Name: "dispatcher", Channel: o.dispatcher.Events()}}
		o.supervisor.Add(workers.NewChannelCapacityWorker(o.log, queues, queueWarnPercent, o.metricInterval))
		if o.monitoring != nil {
			o.supervisor.Add(workers.NewHeartbeatWorker(o.log, o, o.monitoring, o.metricInterval))
		}
	}
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop cancels the supervised workers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// Join makes an unjoined connection active in a room, creating the room on first join.
// The room receives the refreshed membership, a system line and the current meeting point.
func (o *Orchestrator) Join(ctx context.Context, cmd domain.JoinCommand, sink contract.EventSink) error {
	if strings.TrimSpace(string(cmd.Room)) == "" {
		return fmt.Errorf("%w: empty room key", errors.ErrInvalidInput)
	}
	if o.registry.IsTerminated(cmd.ConnectionID) {
		return errors.ErrTerminated
	}
	mode, known := domain.ParseMode(cmd.Mode)
	if !known {
		o.log.Warn("Unknown travel mode, falling back to car", "connection", cmd.ConnectionID, "mode", cmd.Mode)
	}

	_, err := o.store.EnsureRoom(cmd.Room, func(room *domain.Room, created bool) error {
		if err := o.registry.Register(cmd.ConnectionID, room.Key, sink); err != nil {
			return err
		}
		participant := domain.NewParticipant(cmd.ConnectionID, cmd.Name, mode)
		if !room.Add(participant) {
			o.registry.Unregister(cmd.ConnectionID)
			return errors.ErrAlreadyJoined
		}

		// The joiner learns its id before any room event
		o.warnOnError(sink.Consume(ctx, event.SessionJoined{Room: room.Key, UserID: cmd.ConnectionID}), "joined ack")

		if created {
			o.log.Info("Room created", "room", room.Key)
			o.warnOnError(o.dispatcher.EmitRoomCreated(ctx, room.Key, room.CreatedAt), "room created")
		}
		o.warnOnError(o.dispatcher.EmitSnapshot(ctx, room.Key, event.KindLocationUpdate, room.Views()), "membership")
		o.warnOnError(o.dispatcher.RelayChat(ctx, domain.NewSystemMessage(room.Key,
			fmt.Sprintf("%s has joined the room", participant.Name), o.now()), false), "join line")
		if destination := room.Destination(); destination != nil {
			o.warnOnError(o.dispatcher.EmitDestination(ctx, room.Key, destination), "destination")
		}
		return nil
	})
	if err != nil {
		return err
	}
	o.log.Debug("Participant joined", "room", cmd.Room, "connection", cmd.ConnectionID)
	return nil
}

// Reconnect drops the previous connection of the same user, if still active in that room, then joins.
func (o *Orchestrator) Reconnect(ctx context.Context, previousID string, cmd domain.JoinCommand, sink contract.EventSink) error {
	if previousID != "" && previousID != cmd.ConnectionID {
		if room, err := o.registry.Lookup(previousID); err == nil && room == cmd.Room {
			if err := o.Disconnect(ctx, previousID); err != nil {
				o.log.Debug("Previous connection already gone", "connection", previousID, "error", err)
			}
		}
	}
	return o.Join(ctx, cmd, sink)
}

// Disconnect is final: the connection can never join again.
// The remaining members get a user-offline snapshot; an empty room is deleted in the same step.
func (o *Orchestrator) Disconnect(ctx context.Context, connectionID string) error {
	room, err := o.registry.Lookup(connectionID)
	if err != nil {
		o.registry.Unregister(connectionID)
		return err
	}

	deleted, err := o.store.WithRoom(room, func(r *domain.Room) error {
		participant, remaining, ok := r.Remove(connectionID)
		o.registry.Unregister(connectionID)
		if !ok {
			return errors.ErrNotJoined
		}
		if remaining > 0 {
			o.warnOnError(o.dispatcher.EmitSnapshot(ctx, r.Key, event.KindUserOffline, r.Views()), "user offline")
			o.warnOnError(o.dispatcher.RelayChat(ctx, domain.NewSystemMessage(r.Key,
				fmt.Sprintf("%s has left the room", participant.Name), o.now()), false), "leave line")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if deleted {
		o.log.Info("Room deleted", "room", room)
	}
	return nil
}

// UpdateLocation runs one update round for the connection's room.
func (o *Orchestrator) UpdateLocation(ctx context.Context, connectionID string, sample domain.LocationSample) error {
	return o.pipeline.Process(ctx, connectionID, sample)
}

// SetDestination replaces the meeting point of the connection's room.
func (o *Orchestrator) SetDestination(ctx context.Context, connectionID string, point domain.Point) error {
	if !point.Valid() {
		return fmt.Errorf("%w: invalid meeting point", errors.ErrInvalidInput)
	}
	return o.withMemberRoom(connectionID, func(r *domain.Room) error {
		r.SetDestination(point)
		return o.dispatcher.EmitDestination(ctx, r.Key, r.Destination())
	})
}

func (o *Orchestrator) ClearDestination(ctx context.Context, connectionID string) error {
	return o.withMemberRoom(connectionID, func(r *domain.Room) error {
		if r.Destination() == nil {
			return nil
		}
		r.ClearDestination()
		return o.dispatcher.EmitDestination(ctx, r.Key, nil)
	})
}

// PostMessage relays a moderated chat line to the sender's room, the sender is skipped.
func (o *Orchestrator) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error {
	room, err := o.registry.Lookup(cmd.ConnectionID)
	if err != nil {
		return err
	}
	if cmd.Room != "" && cmd.Room != room {
		return fmt.Errorf("%w: message for room %s sent from room %s", errors.ErrInvalidInput, cmd.Room, room)
	}
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		return fmt.Errorf("%w: empty message", errors.ErrInvalidInput)
	}
	if o.moderator != nil {
		var words []string
		content, words = o.moderator.Censor(content)
		if len(words) > 0 {
			o.log.Debug("Message censored", "room", room, "connection", cmd.ConnectionID, "count", len(words))
		}
	}
	author := strings.TrimSpace(cmd.Author)
	if author == "" {
		author = domain.DefaultName
	}
	at := cmd.CreatedAt
	if at.IsZero() {
		at = o.now()
	}

	message := domain.ChatMessage{
		ID:       uuid.New(),
		Room:     room,
		SenderID: cmd.ConnectionID,
		Author:   author,
		Content:  content,
		ReplyTo:  cmd.ReplyTo,
		At:       at.UTC(),
	}
	return o.dispatcher.RelayChat(ctx, message, true)
}

// Snapshot returns the current participant views of a room.
func (o *Orchestrator) Snapshot(room domain.RoomKey) ([]domain.ParticipantView, error) {
	return o.store.Snapshot(room)
}

func (o *Orchestrator) Stats() observability.PresenceStats {
	stats := o.store.Stats()
	return observability.PresenceStats{
		Rooms:        stats.Rooms,
		Participants: stats.Participants,
		Sessions:     o.registry.Count(),
	}
}

// withMemberRoom runs fn under the round lock of the room the connection is active in.
func (o *Orchestrator) withMemberRoom(connectionID string, fn func(r *domain.Room) error) error {
	room, err := o.registry.Lookup(connectionID)
	if err != nil {
		return err
	}
	_, err = o.store.WithRoom(room, func(r *domain.Room) error {
		if _, ok := r.Participant(connectionID); !ok {
			return errors.ErrNotJoined
		}
		return fn(r)
	})
	if errors.Is(err, errors.ErrRoomNotFound) {
		return errors.ErrNotJoined
	}
	return err
}

func (o *Orchestrator) warnOnError(err error, what string) {
	if err != nil {
		o.log.Warn("Event not emitted", "event", what, "error", err)
	}
}
