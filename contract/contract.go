//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"meet-lab/domain"
	"meet-lab/domain/event"
	"meet-lab/observability"
	"meet-lab/repositories"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// GetSinkName returns the type name of a sink for logging.
func GetSinkName(s EventSink) string {
	if s == nil {
		return "NilSink"
	}
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// IRegistry is the Session Registry: connection id -> room and delivery sink.
type IRegistry interface {
	Register(connectionID string, room domain.RoomKey, sink EventSink) error
	Lookup(connectionID string) (domain.RoomKey, error)
	Unregister(connectionID string)
	IsTerminated(connectionID string) bool
	GetSinksForRoom(room domain.RoomKey) map[string]EventSink
}

// RouteProvider is the boundary to the external routing service.
type RouteProvider interface {
	Quote(ctx context.Context, origin, destination domain.Point, mode domain.Mode) (domain.RouteQuote, error)
}

// IDispatcher emits room-scoped events, never global ones.
type IDispatcher interface {
	EmitSnapshot(ctx context.Context, room domain.RoomKey, kind event.SnapshotKind, views []domain.ParticipantView) error
	EmitDestination(ctx context.Context, room domain.RoomKey, point *domain.Point) error
	EmitDestinationEta(ctx context.Context, room domain.RoomKey, userID string, quote domain.RouteQuote, failed bool) error
	EmitRoomCreated(ctx context.Context, room domain.RoomKey, createdAt time.Time) error
	RelayChat(ctx context.Context, message domain.ChatMessage, excludeSender bool) error
}

// IPresenceService is everything the transports may ask of the presence engine.
type IPresenceService interface {
	Join(ctx context.Context, cmd domain.JoinCommand, previousID string, sink EventSink) error
	Leave(ctx context.Context, connectionID string) error
	UpdateLocation(ctx context.Context, connectionID string, sample domain.LocationSample) error
	SetDestination(ctx context.Context, connectionID string, point domain.Point) error
	ClearDestination(ctx context.Context, connectionID string) error
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error
	GetMessages(room domain.RoomKey, cursor *string) ([]domain.ChatMessage, *string, error)
	GetRoom(ctx context.Context, room domain.RoomKey) (repositories.RoomRecord, error)
	Route(ctx context.Context, origin, destination domain.Point, mode domain.Mode) (domain.RouteQuote, error)
	Health() observability.MonitoringStats
}
