package event

import (
	"meet-lab/domain"
	"time"
)

// DomainEvent is anything the dispatcher can route to the members of one room.
type DomainEvent interface {
	RoomKey() domain.RoomKey
}

type SnapshotKind string

const (
	KindLocationUpdate SnapshotKind = "locationUpdate"
	KindUserOffline    SnapshotKind = "user-offline"
)

// RoomSnapshot is the full, consistent view of a room after a round or a membership change.
type RoomSnapshot struct {
	Room  domain.RoomKey
	Kind  SnapshotKind
	Views []domain.ParticipantView
	At    time.Time
}

func (e RoomSnapshot) RoomKey() domain.RoomKey { return e.Room }

// DestinationUpdated carries the new meeting point, Point is nil when it was cleared.
type DestinationUpdated struct {
	Room  domain.RoomKey
	Point *domain.Point
	At    time.Time
}

func (e DestinationUpdated) RoomKey() domain.RoomKey { return e.Room }

// DestinationEta is the room-wide distance from the last reporter to the meeting point.
type DestinationEta struct {
	Room     domain.RoomKey
	UserID   string
	Distance string
	Eta      string
	At       time.Time
}

func (e DestinationEta) RoomKey() domain.RoomKey { return e.Room }

// MessagePosted is a chat line relayed to the room, ExcludeID is never delivered to.
type MessagePosted struct {
	Message   domain.ChatMessage
	ExcludeID string
}

func (e MessagePosted) RoomKey() domain.RoomKey { return e.Message.Room }

// RoomCreated is only consumed by permanent sinks.
type RoomCreated struct {
	Room      domain.RoomKey
	CreatedAt time.Time
}

func (e RoomCreated) RoomKey() domain.RoomKey { return e.Room }

// SessionJoined acknowledges a join to the connection that issued it.
type SessionJoined struct {
	Room   domain.RoomKey
	UserID string
}

func (e SessionJoined) RoomKey() domain.RoomKey { return e.Room }
