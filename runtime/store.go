package runtime

import (
	"meet-lab/domain"
	"meet-lab/errors"
	"sort"
	"sync"
	"time"
)

type roomEntry struct {
	mu   sync.Mutex // round lock
	room *domain.Room
	refs int // handles acquired or waiting for the round lock
}

// RoomStore is the in-memory table of rooms, it is the only mutable shared state.
// Every room carries its own round lock: callers holding a RoomHandle have exclusive access
// to that room while other rooms proceed in parallel.
// An empty room is deleted when the last handle is released, never earlier and never later.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[domain.RoomKey]*roomEntry
	now   func() time.Time
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[domain.RoomKey]*roomEntry),
		now:   time.Now,
	}
}

// RoomHandle grants exclusive access to one room until Release is called.
type RoomHandle struct {
	store   *RoomStore
	entry   *roomEntry
	Created bool
}

func (h *RoomHandle) Room() *domain.Room {
	return h.entry.room
}

// Release gives back the round lock. The room is deleted in the same step if it is empty
// and nobody else is waiting for it. It reports whether the room was deleted.
func (h *RoomHandle) Release() bool {
	defer h.entry.mu.Unlock()

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	h.entry.refs--
	if h.entry.refs == 0 && h.entry.room.Len() == 0 {
		delete(h.store.rooms, h.entry.room.Key)
		return true
	}
	return false
}

// Acquire blocks until the round lock of the room is held.
// With create set an absent room is created empty, otherwise ErrRoomNotFound is returned.
func (s *RoomStore) Acquire(key domain.RoomKey, create bool) (*RoomHandle, error) {
	s.mu.Lock()
	entry, ok := s.rooms[key]
	created := false
	if !ok {
		if !create {
			s.mu.Unlock()
			return nil, errors.ErrRoomNotFound
		}
		entry = &roomEntry{room: domain.NewRoom(key, s.now().UTC())}
		s.rooms[key] = entry
		created = true
	}
	entry.refs++
	s.mu.Unlock()

	entry.mu.Lock()
	return &RoomHandle{store: s, entry: entry, Created: created}, nil
}

// WithRoom runs fn while holding the round lock of an existing room.
func (s *RoomStore) WithRoom(key domain.RoomKey, fn func(room *domain.Room) error) (deleted bool, err error) {
	h, err := s.Acquire(key, false)
	if err != nil {
		return false, err
	}
	defer func() { deleted = h.Release() }()
	return false, fn(h.Room())
}

// EnsureRoom is idempotent: it creates the room if absent then runs fn under its round lock.
func (s *RoomStore) EnsureRoom(key domain.RoomKey, fn func(room *domain.Room, created bool) error) (deleted bool, err error) {
	h, err := s.Acquire(key, true)
	if err != nil {
		return false, err
	}
	defer func() { deleted = h.Release() }()
	return false, fn(h.Room(), h.Created)
}

// AddParticipant inserts a participant with no coordinates yet, creating the room if needed.
func (s *RoomStore) AddParticipant(key domain.RoomKey, id, name string, mode domain.Mode) error {
	_, err := s.EnsureRoom(key, func(room *domain.Room, _ bool) error {
		if !room.Add(domain.NewParticipant(id, name, mode)) {
			return errors.ErrAlreadyJoined
		}
		return nil
	})
	return err
}

// RemoveParticipant reports the remaining count and whether the room was deleted along with its last member.
func (s *RoomStore) RemoveParticipant(key domain.RoomKey, id string) (remaining int, deleted bool, err error) {
	deleted, err = s.WithRoom(key, func(room *domain.Room) error {
		var ok bool
		_, remaining, ok = room.Remove(id)
		if !ok {
			return errors.ErrNotJoined
		}
		return nil
	})
	return remaining, deleted, err
}

// UpdateLocation writes a sample into a participant record, last write wins per field.
func (s *RoomStore) UpdateLocation(key domain.RoomKey, id string, sample domain.LocationSample) error {
	_, err := s.WithRoom(key, func(room *domain.Room) error {
		p, ok := room.Participant(id)
		if !ok {
			return errors.ErrNotJoined
		}
		ApplySample(p, sample)
		return nil
	})
	return err
}

func (s *RoomStore) SetDestination(key domain.RoomKey, point domain.Point) error {
	_, err := s.WithRoom(key, func(room *domain.Room) error {
		room.SetDestination(point)
		return nil
	})
	return err
}

func (s *RoomStore) ClearDestination(key domain.RoomKey) error {
	_, err := s.WithRoom(key, func(room *domain.Room) error {
		room.ClearDestination()
		return nil
	})
	return err
}

func (s *RoomStore) GetDestination(key domain.RoomKey) (*domain.Point, error) {
	var destination *domain.Point
	_, err := s.WithRoom(key, func(room *domain.Room) error {
		destination = room.Destination()
		return nil
	})
	return destination, err
}

// Snapshot returns the participant views of a room sorted by id.
func (s *RoomStore) Snapshot(key domain.RoomKey) ([]domain.ParticipantView, error) {
	var views []domain.ParticipantView
	_, err := s.WithRoom(key, func(room *domain.Room) error {
		views = room.Views()
		return nil
	})
	return views, err
}

func (s *RoomStore) Exists(key domain.RoomKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[key]
	return ok
}

type StoreStats struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
}

// Stats counts rooms and participants, it takes each round lock in turn.
func (s *RoomStore) Stats() StoreStats {
	s.mu.Lock()
	keys := make([]domain.RoomKey, 0, len(s.rooms))
	for k := range s.rooms {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	stats := StoreStats{Rooms: len(keys)}
	for _, k := range keys {
		views, err := s.Snapshot(k)
		if err != nil {
			continue
		}
		stats.Participants += len(views)
	}
	return stats
}

// Keys lists the live rooms in lexical order.
func (s *RoomStore) Keys() []domain.RoomKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]domain.RoomKey, 0, len(s.rooms))
	for k := range s.rooms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ApplySample writes the fields of a sample into a participant.
// It returns false when the mode was unknown and coerced to car.
func ApplySample(p *domain.Participant, sample domain.LocationSample) bool {
	mode, known := domain.ParseMode(sample.Mode)
	if sample.Mode != "" {
		p.Mode = mode
	}
	if sample.Position != nil && sample.Position.Valid() {
		pos := *sample.Position
		p.Position = &pos
	}
	if sample.Heading != nil {
		h := *sample.Heading
		p.Heading = &h
	}
	return known
}
