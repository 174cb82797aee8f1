package runtime

import (
	"meet-lab/contract"
	"meet-lab/domain"
	"meet-lab/errors"
	"sync"

	"github.com/golang/groupcache/lru"
)

var _ contract.IRegistry = (*Registry)(nil)

type Set map[string]struct{}

type session struct {
	room domain.RoomKey
	sink contract.EventSink
}

// Registry maps an active connection to its room and its delivery sink.
// Unregistered connections are kept as tombstones so they can never become active again.
type Registry struct {
	mu          sync.RWMutex
	Sessions    map[string]session     // map connection -> session
	RoomMembers map[domain.RoomKey]Set // map room to connections
	terminated  *lru.Cache
}

func NewRegistry(tombstones int) *Registry {
	return &Registry{
		Sessions:    make(map[string]session),
		RoomMembers: make(map[domain.RoomKey]Set),
		terminated:  lru.New(tombstones),
	}
}

// Register binds a connection to a room.
// A terminated connection can't register again, nor can an active one register twice.
func (r *Registry) Register(connectionID string, room domain.RoomKey, sink contract.EventSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.terminated.Get(connectionID); ok {
		return errors.ErrTerminated
	}
	if _, ok := r.Sessions[connectionID]; ok {
		return errors.ErrAlreadyJoined
	}

	r.Sessions[connectionID] = session{room: room, sink: sink}
	if _, ok := r.RoomMembers[room]; !ok {
		r.RoomMembers[room] = make(Set)
	}
	r.RoomMembers[room][connectionID] = struct{}{}
	return nil
}

// Lookup returns the room of an active connection.
// Unknown connections get ErrNotJoined, callers are expected to drop the event.
func (r *Registry) Lookup(connectionID string) (domain.RoomKey, error) {
	r.mu.RLock()
	s, ok := r.Sessions[connectionID]
	r.mu.RUnlock()
	if ok {
		return s.room, nil
	}
	if r.IsTerminated(connectionID) {
		return "", errors.ErrTerminated
	}
	return "", errors.ErrNotJoined
}

// Unregister removes the connection and its room membership, leaving a tombstone.
// No empty member set is left behind.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.terminated.Add(connectionID, struct{}{})

	s, ok := r.Sessions[connectionID]
	if !ok {
		return
	}
	delete(r.Sessions, connectionID)

	if members, ok := r.RoomMembers[s.room]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.RoomMembers, s.room)
		}
	}
}

func (r *Registry) IsTerminated(connectionID string) bool {
	// lru.Cache.Get reorders the list, hence the write lock
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.terminated.Get(connectionID)
	return ok
}

// GetSinksForRoom retrieves the delivery sinks of every member of a room, keyed by connection id.
// Returns nil if the room has no members.
func (r *Registry) GetSinksForRoom(room domain.RoomKey) map[string]contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.RoomMembers[room]
	if !ok {
		return nil
	}
	sinks := make(map[string]contract.EventSink, len(members))
	for connectionID := range members {
		if s, exists := r.Sessions[connectionID]; exists {
			sinks[connectionID] = s.sink
		}
	}
	return sinks
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Sessions)
}
