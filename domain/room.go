package domain

import (
	"sort"
	"time"
)

type RoomKey string

// Room is a named group whose members share location state.
// A Room is not safe for concurrent use, the store serializes access to it.
type Room struct {
	Key          RoomKey
	CreatedAt    time.Time
	participants map[string]*Participant
	destination  *Point
}

func NewRoom(key RoomKey, createdAt time.Time) *Room {
	return &Room{
		Key:          key,
		CreatedAt:    createdAt,
		participants: make(map[string]*Participant),
	}
}

// Add inserts the participant, it returns false if the id is already present.
func (r *Room) Add(p *Participant) bool {
	if _, ok := r.participants[p.ID]; ok {
		return false
	}
	r.participants[p.ID] = p
	return true
}

// Remove deletes the participant and returns it along with the remaining count.
func (r *Room) Remove(id string) (*Participant, int, bool) {
	p, ok := r.participants[id]
	if !ok {
		return nil, len(r.participants), false
	}
	delete(r.participants, id)
	return p, len(r.participants), true
}

func (r *Room) Participant(id string) (*Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

func (r *Room) Len() int {
	return len(r.participants)
}

// Peers returns every participant except the given one, sorted by id.
func (r *Room) Peers(excludeID string) []*Participant {
	peers := make([]*Participant, 0, len(r.participants))
	for id, p := range r.participants {
		if id != excludeID {
			peers = append(peers, p)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
	return peers
}

func (r *Room) SetDestination(p Point) {
	r.destination = &p
}

func (r *Room) ClearDestination() {
	r.destination = nil
}

// Destination returns a copy of the meeting point, nil when none is set.
func (r *Room) Destination() *Point {
	if r.destination == nil {
		return nil
	}
	d := *r.destination
	return &d
}

// Views returns the broadcast form of every participant, sorted by id.
func (r *Room) Views() []ParticipantView {
	views := make([]ParticipantView, 0, len(r.participants))
	for _, p := range r.participants {
		views = append(views, p.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].UserID < views[j].UserID })
	return views
}
