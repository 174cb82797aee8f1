package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoom_Add_Remove_Reports_Remaining(t *testing.T) {
	req := require.New(t)
	room := NewRoom("R1", time.Now())

	// Given two participants
	req.True(room.Add(NewParticipant("a", "A", ModeCar)))
	req.True(room.Add(NewParticipant("b", "B", ModeWalk)))

	// When the same id joins again
	// Then it is refused
	req.False(room.Add(NewParticipant("a", "A bis", ModeCar)))
	req.Equal(2, room.Len())

	// When participants leave one by one
	p, remaining, ok := room.Remove("a")
	req.True(ok)
	req.Equal("A", p.Name)
	req.Equal(1, remaining)

	_, remaining, ok = room.Remove("b")
	req.True(ok)
	req.Equal(0, remaining)

	// Then removing an unknown id is a no-op
	_, remaining, ok = room.Remove("b")
	req.False(ok)
	req.Equal(0, remaining)
}

func TestRoom_Views_Are_Copies(t *testing.T) {
	req := require.New(t)
	room := NewRoom("R1", time.Now())
	a := NewParticipant("a", "", ModeCar)
	room.Add(a)
	a.Position = &Point{Lat: 10, Lng: 10}
	a.MarkSelf()

	views := room.Views()
	req.Len(views, 1)
	req.Equal(DefaultName, views[0].Name)
	req.Equal(10.0, *views[0].Lat)
	req.Equal(ZeroDistance, *views[0].Distance)

	// When the participant moves after the view was taken
	a.Position.Lat = 42
	a.ResetQuote()

	// Then the view is untouched
	req.Equal(10.0, *views[0].Lat)
	req.Equal(ZeroDistance, *views[0].Distance)
}

func TestRoom_Destination(t *testing.T) {
	req := require.New(t)
	room := NewRoom("R1", time.Now())
	req.Nil(room.Destination())

	room.SetDestination(Point{Lat: 1, Lng: 2})
	dest := room.Destination()
	req.Equal(Point{Lat: 1, Lng: 2}, *dest)

	// Mutating the copy doesn't move the meeting point
	dest.Lat = 5
	req.Equal(1.0, room.Destination().Lat)

	room.ClearDestination()
	req.Nil(room.Destination())
}

func TestRoom_Peers_Exclude_Reporter(t *testing.T) {
	req := require.New(t)
	room := NewRoom("R1", time.Now())
	room.Add(NewParticipant("c", "C", ModeCar))
	room.Add(NewParticipant("a", "A", ModeCar))
	room.Add(NewParticipant("b", "B", ModeWalk))

	peers := room.Peers("b")
	req.Len(peers, 2)
	req.Equal("a", peers[0].ID)
	req.Equal("c", peers[1].ID)
}

func TestParseMode(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		raw   string
		mode  Mode
		known bool
	}{
		{"car", ModeCar, true},
		{"walk", ModeWalk, true},
		{" WALK ", ModeWalk, true},
		{"", ModeCar, true},
		{"bike", ModeCar, false},
	}
	for _, tt := range tests {
		mode, known := ParseMode(tt.raw)
		req.Equal(tt.mode, mode, "raw=%q", tt.raw)
		req.Equal(tt.known, known, "raw=%q", tt.raw)
	}
}

func TestRouteQuote_Format(t *testing.T) {
	req := require.New(t)
	q := RouteQuote{DistanceMeters: 1543.2, DurationSeconds: 330}
	req.Equal("1.54 km", q.Distance())
	req.Equal("6 mins", q.Eta())
}

func TestPoint_Valid(t *testing.T) {
	req := require.New(t)
	req.True(Point{Lat: 10, Lng: 10}.Valid())
	req.True(Point{Lat: -90, Lng: 180}.Valid())
	req.False(Point{Lat: 91, Lng: 0}.Valid())
	req.False(Point{Lat: 0, Lng: -181}.Valid())
}
