package runtime

import (
	"meet-lab/domain"
	"meet-lab/errors"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestRoomStore_Remove_Last_Participant_Deletes_Room(t *testing.T) {
	req := require.New(t)
	store := NewRoomStore()
	room := domain.RoomKey("R1")

	// Given two participants in a room with a meeting point
	req.NoError(store.AddParticipant(room, "a", "A", domain.ModeCar))
	req.NoError(store.AddParticipant(room, "b", "B", domain.ModeWalk))
	req.NoError(store.SetDestination(room, domain.Point{Lat: 1, Lng: 2}))

	// When the first one leaves
	remaining, deleted, err := store.RemoveParticipant(room, "a")

	// Then the room is kept
	req.NoError(err)
	req.Equal(1, remaining)
	req.False(deleted)
	req.True(store.Exists(room))

	// When the last one leaves
	remaining, deleted, err = store.RemoveParticipant(room, "b")

	// Then the room is gone in the same step
	req.NoError(err)
	req.Equal(0, remaining)
	req.True(deleted)
	req.False(store.Exists(room))

	// And a new join recreates it without its former destination
	req.NoError(store.AddParticipant(room, "c", "C", domain.ModeCar))
	destination, err := store.GetDestination(room)
	req.NoError(err)
	req.Nil(destination)
}

func TestRoomStore_Unknown_Room(t *testing.T) {
	req := require.New(t)
	store := NewRoomStore()

	_, err := store.Snapshot("nope")
	req.ErrorIs(err, errors.ErrRoomNotFound)
	_, _, err = store.RemoveParticipant("nope", "a")
	req.ErrorIs(err, errors.ErrRoomNotFound)
	req.ErrorIs(store.SetDestination("nope", domain.Point{}), errors.ErrRoomNotFound)

	// Looking up a room never creates it
	req.False(store.Exists("nope"))
}

func TestRoomStore_EnsureRoom_Without_Participant_Is_Not_Kept(t *testing.T) {
	req := require.New(t)
	store := NewRoomStore()

	deleted, err := store.EnsureRoom("R1", func(room *domain.Room, created bool) error {
		req.True(created)
		return errors.ErrInvalidInput
	})

	req.ErrorIs(err, errors.ErrInvalidInput)
	req.True(deleted)
	req.False(store.Exists("R1"))
}

func TestRoomStore_UpdateLocation(t *testing.T) {
	req := require.New(t)
	store := NewRoomStore()
	room := domain.RoomKey("R1")
	req.NoError(store.AddParticipant(room, "a", "", domain.ModeWalk))

	// When a sample with an unknown mode and a heading arrives
	err := store.UpdateLocation(room, "a", domain.LocationSample{
		Position: &domain.Point{Lat: 10, Lng: 10},
		Mode:     "plane",
		Heading:  lo.ToPtr(90.0),
	})
	req.NoError(err)

	// Then the mode is coerced and the name defaulted
	views, err := store.Snapshot(room)
	req.NoError(err)
	req.Len(views, 1)
	req.Equal(domain.DefaultName, views[0].Name)
	req.Equal(domain.ModeCar, views[0].Mode)
	req.Equal(10.0, *views[0].Lat)
	req.Equal(90.0, *views[0].Heading)

	// When an invalid coordinate arrives, the last known one is kept
	err = store.UpdateLocation(room, "a", domain.LocationSample{Position: &domain.Point{Lat: 200, Lng: 10}})
	req.NoError(err)
	views, _ = store.Snapshot(room)
	req.Equal(10.0, *views[0].Lat)

	req.ErrorIs(store.UpdateLocation(room, "ghost", domain.LocationSample{}), errors.ErrNotJoined)
}

func TestRoomStore_Concurrent_Join_And_Leave_Never_Loses_Room(t *testing.T) {
	req := require.New(t)
	store := NewRoomStore()
	room := domain.RoomKey("R1")
	var wg sync.WaitGroup

	// Given participants joining and leaving the same room concurrently
	for i := 0; i < 100; i++ {
		id := lo.RandomString(8, lo.LettersCharset)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.AddParticipant(room, id, id, domain.ModeCar)
			_, _, _ = store.RemoveParticipant(room, id)
		}()
	}
	req.NoError(store.AddParticipant(room, "stay", "stay", domain.ModeCar))
	wg.Wait()

	// Then the one who stayed is still there
	views, err := store.Snapshot(room)
	req.NoError(err)
	req.Len(views, 1)
	req.Equal("stay", views[0].UserID)

	stats := store.Stats()
	req.Equal(1, stats.Rooms)
	req.Equal(1, stats.Participants)
}
