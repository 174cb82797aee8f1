//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"meet-lab/domain"
	"meet-lab/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// IRoomRepository keeps an advisory record of every room.
// The in-memory store stays the only authority on which rooms are alive.
type IRoomRepository interface {
	Get(ctx context.Context, room string) (RoomRecord, error)
	Save(ctx context.Context, record RoomRecord) error
}

type RoomRecord struct {
	RoomKey     string        `json:"roomKey"`
	Destination *domain.Point `json:"destination,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func (r RoomRecord) MarshalBinary() ([]byte, error) {
	return json.Marshal(r)
}

func (r *RoomRecord) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, r)
}

// remaining is the time left before the record expires, ttl counts from creation.
func (r RoomRecord) remaining(ttl time.Duration, now time.Time) time.Duration {
	return r.CreatedAt.Add(ttl).Sub(now)
}

func roomKey(room string) []byte {
	return []byte("room:" + room)
}

type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
	ttl time.Duration
	now func() time.Time
}

func NewRoomRepository(db *badger.DB, log *slog.Logger, ttl time.Duration) *RoomRepository {
	return &RoomRepository{db: db, log: log, ttl: ttl, now: time.Now}
}

// Save writes the record with an expiry of ttl after its creation.
// A record that is already expired is not written.
func (r *RoomRepository) Save(_ context.Context, record RoomRecord) error {
	remaining := record.remaining(r.ttl, r.now())
	if remaining <= 0 {
		r.log.Debug("Room record already expired", "room", record.RoomKey)
		return nil
	}
	data, err := record.MarshalBinary()
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(roomKey(record.RoomKey), data).WithTTL(remaining))
	})
}

func (r *RoomRepository) Get(_ context.Context, room string) (RoomRecord, error) {
	var record RoomRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(room))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return record.UnmarshalBinary(val)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return RoomRecord{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return RoomRecord{}, fmt.Errorf("get room %s: %w", room, err)
	}
	return record, nil
}

// List returns every unexpired room record, used by the viewer.
func (r *RoomRepository) List() ([]RoomRecord, error) {
	var records []RoomRecord
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record RoomRecord
			if err := it.Item().Value(func(val []byte) error {
				return record.UnmarshalBinary(val)
			}); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	return records, err
}
