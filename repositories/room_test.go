package repositories

import (
	"context"
	"log/slog"
	"meet-lab/domain"
	"meet-lab/errors"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-redis/redis/v8"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestRoomRepository_Save_And_Get(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := openBadger(t)
	repository := NewRoomRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug), 24*time.Hour)

	// Given a fresh room with a meeting point
	record := RoomRecord{
		RoomKey:     "R1",
		Destination: &domain.Point{Lat: 48.85, Lng: 2.35},
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	req.NoError(repository.Save(ctx, record))

	// Then it can be read back
	got, err := repository.Get(ctx, "R1")
	req.NoError(err)
	req.Equal(record, got)

	// And it expires 24 hours after its creation
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey("R1"))
		if err != nil {
			return err
		}
		expiresAt := time.Unix(int64(item.ExpiresAt()), 0)
		req.WithinDuration(record.CreatedAt.Add(24*time.Hour), expiresAt, 2*time.Second)
		return nil
	})
	req.NoError(err)

	records, err := repository.List()
	req.NoError(err)
	req.Len(records, 1)
}

func TestRoomRepository_Expired_Record_Is_Not_Saved(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewRoomRepository(openBadger(t), logs.GetLoggerFromLevel(slog.LevelDebug), 24*time.Hour)

	record := RoomRecord{RoomKey: "old", CreatedAt: time.Now().Add(-25 * time.Hour)}
	req.NoError(repository.Save(ctx, record))

	_, err := repository.Get(ctx, "old")
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestRoomRepository_Unknown_Room(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openBadger(t), logs.GetLoggerFromLevel(slog.LevelDebug), time.Hour)

	_, err := repository.Get(context.Background(), "nope")
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestRedisRoomRepository(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	req := require.New(t)
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	repository := NewRedisRoomRepository(client, logs.GetLoggerFromLevel(slog.LevelDebug), time.Hour)

	record := RoomRecord{RoomKey: "redis-test", CreatedAt: time.Now().UTC().Truncate(time.Second)}
	req.NoError(repository.Save(ctx, record))
	defer client.Del(ctx, string(roomKey(record.RoomKey)))

	got, err := repository.Get(ctx, record.RoomKey)
	req.NoError(err)
	req.Equal(record, got)

	ttl, err := client.TTL(ctx, string(roomKey(record.RoomKey))).Result()
	req.NoError(err)
	req.InDelta(time.Hour.Seconds(), ttl.Seconds(), 5)

	_, err = repository.Get(ctx, "redis-missing")
	req.ErrorIs(err, errors.ErrRoomNotFound)
}
