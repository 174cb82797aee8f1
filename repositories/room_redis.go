package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"meet-lab/errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var _ IRoomRepository = (*RedisRoomRepository)(nil)

// RedisRoomRepository stores room records with SET ... EX so redis expires them.
type RedisRoomRepository struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisRoomRepository(client *redis.Client, log *slog.Logger, ttl time.Duration) *RedisRoomRepository {
	return &RedisRoomRepository{client: client, log: log, ttl: ttl, now: time.Now}
}

func (r *RedisRoomRepository) Save(ctx context.Context, record RoomRecord) error {
	remaining := record.remaining(r.ttl, r.now())
	if remaining <= 0 {
		r.log.Debug("Room record already expired", "room", record.RoomKey)
		return nil
	}
	return r.client.Set(ctx, string(roomKey(record.RoomKey)), record, remaining).Err()
}

func (r *RedisRoomRepository) Get(ctx context.Context, room string) (RoomRecord, error) {
	var record RoomRecord
	err := r.client.Get(ctx, string(roomKey(room))).Scan(&record)
	if errors.Is(err, redis.Nil) {
		return RoomRecord{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return RoomRecord{}, fmt.Errorf("get room %s: %w", room, err)
	}
	return record, nil
}
