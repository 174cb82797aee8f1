package sink

import (
	"context"
	"fmt"
	"log/slog"
	"meet-lab/domain/event"
	"meet-lab/errors"
	"meet-lab/repositories"
)

// RoomRecordSink mirrors room creation and meeting point changes into the room records.
type RoomRecordSink struct {
	repository repositories.IRoomRepository
	log        *slog.Logger
}

func NewRoomRecordSink(repository repositories.IRoomRepository, log *slog.Logger) RoomRecordSink {
	return RoomRecordSink{repository: repository, log: log}
}

func (s RoomRecordSink) Consume(ctx context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.RoomCreated:
		return s.repository.Save(ctx, repositories.RoomRecord{
			RoomKey:   string(evt.Room),
			CreatedAt: evt.CreatedAt,
		})
	case event.DestinationUpdated:
		record, err := s.repository.Get(ctx, string(evt.Room))
		if errors.Is(err, errors.ErrRoomNotFound) {
			// Expired record: the room outlived its advisory lifetime
			s.log.Debug("No record for room, skipping destination", "room", evt.Room)
			return nil
		}
		if err != nil {
			return fmt.Errorf("update destination of room %s: %w", evt.Room, err)
		}
		record.Destination = evt.Point
		return s.repository.Save(ctx, record)
	default:
		return nil
	}
}
