package sink

import (
	"context"
	"log/slog"
	"meet-lab/domain/event"
	"meet-lab/repositories"
)

// DiskSink keeps the chat history of every room.
type DiskSink struct {
	repository repositories.IMessageRepository
	log        *slog.Logger
}

func NewDiskSink(repository repositories.IMessageRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePosted:
		return d.repository.StoreMessage(toDiskMessage(evt))
	default:
		return nil
	}
}

func toDiskMessage(evt event.MessagePosted) repositories.DiskMessage {
	m := evt.Message
	return repositories.DiskMessage{
		ID:       m.ID,
		Room:     string(m.Room),
		SenderID: m.SenderID,
		Author:   m.Author,
		Content:  m.Content,
		ReplyTo:  m.ReplyTo,
		System:   m.System,
		At:       m.At,
	}
}
