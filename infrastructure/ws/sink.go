package ws

import (
	"context"
	"meet-lab/domain/event"
	"meet-lab/errors"
	"sync"
)

// ConnectionSink queues encoded events for the write pump of one client.
type ConnectionSink struct {
	id     string
	out    chan []byte
	done   chan struct{}
	closed sync.Once
}

func NewConnectionSink(id string, bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		id:   id,
		out:  make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
}

// Consume never blocks: a full queue means the client is too slow and the event is dropped.
func (s *ConnectionSink) Consume(_ context.Context, e event.DomainEvent) error {
	raw, err := Encode(e)
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return errors.ErrTerminated
	default:
	}
	select {
	case s.out <- raw:
		return nil
	default:
		return errors.ErrSinkFull
	}
}

func (s *ConnectionSink) Outbound() <-chan []byte {
	return s.out
}

func (s *ConnectionSink) Done() <-chan struct{} {
	return s.done
}

func (s *ConnectionSink) Close() {
	s.closed.Do(func() { close(s.done) })
}
