//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(room string, cursor *string) ([]DiskMessage, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	ttl           time.Duration
}

// NewMessageRepository stores chat history in badger. A zero ttl keeps messages forever.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int, ttl time.Duration) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages, ttl: ttl}
}

type DiskMessage struct {
	ID       uuid.UUID `json:"id"`
	Room     string    `json:"room"`
	SenderID string    `json:"senderId,omitempty"`
	Author   string    `json:"author"`
	Content  string    `json:"content"`
	ReplyTo  *string   `json:"replyTo,omitempty"`
	System   bool      `json:"system"`
	At       time.Time `json:"at"`
}

func messagePrefix(room string) string {
	return fmt.Sprintf("msg:%s:", url.QueryEscape(room))
}

// StoreMessage persists a message under "msg:{room}:{timestamp_padded}:{uuid}".
// The 19 digits padding keeps lexicographical order chronological,
// the uuid separates two messages of the same nanosecond.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := fmt.Sprintf("%s%019d:%s", messagePrefix(message.Room), message.At.UnixNano(), message.ID)
	value, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if m.ttl > 0 {
			entry = entry.WithTTL(m.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// GetMessages returns a page of messages of a room, newest first.
// The returned cursor fetches the next (older) page, it is nil once the history is exhausted.
func (m MessageRepository) GetMessages(room string, cursor *string) ([]DiskMessage, *string, error) {
	var values [][]byte
	var lastKey string
	exhausted := true

	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := messagePrefix(room)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		if cursor == nil {
			// Reverse iteration starts from the greatest possible timestamp
			seekKey = append([]byte(prefixStr), []byte("9999999999999999999")...)
		} else {
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && bytes.Equal(it.Item().Key(), seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(values) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				exhausted = false
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]DiskMessage, 0, len(values))
	for _, value := range values {
		var message DiskMessage
		if err := json.Unmarshal(value, &message); err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	if exhausted {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}
