package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openBadger(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func messagesOf(room string, authors ...string) []DiskMessage {
	at := time.Now().UTC()
	return lo.Map(authors, func(author string, i int) DiskMessage {
		return DiskMessage{
			ID:      uuid.New(),
			Room:    room,
			Author:  author,
			Content: "on my way",
			At:      at.Add(time.Duration(i) * time.Minute),
		}
	})
}

func Test_Record_Multiple_Message(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openBadger(t), logs.GetLoggerFromLevel(slog.LevelDebug), nil, time.Hour)
	diskMessages := messagesOf("R1", "Alice", "Bob", "Clara")
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}
	// Given a message of another room
	req.NoError(repository.StoreMessage(messagesOf("R10", "Zoe")[0]))

	fetchedMessages, cursor, err := repository.GetMessages("R1", nil)

	// Then newest messages come first and the history is exhausted
	req.NoError(err)
	req.Nil(cursor)
	req.Equal(lo.Reverse(diskMessages), fetchedMessages)
}

func Test_Record_Multiple_Message_And_Limit(t *testing.T) {
	req := require.New(t)
	limit := 2
	repository := NewMessageRepository(openBadger(t), logs.GetLoggerFromLevel(slog.LevelDebug), &limit, 0)
	diskMessages := messagesOf("room:with/odd chars", "Alice", "Bob", "Clara")
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}

	// When the first page is read
	page, cursor, err := repository.GetMessages("room:with/odd chars", nil)
	req.NoError(err)
	req.Equal([]string{"Clara", "Bob"}, lo.Map(page, func(m DiskMessage, _ int) string { return m.Author }))
	req.NotNil(cursor)

	// Then the cursor leads to the oldest one
	page, cursor, err = repository.GetMessages("room:with/odd chars", cursor)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("Alice", page[0].Author)
	req.Nil(cursor)
}

func Test_GetMessages_Unknown_Room(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openBadger(t), logs.GetLoggerFromLevel(slog.LevelDebug), nil, 0)

	page, cursor, err := repository.GetMessages("nobody", nil)
	req.NoError(err)
	req.Empty(page)
	req.Nil(cursor)
}
