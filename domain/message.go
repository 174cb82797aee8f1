// Package domain contains core concepts of the presence system.
// This file defines chat Messages relayed inside a room.
// Messages are immutable once relayed.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage represents an immutable chat event.
type ChatMessage struct {
	ID       uuid.UUID
	Room     RoomKey
	SenderID string // empty for system lines
	Author   string
	Content  string
	ReplyTo  *string
	System   bool
	At       time.Time
}

func NewSystemMessage(room RoomKey, content string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:      uuid.New(),
		Room:    room,
		Author:  "system",
		Content: content,
		System:  true,
		At:      at,
	}
}
