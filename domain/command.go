package domain

import "time"

type JoinCommand struct {
	ConnectionID string
	Room         RoomKey
	Name         string
	Mode         string
}

type PostMessageCommand struct {
	ConnectionID string
	Room         RoomKey
	Author       string
	Content      string
	ReplyTo      *string
	CreatedAt    time.Time
}
