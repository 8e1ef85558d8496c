// Package event defines the broadcast events exchanged between the
// dispatcher and connected sessions. Events are immutable snapshots;
// they carry everything a recipient needs to render the outbound frame.
package event

import (
	"time"

	"chat-relay/domain"

	"github.com/google/uuid"
)

type DomainEvent interface {
	Room() domain.RoomName
}

// UserJoined is broadcast to the whole room after a join completes,
// carrying the resolved user id.
type UserJoined struct {
	RoomName domain.RoomName
	UserID   string
	Username string
	Lang     string
	At       time.Time
}

func (e UserJoined) Room() domain.RoomName { return e.RoomName }

// MessagePosted is broadcast after a message row has been persisted.
// At is the server-assigned storage timestamp.
type MessagePosted struct {
	ID       uuid.UUID
	RoomName domain.RoomName
	UserID   string
	Content  string
	Lang     string
	At       time.Time
}

func (e MessagePosted) Room() domain.RoomName { return e.RoomName }

// UserLeft is only broadcast when the dispatcher's leave-notification
// policy is enabled. The reference behavior is to close without it.
type UserLeft struct {
	RoomName domain.RoomName
	UserID   string
	At       time.Time
}

func (e UserLeft) Room() domain.RoomName { return e.RoomName }
