// Package domain contains core concepts of the chat relay.
// This file defines Message events and related rules.
// Messages are immutable and append-only per room.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event. The timestamp is
// server-assigned at creation time.
type Message struct {
	ID       uuid.UUID
	Room     RoomName
	AuthorID string
	Content  string
	Lang     string
	At       time.Time
}
