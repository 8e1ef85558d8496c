// Package projection builds local read models from observed events.
// It does not emit events and never touches storage or transports.
package projection

import (
	"context"
	"sync"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// Timeline retains the most recent messages per room. It is registered
// as a permanent sink on the router and feeds the debug endpoint, so an
// operator can see live traffic without querying storage.
type Timeline struct {
	mu    sync.RWMutex
	limit int
	rooms map[domain.RoomName][]domain.Message
}

func NewTimeline(limit int) *Timeline {
	return &Timeline{
		limit: limit,
		rooms: make(map[domain.RoomName][]domain.Message),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	messages := append(t.rooms[posted.RoomName], domain.Message{
		ID:       posted.ID,
		Room:     posted.RoomName,
		AuthorID: posted.UserID,
		Content:  posted.Content,
		Lang:     posted.Lang,
		At:       posted.At,
	})
	if t.limit > 0 && len(messages) > t.limit {
		messages = messages[len(messages)-t.limit:]
	}
	t.rooms[posted.RoomName] = messages
	return nil
}

// Recent returns a copy of the room's retained messages, oldest first.
func (t *Timeline) Recent(room domain.RoomName) []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	messages := t.rooms[room]
	out := make([]domain.Message, len(messages))
	copy(out, messages)
	return out
}
