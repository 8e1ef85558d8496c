// Package search maintains a full-text index over broadcast messages.
// The index is fed as a permanent router sink and queried by the HTTP
// surface; it is a projection, not the source of truth, so losing an
// entry costs a search hit and nothing else.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/protocol"

	"github.com/blugelabs/bluge"
)

type MessageIndex struct {
	mu     sync.Mutex
	writer *bluge.Writer
	log    *slog.Logger
}

// Hit is one search result.
type Hit struct {
	MessageID string    `json:"message_id"`
	Room      string    `json:"room"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	At        time.Time `json:"at"`
}

func NewMessageIndex(path string, log *slog.Logger) (*MessageIndex, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("opening bluge index: %w", err)
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

// Consume indexes posted messages; every other event type is ignored.
func (i *MessageIndex) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}

	doc := bluge.NewDocument(posted.ID.String()).
		AddField(bluge.NewKeywordField("room", string(posted.RoomName)).StoreValue()).
		AddField(bluge.NewKeywordField("author", posted.UserID).StoreValue()).
		AddField(bluge.NewTextField("content", posted.Content).StoreValue()).
		AddField(bluge.NewStoredOnlyField("at", []byte(posted.At.Format(protocol.TimestampLayout))))

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Update(doc.ID(), doc)
}

// Search matches terms against the content of one room's messages.
func (i *MessageIndex) Search(ctx context.Context, room domain.RoomName, terms string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening index reader: %w", err)
	}
	defer reader.Close()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(room)).SetField("room")).
		AddMust(bluge.NewMatchQuery(terms).SetField("content"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		hit := Hit{}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "room":
				hit.Room = string(value)
			case "author":
				hit.Author = string(value)
			case "content":
				hit.Content = string(value)
			case "at":
				if at, parseErr := time.Parse(protocol.TimestampLayout, string(value)); parseErr == nil {
					hit.At = at
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (i *MessageIndex) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Close()
}
