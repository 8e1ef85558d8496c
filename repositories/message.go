package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type messageRow struct {
	ID      string `json:"id"`
	Room    string `json:"room"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Lang    string `json:"lang"`
	At      int64  `json:"at"` // unix nanoseconds
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{room}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the UUID as a collision disconnector
//     if two messages arrive at the same nanosecond.
func (m *MessageRepository) StoreMessage(message domain.Message) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.Room,
		message.At.UnixNano(),
		message.ID,
	)
	row := messageRow{
		ID:      message.ID.String(),
		Room:    string(message.Room),
		Author:  message.AuthorID,
		Content: message.Content,
		Lang:    message.Lang,
		At:      message.At.UnixNano(),
	}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Messages retrieves a room's history newest-first using a reverse
// prefix scan. Thanks to the padded timestamp in the key the rows are
// naturally sorted by time. It stops once the configured limit is
// reached and returns an opaque cursor for the next page.
func (m *MessageRepository) Messages(room domain.RoomName, cursor *string) ([]domain.Message, *string, error) {
	var rawRows [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", room)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible key, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(rawRows) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize the cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				rawRows = append(rawRows, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(rawRows) == 0 {
		return nil, nil, nil
	}

	var messages []domain.Message
	for _, raw := range rawRows {
		var row messageRow
		if err = json.Unmarshal(raw, &row); err != nil {
			return nil, nil, err
		}
		message, err := toMessage(row)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	return messages, &lastKey, nil
}

func toMessage(row messageRow) (domain.Message, error) {
	parsedID, err := uuid.Parse(row.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:       parsedID,
		Room:     domain.RoomName(row.Room),
		AuthorID: row.Author,
		Content:  row.Content,
		Lang:     row.Lang,
		At:       time.Unix(0, row.At).UTC(),
	}, nil
}
