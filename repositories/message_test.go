package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func storedMessage(room domain.RoomName, author, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:       uuid.New(),
		Room:     room,
		AuthorID: author,
		Content:  content,
		Lang:     "en",
		At:       at,
	}
}

func Test_Record_Multiple_Messages(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	room := domain.RoomName("lobby")
	at := time.Now().UTC()

	// Given three messages stored a minute apart
	stored := []domain.Message{
		storedMessage(room, "alice", "first", at),
		storedMessage(room, "bob", "second", at.Add(1*time.Minute)),
		storedMessage(room, "clara", "third", at.Add(2*time.Minute)),
	}
	for _, m := range stored {
		req.NoError(repository.StoreMessage(m))
	}

	// When fetching the room history
	fetched, _, err := repository.Messages(room, nil)

	// Then all messages come back newest-first
	req.NoError(err)
	req.Len(fetched, len(stored))
	req.Equal("third", fetched[0].Content)
	req.Equal("second", fetched[1].Content)
	req.Equal("first", fetched[2].Content)
}

func Test_Messages_Are_Isolated_Per_Room(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	at := time.Now().UTC()

	req.NoError(repository.StoreMessage(storedMessage("lobby", "alice", "in lobby", at)))
	req.NoError(repository.StoreMessage(storedMessage("ops", "bob", "in ops", at)))

	fetched, _, err := repository.Messages("lobby", nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("in lobby", fetched[0].Content)
}

func Test_Messages_Limit_And_Cursor(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	room := domain.RoomName("lobby")
	at := time.Now().UTC()

	contents := []string{"one", "two", "three", "four", "five"}
	for i, c := range contents {
		req.NoError(repository.StoreMessage(storedMessage(room, "alice", c, at.Add(time.Duration(i)*time.Second))))
	}

	// When paging through the history
	page1, cursor, err := repository.Messages(room, nil)
	req.NoError(err)
	req.Len(page1, limit)
	req.Equal("five", page1[0].Content)
	req.Equal("four", page1[1].Content)
	req.NotNil(cursor)

	page2, cursor, err := repository.Messages(room, cursor)
	req.NoError(err)
	req.Len(page2, limit)
	req.Equal("three", page2[0].Content)
	req.Equal("two", page2[1].Content)
	req.NotNil(cursor)

	// Then the last page holds the remainder
	page3, _, err := repository.Messages(room, cursor)
	req.NoError(err)
	req.Len(page3, 1)
	req.Equal("one", page3[0].Content)
}

func Test_Messages_Empty_Room(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)

	fetched, cursor, err := repository.Messages("ghost-town", nil)
	req.NoError(err)
	req.Empty(fetched)
	req.Nil(cursor)
}
