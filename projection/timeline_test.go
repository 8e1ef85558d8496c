package projection

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain/event"
)

func TestTimeline_Consume_MessagePosted(t *testing.T) {
	timeline := NewTimeline(10)
	ctx := context.Background()

	evt1 := event.MessagePosted{
		ID:       uuid.New(),
		RoomName: "lobby",
		UserID:   "alice",
		Content:  "Hello Bob",
		At:       time.Now(),
	}
	evt2 := event.MessagePosted{
		ID:       uuid.New(),
		RoomName: "lobby",
		UserID:   "clara",
		Content:  "Hi Bob",
		At:       time.Now().Add(time.Second),
	}

	require.NoError(t, timeline.Consume(ctx, evt1))
	require.NoError(t, timeline.Consume(ctx, evt2))

	recent := timeline.Recent("lobby")
	require.Len(t, recent, 2)
	require.Equal(t, "alice", recent[0].AuthorID)
	require.Equal(t, "clara", recent[1].AuthorID)
}

func TestTimeline_Trims_To_Limit(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(2)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		err := timeline.Consume(ctx, event.MessagePosted{ID: uuid.New(), RoomName: "lobby", Content: content})
		req.NoError(err)
	}

	recent := timeline.Recent("lobby")
	req.Len(recent, 2)
	req.Equal("two", recent[0].Content)
	req.Equal("three", recent[1].Content)
}

func TestTimeline_Ignores_Other_Events(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(10)

	err := timeline.Consume(context.Background(), event.UserJoined{RoomName: "lobby", UserID: "alice"})
	req.NoError(err)
	req.Empty(timeline.Recent("lobby"))
}

func TestTimeline_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(10)

	err := timeline.Consume(context.Background(), event.MessagePosted{ID: uuid.New(), RoomName: "lobby", Content: "here"})
	req.NoError(err)

	req.Len(timeline.Recent("lobby"), 1)
	req.Empty(timeline.Recent("ops"))
}
