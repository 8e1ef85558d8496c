package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/repositories"
)

// fakeConn scripts the transport: frames pushed into reads come out of
// ReadMessage, written frames are captured for assertions.
type fakeConn struct {
	reads chan []byte

	mu      sync.Mutex
	written [][]byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.reads:
		return 1, data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) frames() []protocol.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.Outbound
	for _, data := range c.written {
		var o protocol.Outbound
		if err := json.Unmarshal(data, &o); err == nil {
			out = append(out, o)
		}
	}
	return out
}

func (c *fakeConn) push(frame string) {
	c.reads <- []byte(frame)
}

type sessionFixture struct {
	registry   *Registry
	dispatcher *Dispatcher
	router     *Router
	stats      *observability.Stats
	log        *slog.Logger
}

func newSessionFixture(t *testing.T, ctx context.Context) *sessionFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	stats := observability.NewStats()
	registry := NewRegistry()
	storage := repositories.NewStorage(db, log, nil)
	router := NewRouter(log, registry, 32, 100*time.Millisecond, stats)
	dispatcher := NewDispatcher(log, storage, router, nil, stats)

	go func() { _ = router.Run(ctx) }()

	return &sessionFixture{
		registry:   registry,
		dispatcher: dispatcher,
		router:     router,
		stats:      stats,
		log:        log,
	}
}

func (f *sessionFixture) startSession(ctx context.Context, room domain.RoomName) (*fakeConn, chan error) {
	conn := newFakeConn()
	session := NewSession(f.log, room, conn, f.registry, f.dispatcher, "", 16)
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()
	return conn, done
}

func framesOfType(conn *fakeConn, msgType protocol.MsgType) []protocol.Outbound {
	var out []protocol.Outbound
	for _, frame := range conn.frames() {
		if frame.MsgType == msgType {
			out = append(out, frame)
		}
	}
	return out
}

func TestSession_Join_Broadcast_Includes_Sender(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixture := newSessionFixture(t, ctx)

	conn, done := fixture.startSession(ctx, "lobby")

	// When the client joins
	conn.push(`{"msg_type":"joined","username":"alice","lang":"en"}`)

	// Then the sender itself receives the join notification
	req.Eventually(func() bool {
		return len(framesOfType(conn, protocol.MsgJoined)) == 1
	}, time.Second, 10*time.Millisecond)

	joined := framesOfType(conn, protocol.MsgJoined)[0]
	req.NotNil(joined.Username)
	req.Equal("alice", *joined.Username)
	req.NotNil(joined.UserID)
	req.Nil(joined.Message)

	conn.Close()
	req.NoError(<-done)
}

func TestSession_Messages_Delivered_To_All_Members_In_Order(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixture := newSessionFixture(t, ctx)

	aliceConn, aliceDone := fixture.startSession(ctx, "lobby")
	bobConn, bobDone := fixture.startSession(ctx, "lobby")

	aliceConn.push(`{"msg_type":"joined","username":"alice"}`)
	bobConn.push(`{"msg_type":"joined","username":"bob"}`)

	// Wait for alice's join and hers plus bob's on bob's side
	req.Eventually(func() bool {
		return len(framesOfType(aliceConn, protocol.MsgJoined)) >= 2 &&
			len(framesOfType(bobConn, protocol.MsgJoined)) >= 1
	}, time.Second, 10*time.Millisecond)

	aliceID := *framesOfType(aliceConn, protocol.MsgJoined)[0].UserID

	// When alice posts two messages in order
	aliceConn.push(fmt.Sprintf(`{"msg_type":"message","user_id":"%s","message":"first","lang":"en"}`, aliceID))
	aliceConn.push(fmt.Sprintf(`{"msg_type":"message","user_id":"%s","message":"second","lang":"en"}`, aliceID))

	// Then both members observe them in submission order
	for _, conn := range []*fakeConn{aliceConn, bobConn} {
		req.Eventually(func() bool {
			return len(framesOfType(conn, protocol.MsgMessage)) == 2
		}, time.Second, 10*time.Millisecond)

		messages := framesOfType(conn, protocol.MsgMessage)
		req.Equal("first", *messages[0].Message)
		req.Equal("second", *messages[1].Message)
		req.Equal(aliceID, *messages[0].UserID)
		req.NotNil(messages[0].Timestamp)
	}

	aliceConn.Close()
	bobConn.Close()
	req.NoError(<-aliceDone)
	req.NoError(<-bobDone)
}

func TestSession_Malformed_Frame_Is_Dropped_Not_Fatal(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixture := newSessionFixture(t, ctx)

	conn, done := fixture.startSession(ctx, "lobby")

	// Given garbage, then an unknown type, then a valid join
	conn.push(`this is not json`)
	conn.push(`{"msg_type":"typing","user_id":"u1"}`)
	conn.push(`{"msg_type":"joined","username":"alice"}`)

	// Then the session survived the bad frames and processed the join
	req.Eventually(func() bool {
		return len(framesOfType(conn, protocol.MsgJoined)) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	req.NoError(<-done)
}

func TestSession_Leave_Closes_And_Collects_Empty_Room(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixture := newSessionFixture(t, ctx)

	conn, done := fixture.startSession(ctx, "lobby")

	conn.push(`{"msg_type":"joined","username":"alice"}`)
	req.Eventually(func() bool {
		return len(framesOfType(conn, protocol.MsgJoined)) == 1
	}, time.Second, 10*time.Millisecond)
	aliceID := *framesOfType(conn, protocol.MsgJoined)[0].UserID

	// When the last member leaves
	conn.push(fmt.Sprintf(`{"msg_type":"leave","user_id":"%s"}`, aliceID))

	// Then the session ends cleanly without a leave broadcast
	req.NoError(<-done)
	req.Empty(framesOfType(conn, protocol.MsgLeave))

	// And the empty room was garbage collected
	_, err := fixture.dispatcher.storage.FindRoom("lobby")
	req.ErrorIs(err, errs.ErrRoomNotFound)

	// And the fan-out group is gone
	req.Equal(0, fixture.registry.ActiveConnections("lobby"))
}

func TestSession_Abrupt_Disconnect_Keeps_Membership(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixture := newSessionFixture(t, ctx)

	conn, done := fixture.startSession(ctx, "lobby")

	conn.push(`{"msg_type":"joined","username":"alice"}`)
	req.Eventually(func() bool {
		return len(framesOfType(conn, protocol.MsgJoined)) == 1
	}, time.Second, 10*time.Millisecond)

	// When the transport drops without a leave frame
	conn.Close()
	req.NoError(<-done)

	// Then the persisted membership survives, so the room does too
	count, err := fixture.dispatcher.storage.RoomMemberCount("lobby")
	req.NoError(err)
	req.Equal(1, count)
	_, err = fixture.dispatcher.storage.FindRoom("lobby")
	req.NoError(err)

	// But the dead connection left the fan-out group
	req.Equal(0, fixture.registry.ActiveConnections("lobby"))
}

func TestSession_Rooms_Do_Not_Leak_Messages(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixture := newSessionFixture(t, ctx)

	lobbyConn, lobbyDone := fixture.startSession(ctx, "lobby")
	opsConn, opsDone := fixture.startSession(ctx, "ops")

	lobbyConn.push(`{"msg_type":"joined","username":"alice"}`)
	opsConn.push(`{"msg_type":"joined","username":"bob"}`)

	req.Eventually(func() bool {
		return len(framesOfType(lobbyConn, protocol.MsgJoined)) == 1 &&
			len(framesOfType(opsConn, protocol.MsgJoined)) == 1
	}, time.Second, 10*time.Millisecond)

	aliceID := *framesOfType(lobbyConn, protocol.MsgJoined)[0].UserID
	lobbyConn.push(fmt.Sprintf(`{"msg_type":"message","user_id":"%s","message":"lobby only","lang":"en"}`, aliceID))

	req.Eventually(func() bool {
		return len(framesOfType(lobbyConn, protocol.MsgMessage)) == 1
	}, time.Second, 10*time.Millisecond)

	// The ops member never hears lobby traffic
	req.Empty(framesOfType(opsConn, protocol.MsgMessage))

	lobbyConn.Close()
	opsConn.Close()
	req.NoError(<-lobbyDone)
	req.NoError(<-opsDone)
}
