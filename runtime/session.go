package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"chat-relay/domain"
	"chat-relay/domain/event"
	errs "chat-relay/errors"
	"chat-relay/protocol"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// Conn is the bidirectional message channel a session reads and writes.
// Satisfied by *websocket.Conn; tests substitute a scripted fake.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session is the live state of one connection, bound to exactly one
// room for its whole lifetime. It owns all mutable per-connection
// state; the only shared structures it touches are the registry and
// the router, both safe for concurrent use.
//
// Lifecycle: Run subscribes the session to its room's group, ensures
// the room row exists, then pumps inbound frames until the connection
// drops. Cleanup is deferred and idempotent, so an abrupt cancellation
// never skips deregistration or room garbage collection.
type Session struct {
	id         string
	room       domain.RoomName
	conn       Conn
	registry   *Registry
	dispatcher *Dispatcher
	log        *slog.Logger

	// principal is the authenticated subject from the handshake,
	// opaque to the core. userID is the chat identity bound by a join.
	principal string
	userID    string

	outbound chan event.DomainEvent
	done     chan struct{}
	state    atomic.Int32
	closing  sync.Once
}

func NewSession(log *slog.Logger, room domain.RoomName, conn Conn,
	registry *Registry, dispatcher *Dispatcher, principal string, bufferSize int) *Session {
	return &Session{
		id:         uuid.NewString(),
		room:       room,
		conn:       conn,
		registry:   registry,
		dispatcher: dispatcher,
		log:        log,
		principal:  principal,
		outbound:   make(chan event.DomainEvent, bufferSize),
		done:       make(chan struct{}),
	}
}

func (s *Session) ID() string                 { return s.id }
func (s *Session) Room() domain.RoomName      { return s.room }
func (s *Session) State() domain.SessionState { return domain.SessionState(s.state.Load()) }

func (s *Session) setState(state domain.SessionState) {
	s.state.Store(int32(state))
}

// Consume is called by the router's fan-out goroutine. It hands the
// event to this session's write pump without blocking: a full buffer
// drops the event rather than stalling delivery to other sessions.
func (s *Session) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.outbound <- e:
		return nil
	case <-s.done:
		return errs.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Debug("Session buffer full, event lost", "session_id", s.id)
		return nil
	}
}

// Run drives the session to completion. It returns nil on a normal
// disconnect and an error when an operation was connection-fatal; the
// cleanup path runs in every case.
func (s *Session) Run(ctx context.Context) error {
	s.registry.Subscribe(s.id, s.room, s)
	s.dispatcher.stats.SessionOpened()
	defer s.disconnect()

	if err := s.dispatcher.EnsureRoom(s.room); err != nil {
		return err
	}
	s.setState(domain.SessionJoined)

	go s.writePump(ctx)
	return s.readPump(ctx)
}

// readPump decodes and handles inbound frames until the transport
// errors out or a handler declares the connection dead.
func (s *Session) readPump(ctx context.Context) error {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			// Client close or broken transport: a normal end.
			return nil
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := s.handle(ctx, data); err != nil {
			if errors.Is(err, errs.ErrSessionClosed) {
				return nil
			}
			s.log.Error("Session operation failed",
				"session_id", s.id,
				"room", s.room,
				"error", err)
			return err
		}
	}
}

// handle processes one frame. A decode failure is fatal for that frame
// only; storage and lookup failures are fatal for the connection.
func (s *Session) handle(ctx context.Context, data []byte) error {
	cmd, err := protocol.Decode(data)
	if err != nil {
		s.dispatcher.stats.DecodeFailure()
		s.log.Warn("Dropping malformed frame",
			"session_id", s.id,
			"room", s.room,
			"error", err)
		return nil
	}
	s.setState(domain.SessionActive)

	switch c := cmd.(type) {
	case protocol.JoinCommand:
		userID, err := s.dispatcher.Join(ctx, s.room, c)
		if err != nil {
			return err
		}
		s.userID = userID
		return nil
	case protocol.PostCommand:
		return s.dispatcher.Post(ctx, s.room, c)
	case protocol.LeaveCommand:
		if err := s.dispatcher.Leave(ctx, s.room, c); err != nil {
			return err
		}
		// Membership removed: close immediately, no further broadcast
		// through this session.
		return errs.ErrSessionClosed
	default:
		return errs.ErrUnknownMsgType
	}
}

// writePump serializes broadcasts onto the transport. A write failure
// closes the connection, which unblocks the read pump and triggers the
// shared cleanup path.
func (s *Session) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
			return
		case <-s.done:
			return
		case evt := <-s.outbound:
			out, err := protocol.FromEvent(evt)
			if err != nil {
				s.log.Warn("Skipping unmapped event", "session_id", s.id, "error", err)
				continue
			}
			data, err := out.Encode()
			if err != nil {
				s.log.Warn("Envelope encoding failed", "session_id", s.id, "error", err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Warn("Transport write failed", "session_id", s.id, "error", err)
				_ = s.conn.Close()
				return
			}
		}
	}
}

// disconnect runs the guaranteed cleanup path: deregister from the
// fan-out group unconditionally, then garbage-collect the room when the
// persisted member count reached zero. Idempotent; tolerates being
// invoked on an already closed session.
func (s *Session) disconnect() {
	s.closing.Do(func() {
		s.setState(domain.SessionClosing)
		s.registry.Unsubscribe(s.id, s.room)
		close(s.done)
		_ = s.conn.Close()

		if err := s.dispatcher.ReleaseRoom(s.room); err != nil {
			// Cleanup is best-effort past deregistration; an orphan row
			// is collected by the next disconnect in this room.
			s.log.Warn("Room release failed", "room", s.room, "error", err)
		}

		s.dispatcher.stats.SessionClosed()
		s.setState(domain.SessionClosed)
		s.log.Debug("Session closed", "session_id", s.id, "room", s.room)
	})
}
