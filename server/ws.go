package server

import (
	"github.com/gofiber/contrib/websocket"

	"chat-relay/domain"
	"chat-relay/runtime"
)

// handleChat runs one session per accepted connection. The handler
// blocks for the life of the connection; the base context ties every
// session to the process shutdown.
func (s *Server) handleChat(conn *websocket.Conn) {
	room := domain.RoomName(conn.Params("room"))
	principal, _ := conn.Locals(principalKey).(string)

	session := runtime.NewSession(s.log, room, conn,
		s.registry, s.dispatcher, principal, s.connectionBufferSize)
	s.log.Debug("Session accepted",
		"session_id", session.ID(),
		"room", room,
		"principal", principal)

	if err := session.Run(s.baseCtx); err != nil {
		s.log.Warn("Session terminated with error",
			"session_id", session.ID(),
			"room", room,
			"error", err)
	}
}
