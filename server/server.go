// Package server is the transport edge of the relay: the WebSocket
// route carrying the chat protocol, plus a small HTTP API for history,
// search, accounts and debug stats. It owns no chat semantics; every
// request is delegated to the runtime or the storage layer.
package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/search"
)

type Server struct {
	log     *slog.Logger
	app     *fiber.App
	baseCtx context.Context

	registry   *runtime.Registry
	dispatcher *runtime.Dispatcher
	storage    contract.IStorage
	accounts   *repositories.AccountRepository
	tokens     *auth.TokenManager
	index      *search.MessageIndex
	timeline   *projection.Timeline
	stats      *observability.Stats

	connectionBufferSize int
}

type Deps struct {
	Log        *slog.Logger
	Registry   *runtime.Registry
	Dispatcher *runtime.Dispatcher
	Storage    contract.IStorage
	Accounts   *repositories.AccountRepository
	Tokens     *auth.TokenManager
	Index      *search.MessageIndex
	Timeline   *projection.Timeline
	Stats      *observability.Stats

	ConnectionBufferSize int
}

// New builds the fiber app and mounts all routes. baseCtx is the
// lifetime of accepted sessions: canceling it drains every connection.
func New(baseCtx context.Context, deps Deps) *Server {
	s := &Server{
		log:                  deps.Log,
		app:                  fiber.New(fiber.Config{DisableStartupMessage: true}),
		baseCtx:              baseCtx,
		registry:             deps.Registry,
		dispatcher:           deps.Dispatcher,
		storage:              deps.Storage,
		accounts:             deps.Accounts,
		tokens:               deps.Tokens,
		index:                deps.Index,
		timeline:             deps.Timeline,
		stats:                deps.Stats,
		connectionBufferSize: deps.ConnectionBufferSize,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use("/ws", s.principalMiddleware, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/chat/:room", websocket.New(s.handleChat))

	api := s.app.Group("/api")
	api.Post("/auth/register", s.handleRegister)
	api.Post("/auth/login", s.handleLogin)
	api.Get("/rooms/:room/messages", s.handleHistory)
	api.Get("/rooms/:room/members/count", s.handleMemberCount)
	api.Get("/rooms/:room/search", s.handleSearch)

	s.app.Get("/debug/stats", s.handleStats)
	s.app.Get("/debug/rooms/:room/recent", s.handleRecent)
}

func (s *Server) Listen(address string) error {
	return s.app.Listen(address)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}
