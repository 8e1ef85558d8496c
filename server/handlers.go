package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"chat-relay/auth"
	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/protocol"
)

const defaultSearchLimit = 20

type messageView struct {
	ID        string `json:"id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	Lang      string `json:"lang"`
	Timestamp string `json:"timestamp"`
}

func toMessageView(m domain.Message) messageView {
	return messageView{
		ID:        m.ID.String(),
		AuthorID:  m.AuthorID,
		Content:   m.Content,
		Lang:      m.Lang,
		Timestamp: m.At.Format(protocol.TimestampLayout),
	}
}

// handleHistory returns one newest-first page of a room's messages.
// Paging is cursor based: the response carries the cursor of the next
// older page, absent on the last one.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	room := domain.RoomName(c.Params("room"))
	var cursor *string
	if raw := c.Query("cursor"); raw != "" {
		cursor = &raw
	}

	messages, next, err := s.storage.Messages(room, cursor)
	if err != nil {
		s.log.Error("History fetch failed", "room", room, "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(fiber.Map{
		"messages":    lo.Map(messages, func(m domain.Message, _ int) messageView { return toMessageView(m) }),
		"next_cursor": next,
	})
}

func (s *Server) handleMemberCount(c *fiber.Ctx) error {
	room := domain.RoomName(c.Params("room"))
	if _, err := s.storage.FindRoom(room); err != nil {
		if errors.Is(err, errs.ErrRoomNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		s.log.Error("Room lookup failed", "room", room, "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	count, err := s.storage.RoomMemberCount(room)
	if err != nil {
		s.log.Error("Member count failed", "room", room, "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(fiber.Map{"room": room, "count": count})
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	room := domain.RoomName(c.Params("room"))
	terms := c.Query("q")
	if terms == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing query parameter q"})
	}
	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid limit"})
		}
		limit = parsed
	}

	hits, err := s.index.Search(c.Context(), room, terms, limit)
	if err != nil {
		s.log.Error("Search failed", "room", room, "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(fiber.Map{"hits": hits})
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	if err := auth.ValidateRegister(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.log.Error("Password hashing failed", "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	account, err := s.accounts.CreateAccount(req.Username, hash, req.Lang)
	if err != nil {
		if errors.Is(err, errs.ErrAccountAlreadyExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "username already taken"})
		}
		s.log.Error("Account creation failed", "username", req.Username, "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	token, err := s.tokens.Generate(account.UserID)
	if err != nil {
		s.log.Error("Token generation failed", "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user_id": account.UserID,
		"token":   token,
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req auth.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	if err := auth.ValidateLogin(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	account, err := s.accounts.FindAccount(req.Username)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		s.log.Error("Account lookup failed", "username", req.Username, "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	match, err := auth.ComparePassword(req.Password, account.PasswordHash)
	if err != nil || !match {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	token, err := s.tokens.Generate(account.UserID)
	if err != nil {
		s.log.Error("Token generation failed", "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(fiber.Map{
		"user_id": account.UserID,
		"token":   token,
	})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.stats.Snapshot())
}

func (s *Server) handleRecent(c *fiber.Ctx) error {
	room := domain.RoomName(c.Params("room"))
	recent := s.timeline.Recent(room)
	return c.JSON(fiber.Map{
		"room":     room,
		"messages": lo.Map(recent, func(m domain.Message, _ int) messageView { return toMessageView(m) }),
	})
}
