package repositories

import (
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Storage is the badger-backed Storage Service consumed by the core.
// It composes the per-entity repositories behind the single interface
// the sessions depend on. Each call is its own unit of work.
type Storage struct {
	users    *UserRepository
	rooms    *RoomRepository
	messages *MessageRepository
}

var _ contract.IStorage = (*Storage)(nil)

func NewStorage(db *badger.DB, log *slog.Logger, limitMessages *int) *Storage {
	return &Storage{
		users:    NewUserRepository(db),
		rooms:    NewRoomRepository(db, log),
		messages: NewMessageRepository(db, log, limitMessages),
	}
}

func (s *Storage) FindUser(id string) (domain.User, error) {
	return s.users.FindUser(id)
}

func (s *Storage) CreateUser(name, lang string) (domain.User, error) {
	return s.users.CreateUser(name, lang)
}

func (s *Storage) FindRoom(name domain.RoomName) (domain.Room, error) {
	return s.rooms.FindRoom(name)
}

func (s *Storage) CreateRoom(name domain.RoomName) error {
	return s.rooms.CreateRoom(name)
}

func (s *Storage) DeleteRoom(name domain.RoomName) error {
	return s.rooms.DeleteRoom(name)
}

func (s *Storage) RoomMemberCount(name domain.RoomName) (int, error) {
	return s.rooms.RoomMemberCount(name)
}

func (s *Storage) AddMember(userID string, room domain.RoomName) error {
	return s.rooms.AddMember(userID, room)
}

func (s *Storage) RemoveMember(userID string, room domain.RoomName) error {
	return s.rooms.RemoveMember(userID, room)
}

// CreateMessage resolves the author, assigns the server timestamp and
// persists the row. The returned message carries the timestamp that is
// broadcast to the room.
func (s *Storage) CreateMessage(authorID string, room domain.RoomName, content, lang string) (domain.Message, error) {
	if _, err := s.users.FindUser(authorID); err != nil {
		return domain.Message{}, err
	}
	if _, err := s.rooms.FindRoom(room); err != nil {
		return domain.Message{}, err
	}
	message := domain.Message{
		ID:       uuid.New(),
		Room:     room,
		AuthorID: authorID,
		Content:  content,
		Lang:     lang,
		At:       time.Now().UTC(),
	}
	if err := s.messages.StoreMessage(message); err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

func (s *Storage) Messages(room domain.RoomName, cursor *string) ([]domain.Message, *string, error) {
	return s.messages.Messages(room, cursor)
}
