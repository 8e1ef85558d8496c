package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/domain"
	errs "chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
)

// RoomRepository owns the room rows and the persisted n:n membership
// between users and rooms. Membership keys are separate rows so a join
// or leave never rewrites the room itself.
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) *RoomRepository {
	return &RoomRepository{db: db, log: log}
}

type roomRow struct {
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

func roomKey(name domain.RoomName) []byte {
	return []byte("room:" + string(name))
}

func memberKey(room domain.RoomName, userID string) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", room, userID))
}

func memberPrefix(room domain.RoomName) []byte {
	return []byte(fmt.Sprintf("member:%s:", room))
}

// CreateRoom persists a room on first join. Idempotent: a concurrent
// duplicate create neither errors nor duplicates the row.
func (r *RoomRepository) CreateRoom(name domain.RoomName) error {
	return r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(name))
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		row := roomRow{Name: string(name), CreatedAt: time.Now().UTC().Unix()}
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set(roomKey(name), data)
	})
}

// FindRoom retrieves a room by name. Absence surfaces as ErrRoomNotFound.
func (r *RoomRepository) FindRoom(name domain.RoomName) (domain.Room, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(name))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return domain.Room{}, fmt.Errorf("%w: %s", errs.ErrRoomNotFound, name)
	}
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room{Name: name}, nil
}

// DeleteRoom removes the room row. Deleting an absent room is a no-op,
// which keeps the non-atomic count-then-delete of the disconnect path
// safe when two last-leavers race.
func (r *RoomRepository) DeleteRoom(name domain.RoomName) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(roomKey(name))
	})
}

// RoomMemberCount counts persisted membership rows. This is the
// authoritative count for room garbage collection; the in-memory
// fan-out set tracks connections, not users.
func (r *RoomRepository) RoomMemberCount(name domain.RoomName) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := memberPrefix(name)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// AddMember records the (user, room) membership. Both rows must exist.
func (r *RoomRepository) AddMember(userID string, room domain.RoomName) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(userID)); err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: %s", errs.ErrUserNotFound, userID)
			}
			return err
		}
		if _, err := txn.Get(roomKey(room)); err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: %s", errs.ErrRoomNotFound, room)
			}
			return err
		}
		joinedAt := fmt.Sprintf("%d", time.Now().UTC().Unix())
		return txn.Set(memberKey(room, userID), []byte(joinedAt))
	})
}

// RemoveMember drops the (user, room) membership row. The user must
// exist; removing a membership that was never recorded is a no-op.
func (r *RoomRepository) RemoveMember(userID string, room domain.RoomName) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(userID)); err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: %s", errs.ErrUserNotFound, userID)
			}
			return err
		}
		return txn.Delete(memberKey(room, userID))
	})
}
