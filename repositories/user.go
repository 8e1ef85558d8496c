package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-relay/domain"
	errs "chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// userRow is the on-disk representation of a user.
type userRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Lang      string `json:"lang"`
	CreatedAt int64  `json:"created_at"`
}

func userKey(id string) []byte {
	return []byte("user:" + id)
}

// CreateUser persists a new user and returns it with its generated id.
// An empty lang falls back to the default code.
func (u *UserRepository) CreateUser(name, lang string) (domain.User, error) {
	if lang == "" {
		lang = domain.DefaultLang
	}
	row := userRow{
		ID:        uuid.NewString(),
		Name:      name,
		Lang:      lang,
		CreatedAt: time.Now().UTC().Unix(),
	}
	data, err := json.Marshal(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(row.ID), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: row.ID, Name: row.Name, Lang: row.Lang}, nil
}

// FindUser retrieves a user by id. Absence surfaces as ErrUserNotFound.
func (u *UserRepository) FindUser(id string) (domain.User, error) {
	var row userRow
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &row)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.User{}, fmt.Errorf("%w: %s", errs.ErrUserNotFound, id)
	}
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: row.ID, Name: row.Name, Lang: row.Lang}, nil
}
