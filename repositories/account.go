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

// AccountRepository holds login credentials for the auth collaborator.
// An account wraps a chat user: creating one also creates the user row
// the relay attributes messages to.
type AccountRepository struct {
	db *badger.DB
}

func NewAccountRepository(db *badger.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

type Account struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Lang         string `json:"lang"`
	CreatedAt    int64  `json:"created_at"`
}

func accountKey(username string) []byte {
	return []byte("account:" + username)
}

// CreateAccount persists the credentials and the backing user in one
// transaction. It returns ErrAccountAlreadyExists when the username is
// taken.
func (a *AccountRepository) CreateAccount(username, passwordHash, lang string) (Account, error) {
	if lang == "" {
		lang = domain.DefaultLang
	}
	now := time.Now().UTC().Unix()
	account := Account{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Lang:         lang,
		CreatedAt:    now,
	}
	accountData, err := json.Marshal(account)
	if err != nil {
		return Account{}, fmt.Errorf("marshal failed: %w", err)
	}
	userData, err := json.Marshal(userRow{
		ID:        account.UserID,
		Name:      username,
		Lang:      lang,
		CreatedAt: now,
	})
	if err != nil {
		return Account{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(accountKey(username)); err == nil {
			return errs.ErrAccountAlreadyExists
		}
		if err := txn.Set(accountKey(username), accountData); err != nil {
			return err
		}
		return txn.Set(userKey(account.UserID), userData)
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// FindAccount retrieves an account by username.
func (a *AccountRepository) FindAccount(username string) (Account, error) {
	var account Account
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(accountKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &account)
		})
	})
	if err == badger.ErrKeyNotFound {
		return Account{}, fmt.Errorf("%w: %s", errs.ErrInvalidCredentials, username)
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}
