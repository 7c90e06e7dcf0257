package session

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/consertja/consertja/internal/models"
)

const (
	keyUserID   = "user_id"
	keyUserType = "user_type"
)

// BadgerStore keeps the session in a local badger directory
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the store at path
func OpenBadgerStore(path string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load() (models.Session, error) {
	var sess models.Session
	err := s.db.View(func(txn *badger.Txn) error {
		userID, err := get(txn, keyUserID)
		if err != nil {
			return err
		}
		userType, err := get(txn, keyUserType)
		if err != nil {
			return err
		}
		sess = models.Session{UserID: userID, Role: models.Role(userType)}
		return nil
	})
	return sess, err
}

func (s *BadgerStore) Save(sess models.Session) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyUserID), []byte(sess.UserID)); err != nil {
			return err
		}
		if sess.Role == "" {
			return txn.Delete([]byte(keyUserType))
		}
		return txn.Set([]byte(keyUserType), []byte(sess.Role))
	})
}

func (s *BadgerStore) Clear() error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(keyUserID)); err != nil {
			return err
		}
		return txn.Delete([]byte(keyUserType))
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// get returns "" for a missing key
func get(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(value), nil
}
