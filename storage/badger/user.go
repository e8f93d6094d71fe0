package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lostfound/storage"
)

// UserRepository implements storage.UserRepository for BadgerDB.
type UserRepository struct {
	backend *Backend
}

var _ storage.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(backend *Backend) *UserRepository {
	return &UserRepository{backend: backend}
}

// AddUser registers an account.
func (r *UserRepository) AddUser(ctx context.Context, userID string) error {
	return r.backend.WithUpdate(func(tx *badger.Txn) error {
		return tx.Set(makeUserKey(userID), storage.MarshalRef(userID))
	})
}

// DeleteUser removes an account.
func (r *UserRepository) DeleteUser(ctx context.Context, userID string) error {
	return r.backend.WithUpdate(func(tx *badger.Txn) error {
		key := makeUserKey(userID)
		found, err := getValue(tx, key, func([]byte) error { return nil })
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		return tx.Delete(key)
	})
}

// Exists reports whether userID is registered.
func (r *UserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	var found bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		found, err = getValue(tx, makeUserKey(userID), func([]byte) error { return nil })
		return err
	}, false)
	return found, err
}
