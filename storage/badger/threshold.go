package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
)

// ThresholdRepository implements storage.ThresholdRepository for BadgerDB.
type ThresholdRepository struct {
	backend *Backend
}

var _ storage.ThresholdRepository = (*ThresholdRepository)(nil)

// NewThresholdRepository creates a new ThresholdRepository.
func NewThresholdRepository(backend *Backend) *ThresholdRepository {
	return &ThresholdRepository{backend: backend}
}

// GetThreshold returns the stored preference of userID.
func (r *ThresholdRepository) GetThreshold(ctx context.Context, userID string) (*core.ThresholdPreference, error) {
	var pref *core.ThresholdPreference
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		found, err := getValue(tx, makeThresholdKey(userID), func(val []byte) error {
			var unmarshalErr error
			pref, unmarshalErr = storage.UnmarshalThresholdPreference(val)
			return unmarshalErr
		})
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return pref, err
}

// SetThreshold stores a preference, replacing any previous value.
func (r *ThresholdRepository) SetThreshold(ctx context.Context, pref *core.ThresholdPreference) error {
	return r.backend.WithUpdate(func(tx *badger.Txn) error {
		if pref.UpdatedAt.IsZero() {
			pref.UpdatedAt = time.Now().UTC()
		}
		return tx.Set(makeThresholdKey(pref.UserID), storage.MarshalThresholdPreference(pref))
	})
}

// InitThreshold stores pref unless userID already has a preference.
func (r *ThresholdRepository) InitThreshold(ctx context.Context, pref *core.ThresholdPreference) (*core.ThresholdPreference, error) {
	var stored *core.ThresholdPreference
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		stored = nil
		key := makeThresholdKey(pref.UserID)
		found, err := getValue(tx, key, func(val []byte) error {
			var unmarshalErr error
			stored, unmarshalErr = storage.UnmarshalThresholdPreference(val)
			return unmarshalErr
		})
		if err != nil || found {
			return err
		}
		if pref.UpdatedAt.IsZero() {
			pref.UpdatedAt = time.Now().UTC()
		}
		stored = pref
		return tx.Set(key, storage.MarshalThresholdPreference(pref))
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}
