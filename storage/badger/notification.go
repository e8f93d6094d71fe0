package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
)

// NotificationRepository implements storage.NotificationRepository for BadgerDB.
//
// Uniqueness per (recipient, pair) rests on a dedicated index key that every
// insert reads before writing. BadgerDB transactions are serializable, so two
// concurrent inserts for the same recipient and pair both read the missing
// key, and the later commit fails with a conflict. WithUpdate replays it, the
// replay sees the committed key and reports the notification as a duplicate.
type NotificationRepository struct {
	backend *Backend
}

var _ storage.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(backend *Backend) *NotificationRepository {
	return &NotificationRepository{backend: backend}
}

// InsertIfAbsent stores n unless the recipient already has a notification for its pair.
func (r *NotificationRepository) InsertIfAbsent(ctx context.Context, n *core.Notification) (bool, error) {
	if n.ID == "" || n.RecipientID == "" || n.PairKey == "" {
		return false, storage.ErrInvalidRecord
	}

	var inserted bool
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		inserted = false

		uniqueKey := makeNotificationUniqueKey(n.RecipientID, n.PairKey)
		exists, err := getValue(tx, uniqueKey, func([]byte) error { return nil })
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		n.CreatedAt = n.CreatedAt.UTC()
		ref := storage.MarshalRef(n.ID)
		if err := tx.Set(uniqueKey, ref); err != nil {
			return err
		}
		if err := tx.Set(makeNotificationKey(n.ID), storage.MarshalNotification(n)); err != nil {
			return err
		}
		if err := tx.Set(makeNotificationRecipientKey(n.RecipientID, n.CreatedAt, n.ID), ref); err != nil {
			return err
		}
		for _, listingID := range []string{n.RelatedListingID, n.MatchedListingID} {
			if listingID == "" {
				continue
			}
			if err := tx.Set(makeNotificationListingKey(listingID, n.ID), ref); err != nil {
				return err
			}
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// MarkRead flips a notification owned by userID to read.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, userID string) error {
	return r.backend.WithUpdate(func(tx *badger.Txn) error {
		key := makeNotificationKey(notificationID)
		n, err := readNotification(tx, key)
		if err != nil {
			return err
		}
		if n == nil || n.RecipientID != userID {
			return storage.ErrNotFound
		}
		if n.Read {
			return nil
		}
		n.Read = true
		return tx.Set(key, storage.MarshalNotification(n))
	})
}

// MarkAllRead marks every unread notification of userID as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	var changed int
	err := r.backend.WithUpdate(func(tx *badger.Txn) error {
		changed = 0
		notifications, err := r.listByRecipient(tx, userID)
		if err != nil {
			return err
		}
		for _, n := range notifications {
			if n.Read {
				continue
			}
			n.Read = true
			if err := tx.Set(makeNotificationKey(n.ID), storage.MarshalNotification(n)); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

// ListByRecipient returns the notifications of userID, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, userID string) ([]*core.Notification, error) {
	var results []*core.Notification
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = r.listByRecipient(tx, userID)
		return err
	}, false)
	return results, err
}

// CountUnread returns how many notifications of userID are unread.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	notifications, err := r.ListByRecipient(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range notifications {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// errStopScan ends a prefix scan early.
var errStopScan = errors.New("stop scan")

// HasListing reports whether any notification references listingID.
func (r *NotificationRepository) HasListing(ctx context.Context, listingID string) (bool, error) {
	var found bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		err := scanPrefix(tx, makePartialNotificationListingKey(listingID), false, func(_, _ []byte) error {
			found = true
			return errStopScan
		})
		if errors.Is(err, errStopScan) {
			return nil
		}
		return err
	}, false)
	return found, err
}

// listByRecipient walks the recipient index backwards so the newest come first.
func (r *NotificationRepository) listByRecipient(tx *badger.Txn, userID string) ([]*core.Notification, error) {
	var results []*core.Notification
	err := scanPrefix(tx, makePartialNotificationRecipientKey(userID), true, func(_, val []byte) error {
		id, err := storage.UnmarshalRef(val)
		if err != nil {
			return err
		}
		n, err := readNotification(tx, makeNotificationKey(id))
		if err != nil {
			return err
		}
		if n != nil {
			results = append(results, n)
		}
		return nil
	})
	return results, err
}

// readNotification reads a notification from the transaction.
// Returns nil, nil if it doesn't exist.
func readNotification(tx *badger.Txn, key []byte) (*core.Notification, error) {
	var n *core.Notification
	_, err := getValue(tx, key, func(val []byte) error {
		var unmarshalErr error
		n, unmarshalErr = storage.UnmarshalNotification(val)
		return unmarshalErr
	})
	return n, err
}
