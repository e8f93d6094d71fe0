package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
)

const notificationColumns = `id, recipient_id, type, title, message, related_listing_id, matched_listing_id, pair_key, similarity, read, created_at`

// NotificationRepository implements storage.NotificationRepository for PostgreSQL.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// InsertIfAbsent stores n unless the recipient already has a notification for its pair.
func (r *NotificationRepository) InsertIfAbsent(ctx context.Context, n *core.Notification) (bool, error) {
	if n.ID == "" || n.RecipientID == "" || n.PairKey == "" {
		return false, storage.ErrInvalidRecord
	}

	const query = `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (recipient_id, pair_key) DO NOTHING`

	n.CreatedAt = n.CreatedAt.UTC()
	res, err := r.db.ExecContext(ctx, query,
		n.ID, n.RecipientID, string(n.Type), n.Title, n.Message,
		n.RelatedListingID, n.MatchedListingID, n.PairKey, n.Similarity, n.Read, n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("notifications: insert %s: %w", n.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("notifications: insert %s: %w", n.ID, err)
	}
	return affected == 1, nil
}

// MarkRead flips a notification owned by userID to read.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, userID string) error {
	const query = `UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`

	res, err := r.db.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return fmt.Errorf("notifications: mark read %s: %w", notificationID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("notifications: mark read %s: %w", notificationID, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of userID as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	const query = `UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND NOT read`

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("notifications: mark all read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("notifications: mark all read: %w", err)
	}
	return int(affected), nil
}

// ListByRecipient returns the notifications of userID, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, userID string) ([]*core.Notification, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("notifications: list: %w", err)
	}
	defer rows.Close()

	var results []*core.Notification
	for rows.Next() {
		var (
			n   core.Notification
			typ string
		)
		err := rows.Scan(&n.ID, &n.RecipientID, &typ, &n.Title, &n.Message,
			&n.RelatedListingID, &n.MatchedListingID, &n.PairKey, &n.Similarity, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("notifications: list: %w", err)
		}
		n.Type = core.NotificationType(typ)
		n.CreatedAt = n.CreatedAt.UTC()
		results = append(results, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifications: list: %w", err)
	}
	return results, nil
}

// CountUnread returns how many notifications of userID are unread.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	const query = `SELECT count(*) FROM notifications WHERE recipient_id = $1 AND NOT read`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("notifications: count unread: %w", err)
	}
	return count, nil
}

// HasListing reports whether any notification references listingID.
func (r *NotificationRepository) HasListing(ctx context.Context, listingID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE related_listing_id = $1 OR matched_listing_id = $1
		)`

	var found bool
	if err := r.db.QueryRowContext(ctx, query, listingID).Scan(&found); err != nil {
		return false, fmt.Errorf("notifications: has listing %s: %w", listingID, err)
	}
	return found, nil
}
