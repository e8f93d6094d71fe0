package storage

import (
	"context"
	"time"

	"github.com/poiesic/lostfound/core"
)

// ListingRepository provides read access to the listing pool, plus the
// write operations the embedded store needs to host listings itself.
// Implementations must be thread-safe and support concurrent access.
type ListingRepository interface {
	// ActiveListingsExcept returns active listings that are neither owned by
	// ownerID nor of the given kind, ordered by CreatedAt ascending.
	ActiveListingsExcept(ctx context.Context, ownerID string, kind core.Kind) ([]*core.Listing, error)

	// GetListing retrieves a single listing by ID.
	// Returns ErrNotFound if the listing doesn't exist.
	GetListing(ctx context.Context, id string) (*core.Listing, error)

	// AddListings stores new listings.
	// Returns ErrDuplicateKey if any ID is already taken.
	AddListings(ctx context.Context, listings ...*core.Listing) ([]*core.Listing, error)

	// UpdateStatus changes the status of a listing. All other fields are immutable.
	// Returns ErrNotFound if the listing doesn't exist.
	UpdateStatus(ctx context.Context, id string, status core.Status) (*core.Listing, error)

	// ListingsCreatedSince returns listings with CreatedAt >= since, ordered by CreatedAt.
	ListingsCreatedSince(ctx context.Context, since time.Time) ([]*core.Listing, error)

	// ListingsByOwner returns every listing owned by ownerID, ordered by CreatedAt.
	ListingsByOwner(ctx context.Context, ownerID string) ([]*core.Listing, error)

	// Close releases resources held by the repository.
	Close() error
}

// UserDirectory answers whether an account still exists.
type UserDirectory interface {
	// Exists reports whether userID belongs to a live account.
	Exists(ctx context.Context, userID string) (bool, error)
}

// UserRepository is the embedded account registry.
type UserRepository interface {
	UserDirectory

	// AddUser registers an account. Adding an existing user is a no-op.
	AddUser(ctx context.Context, userID string) error

	// DeleteUser removes an account.
	// Returns ErrNotFound if the user doesn't exist.
	DeleteUser(ctx context.Context, userID string) error
}

// NotificationRepository persists match notifications.
type NotificationRepository interface {
	// InsertIfAbsent atomically stores n unless a notification for the same
	// (RecipientID, PairKey) already exists. Returns true if n was stored.
	// The check and the insert are a single operation against the store.
	InsertIfAbsent(ctx context.Context, n *core.Notification) (bool, error)

	// MarkRead flips a notification owned by userID to read.
	// Returns ErrNotFound if no such notification belongs to userID.
	MarkRead(ctx context.Context, notificationID, userID string) error

	// MarkAllRead marks every unread notification of userID as read.
	// Returns the number of notifications changed.
	MarkAllRead(ctx context.Context, userID string) (int, error)

	// ListByRecipient returns the notifications of userID, newest first.
	ListByRecipient(ctx context.Context, userID string) ([]*core.Notification, error)

	// CountUnread returns how many notifications of userID are unread.
	CountUnread(ctx context.Context, userID string) (int, error)

	// HasListing reports whether any notification references listingID.
	HasListing(ctx context.Context, listingID string) (bool, error)
}

// ThresholdRepository persists per-user threshold preferences.
type ThresholdRepository interface {
	// GetThreshold returns the stored preference.
	// Returns ErrNotFound if the user never stored one.
	GetThreshold(ctx context.Context, userID string) (*core.ThresholdPreference, error)

	// SetThreshold stores a preference, replacing any previous value.
	SetThreshold(ctx context.Context, pref *core.ThresholdPreference) error

	// InitThreshold stores pref only if the user has no preference yet and
	// returns whichever preference is stored afterwards.
	InitThreshold(ctx context.Context, pref *core.ThresholdPreference) (*core.ThresholdPreference, error)
}

// CheckpointRepository persists progress of background processors.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)
}

// JobRepository is the durable ledger of scheduled evaluations.
type JobRepository interface {
	// Enqueue records a pending evaluation. Enqueuing an existing job
	// increments its attempt counter.
	Enqueue(ctx context.Context, listingID string) (*core.PendingJob, error)

	// Complete removes a pending evaluation. Completing a missing job is a no-op.
	Complete(ctx context.Context, listingID string) error

	// Pending returns every pending evaluation, oldest first.
	Pending(ctx context.Context) ([]*core.PendingJob, error)
}
