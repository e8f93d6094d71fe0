package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
)

// ErrRepositoryRequired is returned when no notification repository is provided.
var ErrRepositoryRequired = errors.New("notification repository required")

const matchTitle = "Potential match found"

// Publisher fans out newly created notifications, for example to a message bus.
// Publishing is best effort and never undoes a stored notification.
type Publisher interface {
	PublishNotification(ctx context.Context, n *core.Notification) error
}

// Dispatcher creates and serves match notifications.
type Dispatcher struct {
	repo      storage.NotificationRepository
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithPublisher sets where new notifications are announced.
func WithPublisher(publisher Publisher) Option {
	return func(d *Dispatcher) error {
		d.publisher = publisher
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// WithClock sets the source of notification timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) error {
		if now != nil {
			d.now = now
		}
		return nil
	}
}

// NewDispatcher creates a Dispatcher over repo.
func NewDispatcher(repo storage.NotificationRepository, opts ...Option) (*Dispatcher, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	d := &Dispatcher{
		repo:   repo,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// CommitMatch notifies both owners of a matched pair, each at most once.
// The two sides are inserted independently; a false side means that owner
// already had a notification for pairKey, which is not an error.
func (d *Dispatcher) CommitMatch(ctx context.Context, pairKey string, a, b *core.Listing, score float64) (core.CommitResult, error) {
	if err := core.ValidatePair(pairKey, a, b); err != nil {
		return core.CommitResult{}, err
	}

	createdAt := d.now().UTC()
	var result core.CommitResult
	var err error

	result.CreatedForA, err = d.commitSide(ctx, pairKey, a, b, score, createdAt)
	if err != nil {
		return result, err
	}
	result.CreatedForB, err = d.commitSide(ctx, pairKey, b, a, score, createdAt)
	if err != nil {
		return result, err
	}
	return result, nil
}

// commitSide notifies the owner of own about matched.
func (d *Dispatcher) commitSide(ctx context.Context, pairKey string, own, matched *core.Listing, score float64, createdAt time.Time) (bool, error) {
	n := &core.Notification{
		ID:               core.NotificationID(own.OwnerID, pairKey),
		RecipientID:      own.OwnerID,
		Type:             core.NotificationMatchFound,
		Title:            matchTitle,
		Message:          fmt.Sprintf("Potential match found for your %s item '%s'!", own.Kind, own.Title),
		RelatedListingID: own.ID,
		MatchedListingID: matched.ID,
		PairKey:          pairKey,
		Similarity:       score,
		CreatedAt:        createdAt,
	}

	created, err := d.repo.InsertIfAbsent(ctx, n)
	if err != nil {
		return false, fmt.Errorf("%w: inserting notification for %s: %w", core.ErrTransientStore, own.OwnerID, err)
	}
	if !created {
		d.logger.Debug("notification already exists", "recipient", own.OwnerID, "pair", pairKey)
		return false, nil
	}

	d.logger.Info("notification created", "recipient", own.OwnerID, "pair", pairKey, "similarity", score)
	if d.publisher != nil {
		if err := d.publisher.PublishNotification(ctx, n); err != nil {
			d.logger.Warn("failed to publish notification", "id", n.ID, "err", err)
		}
	}
	return true, nil
}

// MarkRead marks a notification of userID as read.
// Returns an error wrapping core.ErrNotFound if userID has no such notification.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID, userID string) error {
	if userID == "" {
		return core.ErrEmptyUserID
	}
	if notificationID == "" {
		return fmt.Errorf("%w: notification id cannot be empty", core.ErrInvalidArgument)
	}
	err := d.repo.MarkRead(ctx, notificationID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: notification %s", core.ErrNotFound, notificationID)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrTransientStore, err)
	}
	return nil
}

// MarkAllRead marks every notification of userID as read and returns how many changed.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, core.ErrEmptyUserID
	}
	n, err := d.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrTransientStore, err)
	}
	return n, nil
}

// List returns the notifications of userID, newest first.
func (d *Dispatcher) List(ctx context.Context, userID string) ([]*core.Notification, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	notifications, err := d.repo.ListByRecipient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrTransientStore, err)
	}
	if notifications == nil {
		notifications = []*core.Notification{}
	}
	return notifications, nil
}

// UnreadCount returns how many notifications of userID are unread.
func (d *Dispatcher) UnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, core.ErrEmptyUserID
	}
	n, err := d.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrTransientStore, err)
	}
	return n, nil
}
