package threshold

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
)

// ErrRepositoryRequired is returned when no threshold repository is provided.
var ErrRepositoryRequired = errors.New("threshold repository required")

// Store reads and writes user thresholds.
// Reads go straight to the repository, so a Set is visible to every
// evaluation that starts afterwards.
type Store struct {
	repo         storage.ThresholdRepository
	defaultValue float64
	logger       *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

// WithDefault sets the threshold of users who never chose one.
// Default is core.DefaultThreshold.
func WithDefault(value float64) Option {
	return func(s *Store) error {
		if err := core.ValidateThreshold(value); err != nil {
			return err
		}
		s.defaultValue = value
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore creates a Store over repo.
func NewStore(repo storage.ThresholdRepository, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	s := &Store{
		repo:         repo,
		defaultValue: core.DefaultThreshold,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Default returns the threshold given to new users.
func (s *Store) Default() float64 {
	return s.defaultValue
}

// Get returns the threshold of userID, storing the default on first read.
func (s *Store) Get(ctx context.Context, userID string) (float64, error) {
	pref, err := s.Preference(ctx, userID)
	if err != nil {
		return 0, err
	}
	return pref.Threshold, nil
}

// Preference returns the full stored preference of userID, storing the
// default on first read.
func (s *Store) Preference(ctx context.Context, userID string) (*core.ThresholdPreference, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}

	pref, err := s.repo.GetThreshold(ctx, userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: reading threshold: %w", core.ErrTransientStore, err)
	}

	pref, err = s.repo.InitThreshold(ctx, &core.ThresholdPreference{
		UserID:    userID,
		Threshold: s.defaultValue,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: storing default threshold: %w", core.ErrTransientStore, err)
	}
	s.logger.Debug("initialized threshold", "user", userID, "threshold", pref.Threshold)
	return pref, nil
}

// Set stores value as the threshold of userID.
// Returns an error wrapping core.ErrInvalidArgument if value is outside [0,1].
func (s *Store) Set(ctx context.Context, userID string, value float64) (*core.ThresholdPreference, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	if err := core.ValidateThreshold(value); err != nil {
		return nil, err
	}

	pref := &core.ThresholdPreference{
		UserID:    userID,
		Threshold: value,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.repo.SetThreshold(ctx, pref); err != nil {
		return nil, fmt.Errorf("%w: writing threshold: %w", core.ErrTransientStore, err)
	}
	s.logger.Info("threshold updated", "user", userID, "threshold", value)
	return pref, nil
}
