// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package lostfound wires the matching engine together: storage, threshold
// preferences, the notification dispatcher, the match orchestrator and the
// background trigger.
package lostfound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/poiesic/lostfound/api"
	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/match"
	"github.com/poiesic/lostfound/metrics"
	"github.com/poiesic/lostfound/notify"
	"github.com/poiesic/lostfound/storage"
	"github.com/poiesic/lostfound/storage/badger"
	"github.com/poiesic/lostfound/storage/postgres"
	"github.com/poiesic/lostfound/storage/redis"
	"github.com/poiesic/lostfound/threshold"
	"github.com/poiesic/lostfound/trigger"
)

// Engine owns every component of a running matching engine.
type Engine struct {
	local    *badger.Repositories
	postgres *postgres.Repositories
	redis    *goredis.Client

	listings      storage.ListingRepository
	users         storage.UserRepository
	notifications storage.NotificationRepository

	thresholds   *threshold.Store
	dispatcher   *notify.Dispatcher
	orchestrator *match.Orchestrator
	trigger      *trigger.Trigger
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger    *slog.Logger
	publisher notify.Publisher
	progress  io.Writer
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPublisher announces every new notification through publisher.
func WithPublisher(publisher notify.Publisher) Option {
	return func(o *engineOptions) { o.publisher = publisher }
}

// WithProgress reports rescan progress to w.
func WithProgress(w io.Writer) Option {
	return func(o *engineOptions) { o.progress = w }
}

// Open builds an Engine from config. Close must be called when done.
func Open(ctx context.Context, config *Config, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(config.DataDir, config.InMemory)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		local:  badger.NewRepositories(backend),
		logger: options.logger,
	}
	e.listings = e.local.Listings
	e.users = e.local.Users
	e.notifications = e.local.Notifications
	var thresholdRepo storage.ThresholdRepository = e.local.Thresholds

	if config.PostgresDSN != "" {
		db, err := postgres.Open(ctx, config.PostgresDSN)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.postgres = postgres.NewRepositories(db)
		if err := postgres.Migrate(db); err != nil {
			e.Close()
			return nil, err
		}
		e.listings = e.postgres.Listings
		e.users = e.postgres.Users
		e.notifications = e.postgres.Notifications
		thresholdRepo = e.postgres.Thresholds
	}

	if config.RedisURL != "" {
		client, err := redis.Open(ctx, config.RedisURL)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.redis = client
		thresholdRepo = redis.NewThresholdRepository(client, config.RedisPrefix)
	}

	if err := e.build(config, thresholdRepo, options); err != nil {
		e.Close()
		return nil, err
	}

	e.logger.Info("engine opened",
		"data_dir", config.DataDir,
		"in_memory", config.InMemory,
		"postgres", config.PostgresDSN != "",
		"redis", config.RedisURL != "")
	return e, nil
}

func (e *Engine) build(config *Config, thresholdRepo storage.ThresholdRepository, options *engineOptions) error {
	var err error
	e.thresholds, err = threshold.NewStore(thresholdRepo,
		threshold.WithDefault(config.DefaultThreshold),
		threshold.WithLogger(e.logger))
	if err != nil {
		return err
	}

	dispatchOpts := []notify.Option{notify.WithLogger(e.logger)}
	if options.publisher != nil {
		dispatchOpts = append(dispatchOpts, notify.WithPublisher(options.publisher))
	}
	e.dispatcher, err = notify.NewDispatcher(e.notifications, dispatchOpts...)
	if err != nil {
		return err
	}

	e.orchestrator, err = match.NewOrchestrator(e.listings, e.users, e.thresholds, e.dispatcher,
		match.WithWeights(config.Weights),
		match.WithMonitor(metrics.NewMonitor()),
		match.WithLogger(e.logger))
	if err != nil {
		return err
	}

	triggerOpts := []trigger.Option{
		trigger.WithConfig(config.Trigger),
		trigger.WithObserver(metrics.JobObserver{}),
		trigger.WithLogger(e.logger),
	}
	if options.progress != nil {
		triggerOpts = append(triggerOpts, trigger.WithProgress(options.progress))
	}
	e.trigger, err = trigger.New(e.orchestrator, e.listings, e.notifications,
		e.local.Jobs, e.local.Checkpoints, triggerOpts...)
	return err
}

// Close stops background work, then releases every store.
func (e *Engine) Close() error {
	if e.trigger != nil {
		e.trigger.Release()
		e.trigger.Wait()
	}
	var errs []error
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	if e.postgres != nil {
		errs = append(errs, e.postgres.Close())
	}
	errs = append(errs, e.local.Close())
	if err := errors.Join(errs...); err != nil {
		e.logger.Error("error closing engine", "err", err)
		return err
	}
	return nil
}

// AddUser registers an account whose listings may be matched.
func (e *Engine) AddUser(ctx context.Context, userID string) error {
	if userID == "" {
		return core.ErrEmptyUserID
	}
	return e.users.AddUser(ctx, userID)
}

// AddListing stores a new listing and schedules its evaluation.
func (e *Engine) AddListing(ctx context.Context, listing *core.Listing) error {
	if err := core.ValidateListing(listing); err != nil {
		return err
	}
	if _, err := e.listings.AddListings(ctx, listing); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("%w: listing %s already exists", core.ErrInvalidArgument, listing.ID)
		}
		return fmt.Errorf("%w: storing listing %s: %w", core.ErrTransientStore, listing.ID, err)
	}
	return e.trigger.OnListingCreated(ctx, listing)
}

// SetListingStatus moves a listing to status. Claimed and withdrawn
// listings leave every candidate pool.
func (e *Engine) SetListingStatus(ctx context.Context, listingID string, status core.Status) (*core.Listing, error) {
	listing, err := e.listings.UpdateStatus(ctx, listingID, status)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: listing %s", core.ErrNotFound, listingID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: updating listing %s: %w", core.ErrTransientStore, listingID, err)
	}
	return listing, nil
}

// SetThreshold stores a user's threshold and re-evaluates their active listings.
func (e *Engine) SetThreshold(ctx context.Context, userID string, value float64) (*core.ThresholdPreference, error) {
	pref, err := e.thresholds.Set(ctx, userID, value)
	if err != nil {
		return nil, err
	}
	if _, err := e.trigger.OnThresholdChanged(ctx, userID); err != nil {
		e.logger.Warn("re-evaluation after threshold change failed", "user", userID, "err", err)
	}
	return pref, nil
}

// Run recovers unfinished work and sweeps periodically until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	return e.trigger.Run(ctx)
}

// Services returns the components the HTTP API delegates to.
func (e *Engine) Services() api.Services {
	return api.Services{
		Notifications: e.dispatcher,
		Thresholds:    e.thresholds,
		Matcher:       e.orchestrator,
		Scheduler:     e.trigger,
	}
}

func (e *Engine) Listings() storage.ListingRepository {
	return e.listings
}

func (e *Engine) Thresholds() *threshold.Store {
	return e.thresholds
}

func (e *Engine) Dispatcher() *notify.Dispatcher {
	return e.dispatcher
}

func (e *Engine) Orchestrator() *match.Orchestrator {
	return e.orchestrator
}

func (e *Engine) Trigger() *trigger.Trigger {
	return e.trigger
}
