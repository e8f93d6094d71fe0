package trigger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
)

// rescanProcessor names the checkpoint of the crash-recovery rescan.
const rescanProcessor = "rescan"

// minRequeueDelay bounds how fast a job rejected by a full queue is retried
// when sweeping is disabled.
const minRequeueDelay = 10 * time.Millisecond

// Evaluator runs one match evaluation for a listing.
type Evaluator interface {
	EvaluateByID(ctx context.Context, listingID string) ([]core.SimilarityResult, error)
}

// ListingSource lists listings by creation time and by owner.
type ListingSource interface {
	CreatedSinceSource
	ListingsByOwner(ctx context.Context, ownerID string) ([]*core.Listing, error)
}

// NotificationIndex reports whether a listing has produced any notification.
type NotificationIndex interface {
	HasListing(ctx context.Context, listingID string) (bool, error)
}

// Observer is told about every job, for metrics.
type Observer interface {
	JobScheduled(listingID string)
	JobFinished(listingID string, elapsed time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) JobScheduled(string)                       {}
func (noopObserver) JobFinished(string, time.Duration, error) {}

// RecoverStats summarizes one Recover call.
type RecoverStats struct {
	Resubmitted int
	Rescanned   int
	Scheduled   int
}

// Trigger runs match evaluations in the background.
type Trigger struct {
	evaluator     Evaluator
	listings      ListingSource
	notifications NotificationIndex
	jobs          storage.JobRepository
	checkpoints   storage.CheckpointRepository
	pool          *ants.Pool
	config        *Config
	observer      Observer
	progress      io.Writer
	logger        *slog.Logger

	queue      chan string
	dispatched chan struct{}

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	// inFlight maps a queued or running listing to whether it must run
	// again when done.
	inFlight map[string]bool
}

// Option configures a Trigger.
type Option func(*Trigger) error

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(t *Trigger) error {
		if config == nil {
			return nil
		}
		if err := config.Validate(); err != nil {
			return err
		}
		t.config = config
		return nil
	}
}

// WithObserver sets an observer for job outcomes.
func WithObserver(observer Observer) Option {
	return func(t *Trigger) error {
		if observer == nil {
			observer = noopObserver{}
		}
		t.observer = observer
		return nil
	}
}

// WithProgress makes Recover report rescan progress to w.
func WithProgress(w io.Writer) Option {
	return func(t *Trigger) error {
		t.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trigger) error {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
		return nil
	}
}

// New creates a Trigger. Release must be called when done.
func New(
	evaluator Evaluator,
	listings ListingSource,
	notifications NotificationIndex,
	jobs storage.JobRepository,
	checkpoints storage.CheckpointRepository,
	opts ...Option,
) (*Trigger, error) {
	if evaluator == nil {
		return nil, ErrEvaluatorRequired
	}
	if listings == nil {
		return nil, ErrListingSourceRequired
	}
	if notifications == nil {
		return nil, ErrNotificationIndexRequired
	}
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointRepositoryRequired
	}

	t := &Trigger{
		evaluator:     evaluator,
		listings:      listings,
		notifications: notifications,
		jobs:          jobs,
		checkpoints:   checkpoints,
		config:        DefaultConfig(),
		observer:      noopObserver{},
		logger:        slog.Default(),
		inFlight:      make(map[string]bool),
	}

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(t.config.PoolSize)
	if err != nil {
		return nil, err
	}
	t.pool = pool
	t.queue = make(chan string, t.config.QueueSize)
	t.dispatched = make(chan struct{})
	go t.dispatch()
	return t, nil
}

// OnListingCreated schedules one evaluation of listing and returns without
// waiting for it. The job is recorded in the ledger before it is submitted,
// so it survives a restart.
func (t *Trigger) OnListingCreated(ctx context.Context, listing *core.Listing) error {
	if err := core.ValidateListing(listing); err != nil {
		return err
	}
	if !listing.IsActive() {
		t.logger.Debug("not scheduling inactive listing", "listing", listing.ID, "status", listing.Status)
		return nil
	}
	return t.Schedule(ctx, listing.ID)
}

// Schedule records and submits an evaluation of listingID.
func (t *Trigger) Schedule(ctx context.Context, listingID string) error {
	if listingID == "" {
		return fmt.Errorf("%w: empty listing id", core.ErrInvalidListing)
	}
	if _, err := t.jobs.Enqueue(ctx, listingID); err != nil {
		return fmt.Errorf("%w: recording job for %s: %w", core.ErrTransientStore, listingID, err)
	}
	t.observer.JobScheduled(listingID)
	t.submit(listingID)
	return nil
}

// OnThresholdChanged re-evaluates every active listing of userID, so matches
// a lowered threshold now admits get committed. Returns the number scheduled.
func (t *Trigger) OnThresholdChanged(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, core.ErrEmptyUserID
	}
	listings, err := t.listings.ListingsByOwner(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: listings of %s: %w", core.ErrTransientStore, userID, err)
	}

	scheduled := 0
	for _, listing := range listings {
		if !listing.IsActive() {
			continue
		}
		if err := t.Schedule(ctx, listing.ID); err != nil {
			return scheduled, err
		}
		scheduled++
	}
	t.logger.Info("re-evaluating listings after threshold change", "user", userID, "listings", scheduled)
	return scheduled, nil
}

// Recover resubmits every job left in the ledger, then rescans listings
// created since the last rescan that have no notification yet.
func (t *Trigger) Recover(ctx context.Context) (RecoverStats, error) {
	var stats RecoverStats
	scanStart := time.Now().UTC()

	pending, err := t.jobs.Pending(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: pending jobs: %w", core.ErrTransientStore, err)
	}
	resubmitted := make(map[string]struct{}, len(pending))
	for _, job := range pending {
		t.submit(job.ListingID)
		resubmitted[job.ListingID] = struct{}{}
		stats.Resubmitted++
	}

	checkpoint, err := t.checkpoints.LoadCheckpoint(ctx, rescanProcessor)
	if err != nil {
		return stats, fmt.Errorf("%w: loading checkpoint: %w", core.ErrTransientStore, err)
	}
	var since time.Time
	if checkpoint != nil {
		since = checkpoint.Watermark.Add(-t.config.RescanOverlap)
	}

	iterator := NewListingIterator(t.listings, t.config.BatchSize)
	var tracker *ProgressTracker
	if t.progress != nil {
		total, err := iterator.Count(ctx, since)
		if err != nil {
			return stats, fmt.Errorf("%w: counting listings: %w", core.ErrTransientStore, err)
		}
		tracker = NewProgressTracker(t.progress, total, t.config.BatchSize)
		tracker.Start()
	}

	err = iterator.ForEach(ctx, since, func(batch []*core.Listing) error {
		for _, listing := range batch {
			stats.Rescanned++
			if !listing.IsActive() {
				continue
			}
			if _, ok := resubmitted[listing.ID]; ok {
				continue
			}
			notified, err := t.notifications.HasListing(ctx, listing.ID)
			if err != nil {
				return err
			}
			if notified {
				continue
			}
			if err := t.Schedule(ctx, listing.ID); err != nil {
				return err
			}
			stats.Scheduled++
		}
		if tracker != nil {
			tracker.Increment(len(batch))
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("rescan: %w", err)
	}
	if tracker != nil {
		tracker.Finish()
	}

	err = t.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: rescanProcessor,
		Watermark:     scanStart,
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return stats, fmt.Errorf("%w: saving checkpoint: %w", core.ErrTransientStore, err)
	}

	t.logger.Info("recovery complete", "resubmitted", stats.Resubmitted,
		"rescanned", stats.Rescanned, "scheduled", stats.Scheduled)
	return stats, nil
}

// Run calls Recover once, then again every SweepInterval until ctx is done.
func (t *Trigger) Run(ctx context.Context) error {
	if _, err := t.Recover(ctx); err != nil && ctx.Err() == nil {
		t.logger.Error("recovery failed", "err", err)
	}
	if t.config.SweepInterval == 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(t.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := t.Recover(ctx); err != nil && ctx.Err() == nil {
				t.logger.Error("sweep failed", "err", err)
			}
		}
	}
}

// Wait blocks until every submitted job has finished.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

// Release stops accepting jobs, lets queued jobs start and releases the pool.
// The trigger should not be used after calling Release.
func (t *Trigger) Release() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	t.mu.Unlock()

	<-t.dispatched
	t.pool.Release()
}

// submit queues listingID without blocking. A listing already queued or
// running is marked to run once more instead of running twice at once.
func (t *Trigger) submit(listingID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	if _, running := t.inFlight[listingID]; running {
		t.inFlight[listingID] = true
		return
	}

	t.wg.Add(1)
	select {
	case t.queue <- listingID:
		t.inFlight[listingID] = false
	default:
		if t.config.SweepInterval > 0 {
			t.wg.Done()
			t.logger.Warn("job queue full, job deferred to next sweep", "listing", listingID)
			return
		}
		delay := max(t.config.RetryDelay, minRequeueDelay)
		t.logger.Warn("job queue full, resubmitting", "listing", listingID, "delay", delay)
		time.AfterFunc(delay, func() {
			defer t.wg.Done()
			t.submit(listingID)
		})
	}
}

// dispatch feeds queued jobs to the pool, waiting for free workers.
func (t *Trigger) dispatch() {
	defer close(t.dispatched)
	for listingID := range t.queue {
		err := t.pool.Submit(func() {
			defer t.wg.Done()
			t.run(listingID)
		})
		if err != nil {
			t.logger.Error("error submitting evaluation", "listing", listingID, "err", err)
			t.mu.Lock()
			delete(t.inFlight, listingID)
			t.mu.Unlock()
			t.wg.Done()
		}
	}
}

// run evaluates listingID with retries, again if it was rescheduled while
// running, and clears its ledger entry once the last run has succeeded.
func (t *Trigger) run(listingID string) {
	for {
		done := t.runOnce(listingID)

		t.mu.Lock()
		if !t.inFlight[listingID] {
			delete(t.inFlight, listingID)
			t.mu.Unlock()
			if done {
				t.complete(listingID)
			}
			return
		}
		t.inFlight[listingID] = false
		t.mu.Unlock()
	}
}

// runOnce reports whether the job is finished, successfully or for good.
func (t *Trigger) runOnce(listingID string) bool {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), t.config.Timeout)
	defer cancel()

	err := RetryWithBackoff(ctx, func() error {
		_, err := t.evaluator.EvaluateByID(ctx, listingID)
		if isPermanent(err) {
			return Permanent(err)
		}
		return err
	}, t.config.MaxAttempts, t.config.RetryDelay)
	t.observer.JobFinished(listingID, time.Since(start), err)

	switch {
	case err == nil:
		return true
	case isPermanent(err):
		t.logger.Warn("dropping evaluation that can never succeed", "listing", listingID, "err", err)
		return true
	default:
		t.logger.Error("evaluation failed, job kept for recovery", "listing", listingID, "err", err)
		return false
	}
}

func (t *Trigger) complete(listingID string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.config.Timeout)
	defer cancel()
	if err := t.jobs.Complete(ctx, listingID); err != nil {
		t.logger.Error("error completing job", "listing", listingID, "err", err)
	}
}

// isPermanent reports whether err comes from input that will never evaluate.
func isPermanent(err error) bool {
	return errors.Is(err, core.ErrInvalidArgument) || errors.Is(err, core.ErrNotFound)
}
