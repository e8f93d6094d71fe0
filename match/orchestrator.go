package match

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
)

// ListingSource supplies the candidate pool and single listings.
type ListingSource interface {
	ActiveListingsExcept(ctx context.Context, ownerID string, kind core.Kind) ([]*core.Listing, error)
	GetListing(ctx context.Context, id string) (*core.Listing, error)
}

// ThresholdSource returns the effective threshold of a user.
type ThresholdSource interface {
	Get(ctx context.Context, userID string) (float64, error)
}

// Committer records a matched pair for both owners, at most once per owner.
type Committer interface {
	CommitMatch(ctx context.Context, pairKey string, a, b *core.Listing, score float64) (core.CommitResult, error)
}

// Orchestrator evaluates a subject listing against the pool and hands the
// pairs clearing both owners' thresholds to a Committer.
// It holds no state between evaluations.
type Orchestrator struct {
	listings   ListingSource
	users      storage.UserDirectory
	thresholds ThresholdSource
	committer  Committer
	scorer     *Scorer
	monitor    Monitor
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithMonitor sets a monitor to observe evaluations.
func WithMonitor(monitor Monitor) Option {
	return func(o *Orchestrator) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		o.monitor = monitor
		return nil
	}
}

// WithWeights replaces the default scoring weights.
func WithWeights(weights Weights) Option {
	return func(o *Orchestrator) error {
		scorer, err := NewScorer(weights)
		if err != nil {
			return err
		}
		o.scorer = scorer
		return nil
	}
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(
	listings ListingSource,
	users storage.UserDirectory,
	thresholds ThresholdSource,
	committer Committer,
	opts ...Option,
) (*Orchestrator, error) {
	if listings == nil {
		return nil, ErrListingSourceRequired
	}
	if users == nil {
		return nil, ErrUserDirectoryRequired
	}
	if thresholds == nil {
		return nil, ErrThresholdSourceRequired
	}
	if committer == nil {
		return nil, ErrCommitterRequired
	}

	scorer, err := NewScorer(DefaultWeights())
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		listings:   listings,
		users:      users,
		thresholds: thresholds,
		committer:  committer,
		scorer:     scorer,
		monitor:    &noopMonitor{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Evaluate scores subject against the current pool, commits every pair
// clearing both owners' thresholds and returns those results, best first.
// If the pool or a threshold cannot be read nothing is committed.
func (o *Orchestrator) Evaluate(ctx context.Context, subject *core.Listing) ([]core.SimilarityResult, error) {
	started := time.Now()
	results, matched, err := o.rank(ctx, subject)
	if err != nil {
		o.monitor.Finish(subject, ModeEvaluate, nil, time.Since(started), err)
		return nil, err
	}

	for _, result := range results {
		pairKey := core.PairKey(subject.ID, result.CandidateID)
		candidate := matched[result.CandidateID]

		commit, err := o.committer.CommitMatch(ctx, pairKey, subject, candidate, result.Score)
		if err != nil {
			err = fmt.Errorf("committing %s: %w", pairKey, err)
			o.monitor.Finish(subject, ModeEvaluate, results, time.Since(started), err)
			return nil, err
		}
		o.monitor.Committed(result, commit)
		if commit.Created() {
			o.logger.Debug("match committed", "pair", pairKey, "score", result.Score,
				"createdForA", commit.CreatedForA, "createdForB", commit.CreatedForB)
		}
	}

	o.monitor.Finish(subject, ModeEvaluate, results, time.Since(started), nil)
	return results, nil
}

// Preview returns what Evaluate would commit without committing anything.
func (o *Orchestrator) Preview(ctx context.Context, subject *core.Listing) ([]core.SimilarityResult, error) {
	started := time.Now()
	results, _, err := o.rank(ctx, subject)
	o.monitor.Finish(subject, ModePreview, results, time.Since(started), err)
	return results, err
}

// EvaluateByID loads a listing and evaluates it.
func (o *Orchestrator) EvaluateByID(ctx context.Context, listingID string) ([]core.SimilarityResult, error) {
	subject, err := o.load(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return o.Evaluate(ctx, subject)
}

// PreviewByID loads a listing and previews its matches.
func (o *Orchestrator) PreviewByID(ctx context.Context, listingID string) ([]core.SimilarityResult, error) {
	subject, err := o.load(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return o.Preview(ctx, subject)
}

// Scorer returns the scorer used by the orchestrator.
func (o *Orchestrator) Scorer() *Scorer {
	return o.scorer
}

func (o *Orchestrator) load(ctx context.Context, listingID string) (*core.Listing, error) {
	if listingID == "" {
		return nil, fmt.Errorf("%w: empty listing id", core.ErrInvalidListing)
	}
	subject, err := o.listings.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: listing %s", core.ErrNotFound, listingID)
		}
		return nil, fmt.Errorf("%w: loading listing %s: %w", core.ErrTransientStore, listingID, err)
	}
	return subject, nil
}

// rank scores every eligible candidate and keeps those clearing both thresholds.
// The returned map holds the surviving candidates by ID.
func (o *Orchestrator) rank(ctx context.Context, subject *core.Listing) ([]core.SimilarityResult, map[string]*core.Listing, error) {
	if err := core.ValidateListing(subject); err != nil {
		return nil, nil, err
	}
	o.monitor.Start(subject)

	if !subject.IsActive() {
		o.logger.Debug("skipping inactive subject", "listing", subject.ID, "status", subject.Status)
		return []core.SimilarityResult{}, nil, nil
	}

	subjectThreshold, err := o.thresholds.Get(ctx, subject.OwnerID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: threshold for %s: %w", core.ErrTransientStore, subject.OwnerID, err)
	}

	pool, err := o.listings.ActiveListingsExcept(ctx, subject.OwnerID, subject.Kind)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: candidate pool: %w", core.ErrTransientStore, err)
	}
	o.monitor.AfterCandidateFetch(len(pool))

	// Thresholds are cached for one evaluation only.
	ownerThresholds := make(map[string]float64)
	results := make([]core.SimilarityResult, 0)
	matched := make(map[string]*core.Listing)

	for candidate := range Candidates(subject, pool) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		ownerThreshold, ok := ownerThresholds[candidate.OwnerID]
		if !ok {
			exists, err := o.users.Exists(ctx, candidate.OwnerID)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return nil, nil, fmt.Errorf("%w: owner of %s: %w", core.ErrTransientStore, candidate.ID, err)
			}
			if !exists {
				o.logger.Debug("skipping candidate with missing owner", "candidate", candidate.ID, "owner", candidate.OwnerID)
				o.monitor.SkippedCandidate(candidate, "owner missing")
				continue
			}
			ownerThreshold, err = o.thresholds.Get(ctx, candidate.OwnerID)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: threshold for %s: %w", core.ErrTransientStore, candidate.OwnerID, err)
			}
			ownerThresholds[candidate.OwnerID] = ownerThreshold
		}

		result := o.scorer.Score(subject, candidate)
		o.monitor.Scored(result)

		bar := max(subjectThreshold, ownerThreshold)
		if result.Score < bar {
			o.monitor.BelowThreshold(result, bar)
			continue
		}
		results = append(results, result)
		matched[candidate.ID] = candidate
	}

	slices.SortStableFunc(results, compareResults)
	return results, matched, nil
}

// compareResults orders by score descending, then by candidate age, oldest first.
func compareResults(a, b core.SimilarityResult) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := a.CandidateCreatedAt.Compare(b.CandidateCreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.CandidateID, b.CandidateID)
}
