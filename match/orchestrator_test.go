package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListings struct {
	listings []*core.Listing
	poolErr  error
}

func (f *fakeListings) ActiveListingsExcept(_ context.Context, ownerID string, kind core.Kind) ([]*core.Listing, error) {
	if f.poolErr != nil {
		return nil, f.poolErr
	}
	var out []*core.Listing
	for _, l := range f.listings {
		if l.OwnerID != ownerID && l.Kind != kind && l.IsActive() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListings) GetListing(_ context.Context, id string) (*core.Listing, error) {
	for _, l := range f.listings {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, storage.ErrNotFound
}

type fakeUsers struct {
	missing map[string]bool
	err     error
}

func (f *fakeUsers) Exists(_ context.Context, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.missing[userID], nil
}

type fakeThresholds struct {
	mu     sync.Mutex
	values map[string]float64
}

func (f *fakeThresholds) Get(_ context.Context, userID string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.values[userID]; ok {
		return v, nil
	}
	return core.DefaultThreshold, nil
}

func (f *fakeThresholds) set(userID string, v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = make(map[string]float64)
	}
	f.values[userID] = v
}

// fakeCommitter keeps one entry per (recipient, pair key), like the real stores.
type fakeCommitter struct {
	mu        sync.Mutex
	committed map[string]bool
	order     []string
	err       error
}

func (f *fakeCommitter) CommitMatch(_ context.Context, pairKey string, a, b *core.Listing, _ float64) (core.CommitResult, error) {
	if f.err != nil {
		return core.CommitResult{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.committed == nil {
		f.committed = make(map[string]bool)
	}
	f.order = append(f.order, pairKey)
	insert := func(recipient string) bool {
		key := recipient + "#" + pairKey
		if f.committed[key] {
			return false
		}
		f.committed[key] = true
		return true
	}
	return core.CommitResult{CreatedForA: insert(a.OwnerID), CreatedForB: insert(b.OwnerID)}, nil
}

func (f *fakeCommitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type recordingMonitor struct {
	noopMonitor
	skipped []string
	below   int
	modes   []Mode
	results []core.SimilarityResult
	err     error
}

func (m *recordingMonitor) SkippedCandidate(c *core.Listing, _ string) { m.skipped = append(m.skipped, c.ID) }
func (m *recordingMonitor) BelowThreshold(_ core.SimilarityResult, _ float64) {
	m.below++
}
func (m *recordingMonitor) Finish(_ *core.Listing, mode Mode, results []core.SimilarityResult, _ time.Duration, err error) {
	m.modes = append(m.modes, mode)
	m.results = results
	m.err = err
}

func headphones(id, owner string, kind core.Kind, createdAt time.Time) *core.Listing {
	l := listing(id, owner, kind, "electronics", "Black Headphones",
		"sony headphones found blue case field", "Sports Field near entrance")
	l.CreatedAt = createdAt
	return l
}

func lostHeadphones() *core.Listing {
	return listing("A", "u1", core.KindLost, "electronics", "Wireless Headphones",
		"black sony headphones blue case", "Sports Field")
}

func newTestOrchestrator(t *testing.T, listings *fakeListings, users *fakeUsers,
	thresholds *fakeThresholds, committer *fakeCommitter, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(listings, users, thresholds, committer, opts...)
	require.NoError(t, err)
	return o
}

func TestNewOrchestrator(t *testing.T) {
	listings := &fakeListings{}
	users := &fakeUsers{}
	thresholds := &fakeThresholds{}
	committer := &fakeCommitter{}

	t.Run("valid configuration", func(t *testing.T) {
		o, err := NewOrchestrator(listings, users, thresholds, committer)
		require.NoError(t, err)
		assert.Equal(t, DefaultWeights(), o.Scorer().Weights())
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		o, err := NewOrchestrator(listings, users, thresholds, committer, WithLogger(nil), WithMonitor(nil))
		require.NoError(t, err)
		assert.NotNil(t, o)
	})

	t.Run("custom weights", func(t *testing.T) {
		w := Weights{Category: 0.25, Title: 0.25, Description: 0.25, Location: 0.25}
		o, err := NewOrchestrator(listings, users, thresholds, committer, WithWeights(w), WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.Equal(t, w, o.Scorer().Weights())
	})

	t.Run("invalid weights", func(t *testing.T) {
		_, err := NewOrchestrator(listings, users, thresholds, committer, WithWeights(Weights{Title: 2}))
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := NewOrchestrator(nil, users, thresholds, committer)
		assert.Equal(t, ErrListingSourceRequired, err)
		_, err = NewOrchestrator(listings, nil, thresholds, committer)
		assert.Equal(t, ErrUserDirectoryRequired, err)
		_, err = NewOrchestrator(listings, users, nil, committer)
		assert.Equal(t, ErrThresholdSourceRequired, err)
		_, err = NewOrchestrator(listings, users, thresholds, nil)
		assert.Equal(t, ErrCommitterRequired, err)
	})
}

func TestEvaluate_CommitsMatchesAboveThreshold(t *testing.T) {
	subject := lostHeadphones()
	match := headphones("C", "u2", core.KindFound, subject.CreatedAt)
	unrelated := listing("B", "u3", core.KindFound, "bag", "Silver Water Bottle", "silver bottle stickers", "Student Center")

	listings := &fakeListings{listings: []*core.Listing{subject, match, unrelated}}
	committer := &fakeCommitter{}
	monitor := &recordingMonitor{}
	o := newTestOrchestrator(t, listings, &fakeUsers{}, &fakeThresholds{}, committer, WithMonitor(monitor))

	results, err := o.Evaluate(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "C", results[0].CandidateID)
	assert.Equal(t, 2, committer.count())
	assert.Equal(t, []string{core.PairKey("A", "C")}, committer.order)
	assert.Equal(t, 1, monitor.below)
	assert.Equal(t, results, monitor.results)
	assert.NoError(t, monitor.err)
	assert.Equal(t, []Mode{ModeEvaluate}, monitor.modes)

	// A second run finds the same match but creates nothing new.
	again, err := o.Evaluate(context.Background(), subject)
	require.NoError(t, err)
	assert.Equal(t, results, again)
	assert.Equal(t, 2, committer.count())
}

func TestEvaluate_BothOwnersMustClearTheirThreshold(t *testing.T) {
	subject := lostHeadphones()
	match := headphones("C", "u2", core.KindFound, subject.CreatedAt)
	listings := &fakeListings{listings: []*core.Listing{subject, match}}

	tests := []struct {
		name        string
		subjectBar  float64
		candBar     float64
		wantMatches int
	}{
		{"both default", core.DefaultThreshold, core.DefaultThreshold, 1},
		{"subject owner stricter", 0.9, 0.1, 0},
		{"candidate owner stricter", 0.1, 0.9, 0},
		{"both lenient", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thresholds := &fakeThresholds{}
			thresholds.set("u1", tt.subjectBar)
			thresholds.set("u2", tt.candBar)
			committer := &fakeCommitter{}
			o := newTestOrchestrator(t, listings, &fakeUsers{}, thresholds, committer)

			results, err := o.Evaluate(context.Background(), subject)
			require.NoError(t, err)
			assert.Len(t, results, tt.wantMatches)
			assert.Equal(t, 2*tt.wantMatches, committer.count())
		})
	}
}

func TestEvaluate_SortsByScoreThenAge(t *testing.T) {
	subject := lostHeadphones()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	newer := headphones("newer", "u2", core.KindFound, base.Add(2*time.Hour))
	older := headphones("older", "u3", core.KindFound, base.Add(time.Hour))
	best := listing("best", "u4", core.KindFound, "electronics", "Wireless Headphones",
		"black sony headphones blue case", "Sports Field")
	best.CreatedAt = base.Add(3 * time.Hour)

	listings := &fakeListings{listings: []*core.Listing{subject, newer, best, older}}
	committer := &fakeCommitter{}
	o := newTestOrchestrator(t, listings, &fakeUsers{}, &fakeThresholds{}, committer)

	results, err := o.Evaluate(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "best", results[0].CandidateID)
	assert.Equal(t, "older", results[1].CandidateID)
	assert.Equal(t, "newer", results[2].CandidateID)
	assert.Equal(t, []string{
		core.PairKey("A", "best"),
		core.PairKey("A", "older"),
		core.PairKey("A", "newer"),
	}, committer.order)
}

func TestEvaluate_SkipsCandidatesWithMissingOwner(t *testing.T) {
	subject := lostHeadphones()
	orphan := headphones("orphan", "gone", core.KindFound, subject.CreatedAt)
	match := headphones("C", "u2", core.KindFound, subject.CreatedAt)

	listings := &fakeListings{listings: []*core.Listing{subject, orphan, match}}
	users := &fakeUsers{missing: map[string]bool{"gone": true}}
	committer := &fakeCommitter{}
	monitor := &recordingMonitor{}
	o := newTestOrchestrator(t, listings, users, &fakeThresholds{}, committer, WithMonitor(monitor))

	results, err := o.Evaluate(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "C", results[0].CandidateID)
	assert.Equal(t, []string{"orphan"}, monitor.skipped)
}

func TestEvaluate_FailuresCommitNothing(t *testing.T) {
	subject := lostHeadphones()
	match := headphones("C", "u2", core.KindFound, subject.CreatedAt)

	t.Run("pool unavailable", func(t *testing.T) {
		listings := &fakeListings{listings: []*core.Listing{subject, match}, poolErr: errors.New("connection refused")}
		committer := &fakeCommitter{}
		o := newTestOrchestrator(t, listings, &fakeUsers{}, &fakeThresholds{}, committer)

		results, err := o.Evaluate(context.Background(), subject)
		assert.ErrorIs(t, err, core.ErrTransientStore)
		assert.Nil(t, results)
		assert.Zero(t, committer.count())
	})

	t.Run("user directory unavailable", func(t *testing.T) {
		listings := &fakeListings{listings: []*core.Listing{subject, match}}
		committer := &fakeCommitter{}
		o := newTestOrchestrator(t, listings, &fakeUsers{err: errors.New("timeout")}, &fakeThresholds{}, committer)

		_, err := o.Evaluate(context.Background(), subject)
		assert.ErrorIs(t, err, core.ErrTransientStore)
		assert.Zero(t, committer.count())
	})

	t.Run("commit failure surfaces", func(t *testing.T) {
		listings := &fakeListings{listings: []*core.Listing{subject, match}}
		committer := &fakeCommitter{err: fmt.Errorf("%w: disk full", core.ErrTransientStore)}
		o := newTestOrchestrator(t, listings, &fakeUsers{}, &fakeThresholds{}, committer)

		_, err := o.Evaluate(context.Background(), subject)
		assert.ErrorIs(t, err, core.ErrTransientStore)
	})

	t.Run("cancelled context", func(t *testing.T) {
		listings := &fakeListings{listings: []*core.Listing{subject, match}}
		committer := &fakeCommitter{}
		o := newTestOrchestrator(t, listings, &fakeUsers{}, &fakeThresholds{}, committer)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := o.Evaluate(ctx, subject)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, committer.count())
	})
}

func TestEvaluate_InvalidAndInactiveSubjects(t *testing.T) {
	match := headphones("C", "u2", core.KindFound, time.Now())
	listings := &fakeListings{listings: []*core.Listing{match}}
	committer := &fakeCommitter{}
	o := newTestOrchestrator(t, listings, &fakeUsers{}, &fakeThresholds{}, committer)

	t.Run("nil subject", func(t *testing.T) {
		_, err := o.Evaluate(context.Background(), nil)
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
	})

	t.Run("missing owner", func(t *testing.T) {
		subject := lostHeadphones()
		subject.OwnerID = ""
		_, err := o.Evaluate(context.Background(), subject)
		assert.ErrorIs(t, err, core.ErrInvalidListing)
	})

	t.Run("withdrawn subject", func(t *testing.T) {
		subject := lostHeadphones()
		subject.Status = core.StatusWithdrawn
		results, err := o.Evaluate(context.Background(), subject)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Zero(t, committer.count())
	})
}

func TestEvaluateByID(t *testing.T) {
	subject := lostHeadphones()
	match := headphones("C", "u2", core.KindFound, subject.CreatedAt)
	listings := &fakeListings{listings: []*core.Listing{subject, match}}
	committer := &fakeCommitter{}
	o := newTestOrchestrator(t, listings, &fakeUsers{}, &fakeThresholds{}, committer)

	results, err := o.EvaluateByID(context.Background(), "A")
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = o.EvaluateByID(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = o.EvaluateByID(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestPreview_CommitsNothing(t *testing.T) {
	subject := lostHeadphones()
	match := headphones("C", "u2", core.KindFound, subject.CreatedAt)
	listings := &fakeListings{listings: []*core.Listing{subject, match}}
	committer := &fakeCommitter{}
	monitor := &recordingMonitor{}
	o := newTestOrchestrator(t, listings, &fakeUsers{}, &fakeThresholds{}, committer, WithMonitor(monitor))

	results, err := o.PreviewByID(context.Background(), "A")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Zero(t, committer.count())
	assert.Equal(t, []Mode{ModePreview}, monitor.modes)
}

func TestEvaluate_LoweredThresholdSurfacesSuppressedMatch(t *testing.T) {
	subject := lostHeadphones()
	match := headphones("C", "u2", core.KindFound, subject.CreatedAt)
	weak := listing("W", "u3", core.KindFound, "electronics", "Charging Cable",
		"white usb cable", "Sports Field")

	listings := &fakeListings{listings: []*core.Listing{subject, match, weak}}
	thresholds := &fakeThresholds{}
	thresholds.set("u1", 0.7)
	committer := &fakeCommitter{}
	o := newTestOrchestrator(t, listings, &fakeUsers{}, thresholds, committer)

	results, err := o.Evaluate(context.Background(), subject)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, committer.count())

	thresholds.set("u1", 0.3)
	thresholds.set("u3", 0.3)
	results, err = o.Evaluate(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "C", results[0].CandidateID)
	assert.Equal(t, "W", results[1].CandidateID)
	assert.Equal(t, 4, committer.count())

	// Running again commits nothing new.
	_, err = o.Evaluate(context.Background(), subject)
	require.NoError(t, err)
	assert.Equal(t, 4, committer.count())
}

func TestEvaluate_ThresholdMonotonicity(t *testing.T) {
	subject := lostHeadphones()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	listings := &fakeListings{listings: []*core.Listing{
		subject,
		headphones("C", "u2", core.KindFound, base),
		listing("W", "u3", core.KindFound, "electronics", "Charging Cable", "white usb cable", "Sports Field"),
		listing("B", "u4", core.KindFound, "bag", "Black Bag", "black bag", "Main Library"),
	}}

	surfaced := func(bar float64) map[string]bool {
		thresholds := &fakeThresholds{}
		for _, u := range []string{"u1", "u2", "u3", "u4"} {
			thresholds.set(u, bar)
		}
		o := newTestOrchestrator(t, listings, &fakeUsers{}, thresholds, &fakeCommitter{})
		results, err := o.Preview(context.Background(), subject)
		require.NoError(t, err)
		out := make(map[string]bool)
		for _, r := range results {
			out[r.CandidateID] = true
		}
		return out
	}

	bars := []float64{0, 0.2, 0.3, 0.5, 0.6, 0.7, 0.9, 1}
	for i := 1; i < len(bars); i++ {
		lower := surfaced(bars[i-1])
		higher := surfaced(bars[i])
		for id := range higher {
			assert.True(t, lower[id], "raising threshold to %v surfaced %s", bars[i], id)
		}
	}
	assert.Len(t, surfaced(0), 3)
}
