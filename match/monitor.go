package match

import (
	"time"

	"github.com/poiesic/lostfound/core"
)

// Mode tells an evaluation that commits matches from a read-only preview.
type Mode string

const (
	ModeEvaluate Mode = "evaluate"
	ModePreview  Mode = "preview"
)

// Monitor provides hooks to observe an evaluation.
// Implement this interface to track intermediate steps and results.
// Hooks may be called from concurrent evaluations, including several of the
// same listing.
type Monitor interface {
	Start(subject *core.Listing)
	AfterCandidateFetch(poolSize int)
	SkippedCandidate(candidate *core.Listing, reason string)
	Scored(result core.SimilarityResult)
	BelowThreshold(result core.SimilarityResult, threshold float64)
	Committed(result core.SimilarityResult, commit core.CommitResult)
	Finish(subject *core.Listing, mode Mode, results []core.SimilarityResult, elapsed time.Duration, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ *core.Listing)                                   {}
func (n *noopMonitor) AfterCandidateFetch(_ int)                               {}
func (n *noopMonitor) SkippedCandidate(_ *core.Listing, _ string)              {}
func (n *noopMonitor) Scored(_ core.SimilarityResult)                          {}
func (n *noopMonitor) BelowThreshold(_ core.SimilarityResult, _ float64)       {}
func (n *noopMonitor) Committed(_ core.SimilarityResult, _ core.CommitResult) {}
func (n *noopMonitor) Finish(_ *core.Listing, _ Mode, _ []core.SimilarityResult, _ time.Duration, _ error) {}
