// Package metrics provides Prometheus instrumentation for the matching
// engine. It counts evaluations, scored and committed pairs and background
// jobs, and records evaluation and job latency.
package metrics

import (
	"net/http"
	"time"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/match"
	"github.com/poiesic/lostfound/trigger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EvaluationsTotal counts finished evaluations, labeled by mode
	// ("evaluate" or "preview") and outcome ("ok" or "error").
	EvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_evaluations_total",
		Help: "Total number of match evaluations",
	}, []string{"mode", "outcome"})

	// CandidatesScored counts scored candidate pairs.
	CandidatesScored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lostfound_candidates_scored_total",
		Help: "Total number of candidate pairs scored",
	})

	// CandidatesSkipped counts candidates skipped before scoring.
	CandidatesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_candidates_skipped_total",
		Help: "Total number of candidates skipped",
	}, []string{"reason"})

	// MatchesTotal counts pairs clearing both thresholds, labeled by
	// confidence: "high", "medium" or "low".
	MatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_matches_total",
		Help: "Total number of pairs above both owners' thresholds",
	}, []string{"confidence"})

	// NotificationsTotal counts commit outcomes per recipient side,
	// labeled by result: "created" or "duplicate".
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_notifications_total",
		Help: "Total number of notification commits",
	}, []string{"result"})

	// PoolSize records the size of fetched candidate pools.
	PoolSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lostfound_candidate_pool_size",
		Help:    "Number of listings in the candidate pool per evaluation",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	// EvaluationLatency records evaluation time in seconds, labeled by mode.
	EvaluationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lostfound_evaluation_latency_seconds",
		Help:    "Match evaluation latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
	}, []string{"mode"})

	// JobsTotal counts background jobs, labeled by state:
	// "scheduled", "succeeded" or "failed".
	JobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_jobs_total",
		Help: "Total number of background evaluation jobs",
	}, []string{"state"})

	// JobDuration records job time in seconds, retries included.
	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lostfound_job_duration_seconds",
		Help:    "Background evaluation job duration in seconds",
		Buckets: []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30},
	})
)

func init() {
	prometheus.MustRegister(
		EvaluationsTotal,
		CandidatesScored,
		CandidatesSkipped,
		MatchesTotal,
		NotificationsTotal,
		PoolSize,
		EvaluationLatency,
		JobsTotal,
		JobDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Monitor records evaluation metrics. It implements match.Monitor and
// is stateless, so concurrent evaluations never share a sample.
type Monitor struct{}

var _ match.Monitor = (*Monitor)(nil)

// NewMonitor creates a Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) Start(_ *core.Listing) {}

func (m *Monitor) AfterCandidateFetch(poolSize int) {
	PoolSize.Observe(float64(poolSize))
}

func (m *Monitor) SkippedCandidate(_ *core.Listing, reason string) {
	CandidatesSkipped.WithLabelValues(reason).Inc()
}

func (m *Monitor) Scored(_ core.SimilarityResult) {
	CandidatesScored.Inc()
}

func (m *Monitor) BelowThreshold(_ core.SimilarityResult, _ float64) {
	CandidatesSkipped.WithLabelValues("below threshold").Inc()
}

func (m *Monitor) Committed(result core.SimilarityResult, commit core.CommitResult) {
	MatchesTotal.WithLabelValues(string(result.Confidence)).Inc()
	for _, created := range []bool{commit.CreatedForA, commit.CreatedForB} {
		if created {
			NotificationsTotal.WithLabelValues("created").Inc()
		} else {
			NotificationsTotal.WithLabelValues("duplicate").Inc()
		}
	}
}

func (m *Monitor) Finish(_ *core.Listing, mode match.Mode, _ []core.SimilarityResult, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	EvaluationsTotal.WithLabelValues(string(mode), outcome).Inc()
	EvaluationLatency.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}

// JobObserver records background job metrics. It implements trigger.Observer.
type JobObserver struct{}

var _ trigger.Observer = JobObserver{}

func (JobObserver) JobScheduled(string) {
	JobsTotal.WithLabelValues("scheduled").Inc()
}

func (JobObserver) JobFinished(_ string, elapsed time.Duration, err error) {
	JobDuration.Observe(elapsed.Seconds())
	if err != nil {
		JobsTotal.WithLabelValues("failed").Inc()
		return
	}
	JobsTotal.WithLabelValues("succeeded").Inc()
}
