package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/match"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor(t *testing.T) {
	m := NewMonitor()
	subject := &core.Listing{ID: "A"}
	result := core.SimilarityResult{SubjectID: "A", CandidateID: "B", Confidence: core.ConfidenceHigh}

	okBefore := testutil.ToFloat64(EvaluationsTotal.WithLabelValues("evaluate", "ok"))
	errBefore := testutil.ToFloat64(EvaluationsTotal.WithLabelValues("evaluate", "error"))
	previewBefore := testutil.ToFloat64(EvaluationsTotal.WithLabelValues("preview", "ok"))
	scoredBefore := testutil.ToFloat64(CandidatesScored)
	highBefore := testutil.ToFloat64(MatchesTotal.WithLabelValues("high"))
	createdBefore := testutil.ToFloat64(NotificationsTotal.WithLabelValues("created"))
	dupBefore := testutil.ToFloat64(NotificationsTotal.WithLabelValues("duplicate"))
	belowBefore := testutil.ToFloat64(CandidatesSkipped.WithLabelValues("below threshold"))

	m.Start(subject)
	m.AfterCandidateFetch(3)
	m.Scored(result)
	m.BelowThreshold(result, 0.6)
	m.Committed(result, core.CommitResult{CreatedForA: true})
	m.Finish(subject, match.ModeEvaluate, []core.SimilarityResult{result}, time.Millisecond, nil)
	m.Finish(nil, match.ModeEvaluate, nil, time.Millisecond, errors.New("pool unavailable"))
	m.Finish(subject, match.ModePreview, nil, time.Millisecond, nil)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(EvaluationsTotal.WithLabelValues("evaluate", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(EvaluationsTotal.WithLabelValues("evaluate", "error")))
	assert.Equal(t, previewBefore+1, testutil.ToFloat64(EvaluationsTotal.WithLabelValues("preview", "ok")))
	assert.Equal(t, scoredBefore+1, testutil.ToFloat64(CandidatesScored))
	assert.Equal(t, highBefore+1, testutil.ToFloat64(MatchesTotal.WithLabelValues("high")))
	assert.Equal(t, createdBefore+1, testutil.ToFloat64(NotificationsTotal.WithLabelValues("created")))
	assert.Equal(t, dupBefore+1, testutil.ToFloat64(NotificationsTotal.WithLabelValues("duplicate")))
	assert.Equal(t, belowBefore+1, testutil.ToFloat64(CandidatesSkipped.WithLabelValues("below threshold")))
}

func TestMonitor_ConcurrentEvaluationsOfOneListing(t *testing.T) {
	m := NewMonitor()
	subject := &core.Listing{ID: "A"}
	evaluateBefore := histogramCount(t, "evaluate")
	previewBefore := histogramCount(t, "preview")

	m.Start(subject)
	m.Start(subject)
	m.Finish(subject, match.ModeEvaluate, nil, 20*time.Millisecond, nil)
	m.Finish(subject, match.ModePreview, nil, 10*time.Millisecond, nil)

	assert.Equal(t, evaluateBefore+1, histogramCount(t, "evaluate"))
	assert.Equal(t, previewBefore+1, histogramCount(t, "preview"))
}

func histogramCount(t *testing.T, mode string) uint64 {
	t.Helper()
	var metric dto.Metric
	observer, err := EvaluationLatency.GetMetricWithLabelValues(mode)
	require.NoError(t, err)
	require.NoError(t, observer.(prometheus.Metric).Write(&metric))
	return metric.GetHistogram().GetSampleCount()
}

func TestJobObserver(t *testing.T) {
	var o JobObserver
	scheduled := testutil.ToFloat64(JobsTotal.WithLabelValues("scheduled"))
	succeeded := testutil.ToFloat64(JobsTotal.WithLabelValues("succeeded"))
	failed := testutil.ToFloat64(JobsTotal.WithLabelValues("failed"))

	o.JobScheduled("L1")
	o.JobFinished("L1", time.Millisecond, nil)
	o.JobFinished("L2", time.Millisecond, errors.New("timeout"))

	assert.Equal(t, scheduled+1, testutil.ToFloat64(JobsTotal.WithLabelValues("scheduled")))
	assert.Equal(t, succeeded+1, testutil.ToFloat64(JobsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, failed+1, testutil.ToFloat64(JobsTotal.WithLabelValues("failed")))
}

func TestHandler(t *testing.T) {
	JobsTotal.WithLabelValues("scheduled").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lostfound_jobs_total")
}
