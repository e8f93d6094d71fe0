package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/lostfound/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifications struct {
	byUser map[string][]*core.Notification
	err    error
}

func (f *fakeNotifications) List(_ context.Context, userID string) ([]*core.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	list := f.byUser[userID]
	if list == nil {
		list = []*core.Notification{}
	}
	return list, nil
}

func (f *fakeNotifications) UnreadCount(_ context.Context, userID string) (int, error) {
	count := 0
	for _, n := range f.byUser[userID] {
		if !n.Read {
			count++
		}
	}
	return count, f.err
}

func (f *fakeNotifications) MarkRead(_ context.Context, notificationID, userID string) error {
	for _, n := range f.byUser[userID] {
		if n.ID == notificationID {
			n.Read = true
			return nil
		}
	}
	return fmt.Errorf("%w: notification %s", core.ErrNotFound, notificationID)
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, userID string) (int, error) {
	changed := 0
	for _, n := range f.byUser[userID] {
		if !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}

type fakeThresholds struct {
	values map[string]float64
}

func (f *fakeThresholds) Preference(_ context.Context, userID string) (*core.ThresholdPreference, error) {
	value, ok := f.values[userID]
	if !ok {
		value = core.DefaultThreshold
	}
	return &core.ThresholdPreference{UserID: userID, Threshold: value}, nil
}

func (f *fakeThresholds) Set(_ context.Context, userID string, value float64) (*core.ThresholdPreference, error) {
	if err := core.ValidateThreshold(value); err != nil {
		return nil, err
	}
	f.values[userID] = value
	return &core.ThresholdPreference{UserID: userID, Threshold: value, UpdatedAt: time.Now().UTC()}, nil
}

type fakeMatcher struct {
	results map[string][]core.SimilarityResult
}

func (f *fakeMatcher) PreviewByID(_ context.Context, listingID string) ([]core.SimilarityResult, error) {
	results, ok := f.results[listingID]
	if !ok {
		return nil, fmt.Errorf("%w: listing %s", core.ErrNotFound, listingID)
	}
	return results, nil
}

type fakeScheduler struct {
	scheduled []string
	changed   []string
	err       error
}

func (f *fakeScheduler) Schedule(_ context.Context, listingID string) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, listingID)
	return nil
}

func (f *fakeScheduler) OnThresholdChanged(_ context.Context, userID string) (int, error) {
	f.changed = append(f.changed, userID)
	return 1, nil
}

type fixture struct {
	handler       http.Handler
	notifications *fakeNotifications
	thresholds    *fakeThresholds
	scheduler     *fakeScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		notifications: &fakeNotifications{byUser: map[string][]*core.Notification{
			"alice": {
				{ID: "n2", RecipientID: "alice", Type: core.NotificationMatchFound},
				{ID: "n1", RecipientID: "alice", Type: core.NotificationMatchFound, Read: true},
			},
		}},
		thresholds: &fakeThresholds{values: map[string]float64{}},
		scheduler:  &fakeScheduler{},
	}
	matcher := &fakeMatcher{results: map[string][]core.SimilarityResult{
		"lost-1": {{SubjectID: "lost-1", CandidateID: "found-1", Score: 0.65, Confidence: core.ConfidenceMedium}},
		"lost-2": nil,
	}}

	handler, err := NewRouter(Services{
		Notifications: f.notifications,
		Thresholds:    f.thresholds,
		Matcher:       matcher,
		Scheduler:     f.scheduler,
	}, nil)
	require.NoError(t, err)
	f.handler = handler
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestNewRouterRequiresServices(t *testing.T) {
	_, err := NewRouter(Services{}, nil)
	assert.ErrorIs(t, err, ErrServiceRequired)
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "health", method: http.MethodGet, path: "/healthz", status: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", status: http.StatusOK},
		{name: "list", method: http.MethodGet, path: "/users/alice/notifications", status: http.StatusOK},
		{name: "unread count", method: http.MethodGet, path: "/users/alice/notifications/unread-count", status: http.StatusOK},
		{name: "mark read", method: http.MethodPost, path: "/users/alice/notifications/n2/read", status: http.StatusNoContent},
		{name: "mark read of another user", method: http.MethodPost, path: "/users/bob/notifications/n2/read", status: http.StatusNotFound},
		{name: "mark all read", method: http.MethodPost, path: "/users/alice/notifications/read-all", status: http.StatusOK},
		{name: "get threshold", method: http.MethodGet, path: "/users/alice/threshold", status: http.StatusOK},
		{name: "set threshold", method: http.MethodPut, path: "/users/alice/threshold", body: `{"threshold":0.4}`, status: http.StatusOK},
		{name: "threshold above one", method: http.MethodPut, path: "/users/alice/threshold", body: `{"threshold":1.2}`, status: http.StatusBadRequest},
		{name: "threshold missing", method: http.MethodPut, path: "/users/alice/threshold", body: `{}`, status: http.StatusBadRequest},
		{name: "threshold malformed", method: http.MethodPut, path: "/users/alice/threshold", body: `{`, status: http.StatusBadRequest},
		{name: "listing created", method: http.MethodPost, path: "/listings/lost-1/created", status: http.StatusAccepted},
		{name: "matches", method: http.MethodGet, path: "/listings/lost-1/matches", status: http.StatusOK},
		{name: "matches of unknown listing", method: http.MethodGet, path: "/listings/nope/matches", status: http.StatusNotFound},
		{name: "wrong method", method: http.MethodDelete, path: "/users/alice/threshold", status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestListNotifications(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/users/alice/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Notifications []core.Notification `json:"notifications"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Notifications, 2)
	assert.Equal(t, "n2", body.Notifications[0].ID)

	rec = f.do(http.MethodGet, "/users/carol/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":[]}`, rec.Body.String())
}

func TestUnreadCountAfterMarkAll(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/users/alice/notifications/unread-count", "")
	assert.JSONEq(t, `{"unread":1}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/users/alice/notifications/read-all", "")
	assert.JSONEq(t, `{"marked":1}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/users/alice/notifications/unread-count", "")
	assert.JSONEq(t, `{"unread":0}`, rec.Body.String())
}

func TestSetThresholdReevaluates(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/users/alice/threshold", `{"threshold":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var pref core.ThresholdPreference
	decode(t, rec, &pref)
	assert.Equal(t, "alice", pref.UserID)
	assert.Equal(t, 0.0, pref.Threshold)
	assert.Equal(t, []string{"alice"}, f.scheduler.changed)

	rec = f.do(http.MethodGet, "/users/alice/threshold", "")
	decode(t, rec, &pref)
	assert.Equal(t, 0.0, pref.Threshold)
}

func TestListingCreated(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/listings/lost-1/created", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"lost-1"}, f.scheduler.scheduled)

	f.scheduler.err = fmt.Errorf("%w: disk full", core.ErrTransientStore)
	rec = f.do(http.MethodPost, "/listings/lost-2/created", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Contains(t, body["error"], "disk full")
}

func TestMatchesNeverNull(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/listings/lost-2/matches", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"matches":[]}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/listings/lost-1/matches", "")
	var body struct {
		Matches []core.SimilarityResult `json:"matches"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "found-1", body.Matches[0].CandidateID)
}

func TestEncodeFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	matcher := &fakeMatcher{results: map[string][]core.SimilarityResult{
		"lost-1": {{SubjectID: "lost-1", CandidateID: "found-1", Score: math.NaN()}},
	}}
	handler, err := NewRouter(Services{
		Notifications: &fakeNotifications{},
		Thresholds:    &fakeThresholds{values: map[string]float64{}},
		Matcher:       matcher,
		Scheduler:     &fakeScheduler{},
	}, logger)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listings/lost-1/matches", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "error encoding response")
	assert.Contains(t, logs.String(), "status=200")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/users/alice/threshold", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrInvalidThreshold, http.StatusBadRequest},
		{fmt.Errorf("%w: listing x", core.ErrNotFound), http.StatusNotFound},
		{core.ErrTransientStore, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
