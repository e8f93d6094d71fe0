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


package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/metrics"
	"github.com/rs/cors"
)

// Notifications is the notification panel backend.
type Notifications interface {
	List(ctx context.Context, userID string) ([]*core.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// Thresholds reads and writes per-user match sensitivity.
type Thresholds interface {
	Preference(ctx context.Context, userID string) (*core.ThresholdPreference, error)
	Set(ctx context.Context, userID string, value float64) (*core.ThresholdPreference, error)
}

// Matcher ranks candidates for a listing without notifying anyone.
type Matcher interface {
	PreviewByID(ctx context.Context, listingID string) ([]core.SimilarityResult, error)
}

// Scheduler queues asynchronous evaluations.
type Scheduler interface {
	Schedule(ctx context.Context, listingID string) error
	OnThresholdChanged(ctx context.Context, userID string) (int, error)
}

// Services groups what the HTTP handlers delegate to.
type Services struct {
	Notifications Notifications
	Thresholds    Thresholds
	Matcher       Matcher
	Scheduler     Scheduler
}

// ErrServiceRequired indicates Services is missing a member.
var ErrServiceRequired = errors.New("api: every service is required")

// NewRouter registers every route on a new mux router and wraps it in CORS handling.
func NewRouter(services Services, logger *slog.Logger) (http.Handler, error) {
	if services.Notifications == nil || services.Thresholds == nil ||
		services.Matcher == nil || services.Scheduler == nil {
		return nil, ErrServiceRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers{services: services, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	users := r.PathPrefix("/users/{userID}").Subrouter()
	users.HandleFunc("/notifications", h.listNotifications).Methods(http.MethodGet)
	users.HandleFunc("/notifications/unread-count", h.unreadCount).Methods(http.MethodGet)
	users.HandleFunc("/notifications/read-all", h.markAllRead).Methods(http.MethodPost)
	users.HandleFunc("/notifications/{notificationID}/read", h.markRead).Methods(http.MethodPost)
	users.HandleFunc("/threshold", h.getThreshold).Methods(http.MethodGet)
	users.HandleFunc("/threshold", h.setThreshold).Methods(http.MethodPut)

	listings := r.PathPrefix("/listings/{listingID}").Subrouter()
	listings.HandleFunc("/created", h.listingCreated).Methods(http.MethodPost)
	listings.HandleFunc("/matches", h.matches).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(r), nil
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("error encoding response", "status", status, "err", err)
	}
}

// statusFor maps an engine error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
