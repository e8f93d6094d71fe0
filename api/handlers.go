package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/poiesic/lostfound/core"
)

type handlers struct {
	services Services
	logger   *slog.Logger
}

type thresholdRequest struct {
	Threshold *float64 `json:"threshold"`
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.services.Notifications.List(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (h *handlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.services.Notifications.UnreadCount(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *handlers) markRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.services.Notifications.MarkRead(r.Context(), vars["notificationID"], vars["userID"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	changed, err := h.services.Notifications.MarkAllRead(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"marked": changed})
}

func (h *handlers) getThreshold(w http.ResponseWriter, r *http.Request) {
	pref, err := h.services.Thresholds.Preference(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pref)
}

// setThreshold stores the new value and re-evaluates the user's active listings.
func (h *handlers) setThreshold(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: malformed body: %w", core.ErrInvalidArgument, err))
		return
	}
	if req.Threshold == nil {
		h.fail(w, r, fmt.Errorf("%w: threshold is required", core.ErrInvalidArgument))
		return
	}

	pref, err := h.services.Thresholds.Set(r.Context(), userID, *req.Threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.services.Scheduler.OnThresholdChanged(r.Context(), userID); err != nil {
		h.logger.Warn("re-evaluation after threshold change failed", "user", userID, "err", err)
	}
	h.writeJSON(w, http.StatusOK, pref)
}

func (h *handlers) listingCreated(w http.ResponseWriter, r *http.Request) {
	listingID := mux.Vars(r)["listingID"]
	if err := h.services.Scheduler.Schedule(r.Context(), listingID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"listingId": listingID, "status": "scheduled"})
}

func (h *handlers) matches(w http.ResponseWriter, r *http.Request) {
	results, err := h.services.Matcher.PreviewByID(r.Context(), mux.Vars(r)["listingID"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if results == nil {
		results = []core.SimilarityResult{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"matches": results})
}
