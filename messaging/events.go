package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/lostfound/core"
)

// ListingCreatedEvent announces a committed listing.
type ListingCreatedEvent struct {
	EventID    string       `json:"eventId"`
	OccurredAt time.Time    `json:"occurredAt"`
	Listing    core.Listing `json:"listing"`
}

// NotificationCreatedEvent announces a new match notification.
type NotificationCreatedEvent struct {
	EventID      string            `json:"eventId"`
	OccurredAt   time.Time         `json:"occurredAt"`
	Notification core.Notification `json:"notification"`
}

// NewListingCreatedEvent wraps listing in an event with a fresh ID.
func NewListingCreatedEvent(listing *core.Listing) ListingCreatedEvent {
	return ListingCreatedEvent{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Listing:    *listing,
	}
}

// NewNotificationCreatedEvent wraps n in an event with a fresh ID.
func NewNotificationCreatedEvent(n *core.Notification) NotificationCreatedEvent {
	return NotificationCreatedEvent{
		EventID:      uuid.NewString(),
		OccurredAt:   time.Now().UTC(),
		Notification: *n,
	}
}

// DecodeListingCreated parses a listing.created payload.
func DecodeListingCreated(data []byte) (*ListingCreatedEvent, error) {
	var event ListingCreatedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: decoding listing event: %w", core.ErrInvalidArgument, err)
	}
	return &event, nil
}

// NotificationSubject returns the subject notifications for recipientID are published on.
func NotificationSubject(recipientID string) string {
	return SubjectNotificationCreated + "." + recipientID
}
