package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/poiesic/lostfound/core"
)

// Publisher sends raw payloads to a subject. *Client implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ListingHandler reacts to a newly created listing.
type ListingHandler interface {
	OnListingCreated(ctx context.Context, listing *core.Listing) error
}

// NotificationPublisher announces notifications on NATS.
type NotificationPublisher struct {
	publisher Publisher
}

// NewNotificationPublisher creates a NotificationPublisher.
func NewNotificationPublisher(publisher Publisher) *NotificationPublisher {
	return &NotificationPublisher{publisher: publisher}
}

// PublishNotification publishes n on notification.created.<recipient>.
func (p *NotificationPublisher) PublishNotification(_ context.Context, n *core.Notification) error {
	data, err := json.Marshal(NewNotificationCreatedEvent(n))
	if err != nil {
		return fmt.Errorf("encoding notification event: %w", err)
	}
	return p.publisher.Publish(NotificationSubject(n.RecipientID), data)
}

// PublishListingCreated announces listing on listing.created.
func PublishListingCreated(publisher Publisher, listing *core.Listing) error {
	data, err := json.Marshal(NewListingCreatedEvent(listing))
	if err != nil {
		return fmt.Errorf("encoding listing event: %w", err)
	}
	return publisher.Publish(SubjectListingCreated, data)
}

// ListingSubscriber feeds listing.created events to a ListingHandler.
type ListingSubscriber struct {
	handler ListingHandler
	timeout time.Duration
	logger  *slog.Logger
}

// NewListingSubscriber creates a subscriber passing events to handler.
func NewListingSubscriber(handler ListingHandler, logger *slog.Logger) *ListingSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingSubscriber{
		handler: handler,
		timeout: 10 * time.Second,
		logger:  logger,
	}
}

// Subscribe starts consuming listing.created on client within queue group.
func (s *ListingSubscriber) Subscribe(client *Client, queue string) error {
	return client.QueueSubscribe(SubjectListingCreated, queue, func(msg *nats.Msg) {
		if err := s.Handle(msg.Data); err != nil {
			s.logger.Error("error handling listing event", "err", err)
		}
	})
}

// Handle decodes one listing.created payload and passes it on.
func (s *ListingSubscriber) Handle(data []byte) error {
	event, err := DecodeListingCreated(data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.handler.OnListingCreated(ctx, &event.Listing); err != nil {
		return fmt.Errorf("listing %s (event %s): %w", event.Listing.ID, event.EventID, err)
	}
	s.logger.Debug("listing event handled", "listing", event.Listing.ID, "event", event.EventID)
	return nil
}
