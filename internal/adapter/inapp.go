package adapter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/repository"
)

// InAppTransport stores deliveries in the recipient's feed
type InAppTransport struct {
	feed repository.FeedStore
	now  func() time.Time
}

// NewInAppTransport creates an in-app transport writing to feed
func NewInAppTransport(feed repository.FeedStore, now func() time.Time) *InAppTransport {
	if now == nil {
		now = time.Now
	}
	return &InAppTransport{feed: feed, now: now}
}

// Kind implements Transport
func (t *InAppTransport) Kind() domain.ChannelKind { return domain.ChannelKindInApp }

// Send implements Transport
func (t *InAppTransport) Send(ctx context.Context, channel *domain.Channel, d *domain.Delivery) error {
	return t.feed.Add(ctx, &domain.FeedItem{
		ID:             uuid.New().String(),
		RecipientID:    d.RecipientID,
		DeliveryID:     d.ID,
		NotificationID: d.NotificationID,
		Priority:       d.Priority,
		Content:        d.Content.Clone(),
		CreatedAt:      t.now(),
	})
}

// Probe implements Transport
func (t *InAppTransport) Probe(ctx context.Context, channel *domain.Channel) error {
	_, err := t.feed.UnreadCount(ctx, "")
	return err
}
