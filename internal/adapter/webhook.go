package adapter

import (
	"context"
	"net/http"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// WebhookPayload is the JSON body posted to webhook channels
type WebhookPayload struct {
	DeliveryID     string                 `json:"delivery_id"`
	NotificationID string                 `json:"notification_id"`
	RuleID         string                 `json:"rule_id"`
	RecipientID    string                 `json:"recipient_id"`
	Priority       domain.Priority        `json:"priority"`
	Attempt        int                    `json:"attempt"`
	Content        domain.RenderedContent `json:"content"`
	SentAt         time.Time              `json:"sent_at"`
}

// WebhookTransport posts deliveries as JSON to the channel endpoint
type WebhookTransport struct {
	client *http.Client
}

// NewWebhookTransport creates a webhook transport. A nil client uses a
// default with a 30s timeout.
func NewWebhookTransport(client *http.Client) *WebhookTransport {
	if client == nil {
		client = newHTTPClient()
	}
	return &WebhookTransport{client: client}
}

// Kind implements Transport
func (t *WebhookTransport) Kind() domain.ChannelKind { return domain.ChannelKindWebhook }

// Send implements Transport
func (t *WebhookTransport) Send(ctx context.Context, channel *domain.Channel, d *domain.Delivery) error {
	payload := WebhookPayload{
		DeliveryID:     d.ID,
		NotificationID: d.NotificationID,
		RuleID:         d.RuleID,
		RecipientID:    d.RecipientID,
		Priority:       d.Priority,
		Attempt:        d.Attempts,
		Content:        d.Content,
	}
	if d.SentAt != nil {
		payload.SentAt = *d.SentAt
	}
	return postJSON(ctx, t.client, channel, payload)
}

// Probe implements Transport
func (t *WebhookTransport) Probe(ctx context.Context, channel *domain.Channel) error {
	return probeEndpoint(ctx, t.client, channel)
}
