package adapter

import (
	"context"
	"net/http"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

type chatMessage struct {
	Channel string             `json:"channel,omitempty"`
	Text    string             `json:"text"`
	Blocks  []domain.ChatBlock `json:"blocks,omitempty"`
}

// ChatTransport posts block messages to an incoming-webhook style chat endpoint
type ChatTransport struct {
	client *http.Client
}

// NewChatTransport creates a chat transport
func NewChatTransport(client *http.Client) *ChatTransport {
	if client == nil {
		client = newHTTPClient()
	}
	return &ChatTransport{client: client}
}

// Kind implements Transport
func (t *ChatTransport) Kind() domain.ChannelKind { return domain.ChannelKindChat }

// Send implements Transport. The recipient's chat address, when present,
// selects the target conversation.
func (t *ChatTransport) Send(ctx context.Context, channel *domain.Channel, d *domain.Delivery) error {
	return postJSON(ctx, t.client, channel, chatMessage{
		Channel: d.Address,
		Text:    d.Content.Body,
		Blocks:  d.Content.Blocks,
	})
}

// Probe implements Transport
func (t *ChatTransport) Probe(ctx context.Context, channel *domain.Channel) error {
	return probeEndpoint(ctx, t.client, channel)
}
