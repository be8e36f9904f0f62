package adapter

import (
	"context"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// LogTransport stands in for SMS and push providers: it validates the
// delivery and logs it instead of calling a gateway.
type LogTransport struct {
	kind domain.ChannelKind
	log  *logger.Logger
}

// NewSMSTransport creates the log-only SMS transport
func NewSMSTransport(log *logger.Logger) *LogTransport {
	return &LogTransport{kind: domain.ChannelKindSMS, log: log}
}

// NewPushTransport creates the log-only push transport
func NewPushTransport(log *logger.Logger) *LogTransport {
	return &LogTransport{kind: domain.ChannelKindPush, log: log}
}

// Kind implements Transport
func (t *LogTransport) Kind() domain.ChannelKind { return t.kind }

// Send implements Transport
func (t *LogTransport) Send(ctx context.Context, channel *domain.Channel, d *domain.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := requireAddress(d); err != nil {
		return err
	}

	fields := []interface{}{
		"channel_id", channel.ID,
		"delivery_id", d.ID,
		"to", d.Address,
	}
	if d.Content.Push != nil {
		fields = append(fields, "title", d.Content.Push.Title)
	} else {
		fields = append(fields, "length", len([]rune(d.Content.Body)))
	}
	t.log.Info("Simulated "+string(t.kind)+" send", fields...)
	return nil
}

// Probe implements Transport
func (t *LogTransport) Probe(ctx context.Context, channel *domain.Channel) error {
	return ctx.Err()
}
