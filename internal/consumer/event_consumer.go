package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/metrics"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/shared/rabbitmq"
)

const (
	consumerTag     = "notification-engine"
	defaultPrefetch = 20
	restartDelay    = 5 * time.Second
)

// Broker is the part of the RabbitMQ client the consumer needs
type Broker interface {
	Setup(exchange, queue, routingKey string) error
	Consume(ctx context.Context, queue, consumerTag string, prefetch int) (<-chan rabbitmq.Message, error)
}

// Submitter accepts decoded events
type Submitter interface {
	SubmitEvent(ctx context.Context, event domain.NotificationEvent)
}

// Config names the topology the consumer binds to
type Config struct {
	Exchange   string
	Queue      string
	RoutingKey string
	Prefetch   int
}

// EventConsumer feeds business events from RabbitMQ into the engine
type EventConsumer struct {
	broker       Broker
	submitter    Submitter
	config       Config
	restartDelay time.Duration
	log          *logger.Logger
}

// NewEventConsumer creates a new event consumer
func NewEventConsumer(broker Broker, submitter Submitter, config Config, log *logger.Logger) *EventConsumer {
	if config.Prefetch <= 0 {
		config.Prefetch = defaultPrefetch
	}
	return &EventConsumer{
		broker:       broker,
		submitter:    submitter,
		config:       config,
		restartDelay: restartDelay,
		log:          log,
	}
}

// Run consumes until ctx is done. A consumer closed by the broker is
// restarted after a short delay.
func (c *EventConsumer) Run(ctx context.Context) error {
	c.log.Info("Starting event consumer", "exchange", c.config.Exchange, "queue", c.config.Queue)

	if err := c.broker.Setup(c.config.Exchange, c.config.Queue, c.config.RoutingKey); err != nil {
		return fmt.Errorf("setup consumer topology: %w", err)
	}

	for {
		if err := c.consume(ctx); err != nil {
			c.log.Error("Event consumer stopped", "error", err)
		}
		if ctx.Err() != nil {
			c.log.Info("Event consumer stopped")
			return nil
		}

		metrics.ConsumerRestarts.Inc()
		c.log.Warn("Restarting event consumer", "delay", c.restartDelay.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.restartDelay):
		}
	}
}

func (c *EventConsumer) consume(ctx context.Context) error {
	messages, err := c.broker.Consume(ctx, c.config.Queue, consumerTag, c.config.Prefetch)
	if err != nil {
		return err
	}

	for msg := range messages {
		if c.Handle(ctx, msg.Body, msg.RoutingKey) {
			if err := msg.Ack(); err != nil {
				c.log.Error("Failed to ack message", "error", err)
			}
			continue
		}
		// Don't requeue invalid messages
		if err := msg.Nack(false); err != nil {
			c.log.Error("Failed to nack message", "error", err)
		}
	}
	return nil
}

// Handle decodes one message body and submits it. It reports false when
// the message can never be processed and should be dropped.
func (c *EventConsumer) Handle(ctx context.Context, body []byte, routingKey string) bool {
	var event domain.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.log.Error("Failed to unmarshal event", "error", err, "routing_key", routingKey)
		return false
	}
	if err := event.Validate(); err != nil {
		c.log.Error("Rejected invalid event", "error", err, "routing_key", routingKey)
		return false
	}
	if event.Source == "" {
		event.Source = routingKey
	}

	c.submitter.SubmitEvent(ctx, event)
	return true
}
