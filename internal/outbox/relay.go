package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/metrics"
	"github.com/vhvplatform/go-notification-engine/internal/repository"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/telemetry"
)

// Publisher sends a message to the broker
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// Message is the envelope relayed to the broker
type Message struct {
	ID            string                 `json:"id"`
	EventType     domain.OutboxEventType `json:"event_type"`
	AggregateType string                 `json:"aggregate_type"`
	AggregateID   string                 `json:"aggregate_id"`
	OccurredAt    time.Time              `json:"occurred_at"`
	Payload       any                    `json:"payload"`
}

// Relay persists telemetry events and forwards them to the broker
type Relay struct {
	store     repository.OutboxStore
	publisher Publisher
	exchange  string
	batchSize int
	retention time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewRelay creates a relay publishing to exchange
func NewRelay(store repository.OutboxStore, publisher Publisher, exchange string, log *logger.Logger) *Relay {
	if log == nil {
		log = logger.NewNop()
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		exchange:  exchange,
		batchSize: 100,
		retention: 24 * time.Hour,
		log:       log,
		now:       time.Now,
	}
}

// Attach records engine telemetry into the outbox
func (r *Relay) Attach(bus *telemetry.Bus) (detach func()) {
	unsubs := []func(){
		bus.Subscribe(telemetry.DeliveryUpdated, func(e telemetry.Event) {
			if d, ok := e.Data.(*domain.Delivery); ok {
				r.record(domain.OutboxDeliveryUpdated, "delivery", d.ID, d, e.Time)
			}
		}),
		bus.Subscribe(telemetry.ChannelHealthChanged, func(e telemetry.Event) {
			if c, ok := e.Data.(domain.ChannelHealthChange); ok {
				r.record(domain.OutboxChannelHealthChanged, "channel", c.ChannelID, c, e.Time)
			}
		}),
		bus.Subscribe(telemetry.NotificationProcessed, func(e telemetry.Event) {
			if p, ok := e.Data.(domain.NotificationProcessed); ok {
				r.record(domain.OutboxNotificationProcessed, "event", p.EventID, p, e.Time)
			}
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (r *Relay) record(eventType domain.OutboxEventType, aggregateType, aggregateID string, payload any, at time.Time) {
	event := &domain.OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        domain.OutboxEventStatusPending,
		CreatedAt:     at,
	}
	if err := r.store.Create(context.Background(), event); err != nil {
		r.log.Error("Failed to record outbox event", "event_type", eventType, "aggregate_id", aggregateID, "error", err)
	}
}

// RelayPending publishes one batch of pending events and returns how many
// were published
func (r *Relay) RelayPending(ctx context.Context) (int, error) {
	events, err := r.store.FindPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending outbox events: %w", err)
	}

	relayed := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return relayed, err
		}
		if err := r.publish(ctx, event); err != nil {
			metrics.OutboxRelayed.WithLabelValues(string(event.EventType), "error").Inc()
			r.log.Warn("Failed to relay outbox event", "id", event.ID.Hex(), "event_type", event.EventType, "error", err)
			if markErr := r.store.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
				r.log.Error("Failed to mark outbox event failed", "id", event.ID.Hex(), "error", markErr)
			}
			continue
		}
		if err := r.store.MarkProcessed(ctx, event.ID, r.now()); err != nil {
			r.log.Error("Failed to mark outbox event processed", "id", event.ID.Hex(), "error", err)
			continue
		}
		metrics.OutboxRelayed.WithLabelValues(string(event.EventType), "ok").Inc()
		relayed++
	}
	return relayed, nil
}

func (r *Relay) publish(ctx context.Context, event *domain.OutboxEvent) error {
	body, err := json.Marshal(Message{
		ID:            event.ID.Hex(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		OccurredAt:    event.CreatedAt,
		Payload:       event.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal outbox event: %w", err)
	}
	return r.publisher.Publish(ctx, r.exchange, string(event.EventType), body)
}

// Cleanup removes relayed events older than the retention period
func (r *Relay) Cleanup(ctx context.Context) (int64, error) {
	return r.store.DeleteProcessedBefore(ctx, r.now().Add(-r.retention))
}

// Run relays every interval until ctx is done
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastCleanup := r.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RelayPending(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("Outbox relay failed", "error", err)
			}
			if r.now().Sub(lastCleanup) >= time.Hour {
				lastCleanup = r.now()
				if n, err := r.Cleanup(ctx); err != nil {
					r.log.Error("Outbox cleanup failed", "error", err)
				} else if n > 0 {
					r.log.Debug("Outbox cleanup", "deleted", n)
				}
			}
		}
	}
}
