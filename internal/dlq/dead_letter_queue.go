package dlq

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/repository"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/telemetry"
)

// Requeuer hands a fresh copy of a delivery back to the processor
type Requeuer interface {
	Requeue(d *domain.Delivery, newID string) (*domain.Delivery, error)
}

// DeadLetterQueue keeps deliveries that exhausted their attempts
type DeadLetterQueue struct {
	store    repository.DeadLetterStore
	requeuer Requeuer
	log      *logger.Logger
	now      func() time.Time
}

// NewDeadLetterQueue creates a new dead letter queue
func NewDeadLetterQueue(store repository.DeadLetterStore, requeuer Requeuer, log *logger.Logger) *DeadLetterQueue {
	if log == nil {
		log = logger.NewNop()
	}
	return &DeadLetterQueue{
		store:    store,
		requeuer: requeuer,
		log:      log,
		now:      time.Now,
	}
}

// ShouldDeadLetter reports whether d failed for good
func ShouldDeadLetter(d *domain.Delivery) bool {
	return d.Status == domain.DeliveryStatusFailed && d.Terminal()
}

// Attach records exhausted deliveries published on the bus
func (q *DeadLetterQueue) Attach(bus *telemetry.Bus) (detach func()) {
	return bus.Subscribe(telemetry.DeliveryUpdated, func(e telemetry.Event) {
		d, ok := e.Data.(*domain.Delivery)
		if !ok || !ShouldDeadLetter(d) {
			return
		}
		if err := q.Add(context.Background(), d); err != nil {
			q.log.Error("Failed to add delivery to DLQ", "delivery_id", d.ID, "error", err)
		}
	})
}

// Add stores a failed delivery
func (q *DeadLetterQueue) Add(ctx context.Context, d *domain.Delivery) error {
	q.log.Warn("Adding delivery to DLQ",
		"delivery_id", d.ID,
		"channel_id", d.ChannelID,
		"attempts", d.Attempts,
		"error", d.LastError,
	)

	failedAt := q.now()
	if d.FailedAt != nil {
		failedAt = *d.FailedAt
	}
	return q.store.Add(ctx, &domain.DeadLetter{
		ID:       uuid.New().String(),
		Delivery: *d.Clone(),
		Error:    d.LastError,
		FailedAt: failedAt,
	})
}

// GetAll retrieves a page of dead letters
func (q *DeadLetterQueue) GetAll(ctx context.Context, page, pageSize int) ([]*domain.DeadLetter, int64, error) {
	return q.store.List(ctx, page, pageSize)
}

// Get retrieves one dead letter
func (q *DeadLetterQueue) Get(ctx context.Context, id string) (*domain.DeadLetter, error) {
	return q.store.Get(ctx, id)
}

// Retry schedules a fresh delivery with the same content and target.
// Each dead letter can be retried once: the store claim is taken before
// the requeue so concurrent callers cannot both resend it.
func (q *DeadLetterQueue) Retry(ctx context.Context, id string) (*domain.Delivery, error) {
	dl, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if dl.RetriedAt != nil {
		return nil, errors.NewConflictError("dead letter already retried as "+dl.RetryDeliveryID, nil)
	}

	retryID := uuid.New().String()
	if err := q.store.MarkRetried(ctx, id, retryID, q.now()); err != nil {
		return nil, err
	}

	q.log.Info("Retrying dead letter", "id", id, "delivery_id", dl.Delivery.ID, "channel_id", dl.Delivery.ChannelID)

	fresh, err := q.requeuer.Requeue(&dl.Delivery, retryID)
	if err != nil {
		if relErr := q.store.ReleaseRetry(ctx, id, retryID); relErr != nil {
			q.log.Error("Failed to release dead letter retry", "id", id, "error", relErr)
		}
		return nil, err
	}
	return fresh, nil
}

// Delete removes a dead letter
func (q *DeadLetterQueue) Delete(ctx context.Context, id string) error {
	return q.store.Delete(ctx, id)
}
