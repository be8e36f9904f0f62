package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// FeedStore persists in-app feed items per recipient
type FeedStore interface {
	Add(ctx context.Context, item *domain.FeedItem) error
	List(ctx context.Context, recipientID string, filter domain.FeedFilter) ([]*domain.FeedItem, int64, error)
	UnreadCount(ctx context.Context, recipientID string) (int64, error)
	Update(ctx context.Context, recipientID, itemID string, req domain.UpdateFeedItemRequest, now time.Time) (*domain.FeedItem, error)
}

// PreferenceStore persists recipient preference records
type PreferenceStore interface {
	Get(ctx context.Context, recipientID string) (*domain.Preferences, error)
	Save(ctx context.Context, prefs *domain.Preferences) error
}

// DispatchCounter counts rule dispatches per window key.
// Keys expire at the given time.
type DispatchCounter interface {
	Get(ctx context.Context, key string) (int, error)
	Increment(ctx context.Context, key string, expiresAt time.Time) (int, error)
}

// DeadLetterStore persists deliveries that exhausted their attempts
type DeadLetterStore interface {
	Add(ctx context.Context, dl *domain.DeadLetter) error
	Get(ctx context.Context, id string) (*domain.DeadLetter, error)
	List(ctx context.Context, page, pageSize int) ([]*domain.DeadLetter, int64, error)
	// MarkRetried claims the dead letter for one retry. It returns a
	// conflict error when the letter was already retried.
	MarkRetried(ctx context.Context, id, retryDeliveryID string, at time.Time) error
	// ReleaseRetry undoes a claim held by retryDeliveryID
	ReleaseRetry(ctx context.Context, id, retryDeliveryID string) error
	Delete(ctx context.Context, id string) error
}

// OutboxStore persists telemetry events until they are relayed
type OutboxStore interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id primitive.ObjectID, at time.Time) error
	MarkFailed(ctx context.Context, id primitive.ObjectID, errorMsg string) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// maxOutboxErrors is the number of relay failures after which an outbox event is abandoned
const maxOutboxErrors = 5

func paginate(page, pageSize int) (skip, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return (page - 1) * pageSize, pageSize
}

var (
	_ FeedStore       = (*MemoryFeedStore)(nil)
	_ FeedStore       = (*FeedRepository)(nil)
	_ PreferenceStore = (*MemoryPreferenceStore)(nil)
	_ PreferenceStore = (*PreferencesRepository)(nil)
	_ DispatchCounter = (*MemoryDispatchCounter)(nil)
	_ DispatchCounter = (*DispatchCounterRepository)(nil)
	_ DeadLetterStore = (*MemoryDeadLetterStore)(nil)
	_ DeadLetterStore = (*DeadLetterRepository)(nil)
	_ OutboxStore     = (*MemoryOutboxStore)(nil)
	_ OutboxStore     = (*OutboxEventRepository)(nil)
)
