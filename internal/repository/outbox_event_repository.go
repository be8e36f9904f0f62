package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/mongodb"
)

const outboxEventsCollection = "outbox_events"

// OutboxEventRepository stores telemetry events awaiting relay
type OutboxEventRepository struct {
	client *mongodb.MongoClient
}

// NewOutboxEventRepository creates a new outbox event repository
func NewOutboxEventRepository(client *mongodb.MongoClient) *OutboxEventRepository {
	return &OutboxEventRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *OutboxEventRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "createdAt", Value: 1},
			},
			Options: options.Index().SetName("status_created_idx"),
		},
		{
			Keys: bson.D{
				{Key: "aggregateType", Value: 1},
				{Key: "aggregateId", Value: 1},
			},
			Options: options.Index().SetName("aggregate_idx"),
		},
		{
			Keys:    bson.D{{Key: "processedAt", Value: 1}},
			Options: options.Index().SetName("processed_at_idx").SetSparse(true),
		},
	}

	return r.client.CreateIndexes(ctx, outboxEventsCollection, indexes)
}

// Create inserts a pending outbox event
func (r *OutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Status == "" {
		event.Status = domain.OutboxEventStatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := r.client.Collection(outboxEventsCollection).InsertOne(ctx, event)
	return err
}

// FindPending returns up to limit pending events oldest first
func (r *OutboxEventRepository) FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.client.Collection(outboxEventsCollection).Find(ctx, bson.M{"status": domain.OutboxEventStatusPending}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := make([]*domain.OutboxEvent, 0)
	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// MarkProcessed marks an outbox event as relayed
func (r *OutboxEventRepository) MarkProcessed(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"status":      domain.OutboxEventStatusProcessed,
			"processedAt": at,
		},
	}

	result, err := r.client.Collection(outboxEventsCollection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.NewNotFoundError("outbox event not found: "+id.Hex(), nil)
	}
	return nil
}

// MarkFailed records a relay failure and abandons the event after maxOutboxErrors
func (r *OutboxEventRepository) MarkFailed(ctx context.Context, id primitive.ObjectID, errorMsg string) error {
	next := bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$errorCount", 0}}, 1}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"errorCount": next,
			"lastError":  errorMsg,
			"status": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{next, maxOutboxErrors}},
				domain.OutboxEventStatusFailed,
				"$status",
			}},
		}}},
	}

	result, err := r.client.Collection(outboxEventsCollection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.NewNotFoundError("outbox event not found: "+id.Hex(), nil)
	}
	return nil
}

// DeleteProcessedBefore removes relayed events processed before cutoff
func (r *OutboxEventRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":      domain.OutboxEventStatusProcessed,
		"processedAt": bson.M{"$lt": cutoff},
	}

	result, err := r.client.Collection(outboxEventsCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
