package repository

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/mongodb"
)

const deadLettersCollection = "dead_letters"

// DeadLetterRepository stores exhausted deliveries in MongoDB
type DeadLetterRepository struct {
	client *mongodb.MongoClient
}

// NewDeadLetterRepository creates a new dead-letter repository
func NewDeadLetterRepository(client *mongodb.MongoClient) *DeadLetterRepository {
	return &DeadLetterRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *DeadLetterRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "failed_at", Value: -1}},
			Options: options.Index().SetName("failed_at_idx"),
		},
		{
			Keys: bson.D{
				{Key: "delivery.channel_id", Value: 1},
				{Key: "failed_at", Value: -1},
			},
			Options: options.Index().SetName("channel_failed_at_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, deadLettersCollection, indexes)
}

// Add inserts a dead letter
func (r *DeadLetterRepository) Add(ctx context.Context, dl *domain.DeadLetter) error {
	_, err := r.client.Collection(deadLettersCollection).InsertOne(ctx, dl)
	return err
}

// Get finds a dead letter by id
func (r *DeadLetterRepository) Get(ctx context.Context, id string) (*domain.DeadLetter, error) {
	var dl domain.DeadLetter
	err := r.client.Collection(deadLettersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&dl)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.NewNotFoundError("dead letter not found: "+id, err)
	}
	if err != nil {
		return nil, err
	}
	return &dl, nil
}

// List retrieves dead letters with pagination using a single $facet aggregation
func (r *DeadLetterRepository) List(ctx context.Context, page, pageSize int) ([]*domain.DeadLetter, int64, error) {
	skip, limit := paginate(page, pageSize)

	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"metadata": bson.A{bson.M{"$count": "total"}},
			"data": bson.A{
				bson.M{"$sort": bson.D{{Key: "failed_at", Value: -1}, {Key: "_id", Value: 1}}},
				bson.M{"$skip": skip},
				bson.M{"$limit": limit},
			},
		}}},
	}

	cursor, err := r.client.Collection(deadLettersCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	type result struct {
		Metadata []struct {
			Total int64 `bson:"total"`
		} `bson:"metadata"`
		Data []*domain.DeadLetter `bson:"data"`
	}

	var results []result
	if err = cursor.All(ctx, &results); err != nil {
		return nil, 0, err
	}
	if len(results) == 0 {
		return []*domain.DeadLetter{}, 0, nil
	}

	total := int64(0)
	if len(results[0].Metadata) > 0 {
		total = results[0].Metadata[0].Total
	}
	if results[0].Data == nil {
		return []*domain.DeadLetter{}, total, nil
	}
	return results[0].Data, total, nil
}

// MarkRetried links a dead letter to its retry delivery.
// The update only matches letters that were never retried.
func (r *DeadLetterRepository) MarkRetried(ctx context.Context, id, retryDeliveryID string, at time.Time) error {
	filter := bson.M{"_id": id, "retried_at": nil}
	update := bson.M{"$set": bson.M{"retried_at": at, "retry_delivery_id": retryDeliveryID}}
	result, err := r.client.Collection(deadLettersCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		existing, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		return errors.NewConflictError("dead letter already retried as "+existing.RetryDeliveryID, nil)
	}
	return nil
}

// ReleaseRetry clears a retry claim if retryDeliveryID still holds it
func (r *DeadLetterRepository) ReleaseRetry(ctx context.Context, id, retryDeliveryID string) error {
	filter := bson.M{"_id": id, "retry_delivery_id": retryDeliveryID}
	update := bson.M{"$unset": bson.M{"retried_at": "", "retry_delivery_id": ""}}
	_, err := r.client.Collection(deadLettersCollection).UpdateOne(ctx, filter, update)
	return err
}

// Delete removes a dead letter
func (r *DeadLetterRepository) Delete(ctx context.Context, id string) error {
	result, err := r.client.Collection(deadLettersCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return errors.NewNotFoundError("dead letter not found: "+id, nil)
	}
	return nil
}
