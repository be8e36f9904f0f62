package repository

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vhvplatform/go-notification-engine/internal/shared/mongodb"
)

const dispatchCountersCollection = "rule_dispatch_counters"

type counterDoc struct {
	Key       string    `bson:"_id"`
	Count     int       `bson:"count"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// DispatchCounterRepository keeps rule dispatch counters in MongoDB.
// Expired windows are removed by a TTL index.
type DispatchCounterRepository struct {
	client *mongodb.MongoClient
	now    func() time.Time
}

// NewDispatchCounterRepository creates a new dispatch counter repository
func NewDispatchCounterRepository(client *mongodb.MongoClient) *DispatchCounterRepository {
	return &DispatchCounterRepository{client: client, now: time.Now}
}

// EnsureIndexes creates the TTL index on expires_at
func (r *DispatchCounterRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("expires_at_ttl_idx").SetExpireAfterSeconds(0),
		},
	}
	return r.client.CreateIndexes(ctx, dispatchCountersCollection, indexes)
}

// Get returns the count of key, treating expired documents as zero since
// the TTL monitor only runs periodically
func (r *DispatchCounterRepository) Get(ctx context.Context, key string) (int, error) {
	var doc counterDoc
	err := r.client.Collection(dispatchCountersCollection).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !r.now().Before(doc.ExpiresAt) {
		return 0, nil
	}
	return doc.Count, nil
}

// Increment atomically adds one to key
func (r *DispatchCounterRepository) Increment(ctx context.Context, key string, expiresAt time.Time) (int, error) {
	update := bson.M{
		"$inc": bson.M{"count": 1},
		"$set": bson.M{"expires_at": expiresAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc counterDoc
	if err := r.client.Collection(dispatchCountersCollection).FindOneAndUpdate(ctx, bson.M{"_id": key}, update, opts).Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Count, nil
}
