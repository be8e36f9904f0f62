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

const feedCollection = "notification_feed"

// FeedRepository stores in-app feed items in MongoDB
type FeedRepository struct {
	client *mongodb.MongoClient
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(client *mongodb.MongoClient) *FeedRepository {
	return &FeedRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *FeedRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "recipient_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("recipient_created_idx"),
		},
		{
			Keys: bson.D{
				{Key: "recipient_id", Value: 1},
				{Key: "read", Value: 1},
				{Key: "archived", Value: 1},
			},
			Options: options.Index().SetName("recipient_unread_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, feedCollection, indexes)
}

// Add inserts a feed item
func (r *FeedRepository) Add(ctx context.Context, item *domain.FeedItem) error {
	_, err := r.client.Collection(feedCollection).InsertOne(ctx, item)
	return err
}

func feedFilter(recipientID string, filter domain.FeedFilter) bson.M {
	f := bson.M{"recipient_id": recipientID}
	if filter.UnreadOnly {
		f["read"] = false
	}
	if !filter.IncludeArchived {
		f["archived"] = false
	}
	return f
}

// List returns the recipient's feed newest first with the total match count
func (r *FeedRepository) List(ctx context.Context, recipientID string, filter domain.FeedFilter) ([]*domain.FeedItem, int64, error) {
	query := feedFilter(recipientID, filter)

	total, err := r.client.Collection(feedCollection).CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.client.Collection(feedCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	items := make([]*domain.FeedItem, 0)
	if err = cursor.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UnreadCount counts unread, unarchived items
func (r *FeedRepository) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	return r.client.Collection(feedCollection).CountDocuments(ctx, bson.M{
		"recipient_id": recipientID,
		"read":         false,
		"archived":     false,
	})
}

// Update applies flag changes and returns the updated item
func (r *FeedRepository) Update(ctx context.Context, recipientID, itemID string, req domain.UpdateFeedItemRequest, now time.Time) (*domain.FeedItem, error) {
	set := bson.M{}
	unset := bson.M{}
	if req.Read != nil {
		set["read"] = *req.Read
		if *req.Read {
			set["read_at"] = now
		} else {
			unset["read_at"] = ""
		}
	}
	if req.Starred != nil {
		set["starred"] = *req.Starred
	}
	if req.Archived != nil {
		set["archived"] = *req.Archived
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	filter := bson.M{"_id": itemID, "recipient_id": recipientID}
	var item domain.FeedItem
	var err error
	if len(update) == 0 {
		err = r.client.Collection(feedCollection).FindOne(ctx, filter).Decode(&item)
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = r.client.Collection(feedCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&item)
	}
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.NewNotFoundError("feed item not found: "+itemID, err)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
