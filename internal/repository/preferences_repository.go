package repository

import (
	"context"
	stderrors "errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/mongodb"
)

const preferencesCollection = "notification_preferences"

// PreferencesRepository stores recipient preferences in MongoDB
type PreferencesRepository struct {
	client *mongodb.MongoClient
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(client *mongodb.MongoClient) *PreferencesRepository {
	return &PreferencesRepository{client: client}
}

// Get retrieves preferences for a recipient
func (r *PreferencesRepository) Get(ctx context.Context, recipientID string) (*domain.Preferences, error) {
	var prefs domain.Preferences
	err := r.client.Collection(preferencesCollection).FindOne(ctx, bson.M{"_id": recipientID}).Decode(&prefs)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.NewNotFoundError("preferences not found: "+recipientID, err)
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Save upserts preferences keyed by recipient id
func (r *PreferencesRepository) Save(ctx context.Context, prefs *domain.Preferences) error {
	if prefs.RecipientID == "" {
		return errors.NewValidationError("recipient id is required", nil)
	}
	filter := bson.M{"_id": prefs.RecipientID}
	opts := options.Replace().SetUpsert(true)

	_, err := r.client.Collection(preferencesCollection).ReplaceOne(ctx, filter, prefs, opts)
	return err
}
