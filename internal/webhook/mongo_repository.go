package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.quayer.tech/hooks/internal/common/repository"
)

// Sentinels wrap the common repository errors so instrumentation can
// classify them without importing this package.
var (
	ErrNotFound  = fmt.Errorf("webhook: %w", repository.ErrNotFound)
	ErrDuplicate = fmt.Errorf("webhook: %w", repository.ErrDuplicateKey)
)

// mongoRepository provides MongoDB access to webhook subscription data
type mongoRepository struct {
	webhooks *mongo.Collection
}

// NewRepository creates a new webhook repository with instrumentation
func NewRepository(db *mongo.Database) Repository {
	return newInstrumentedRepository(&mongoRepository{
		webhooks: db.Collection("webhooks"),
	})
}

// FindWebhookByID finds a webhook subscription by ID
func (r *mongoRepository) FindWebhookByID(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	err := r.webhooks.FindOne(ctx, bson.M{"_id": id}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// FindWebhooksByTenant returns a tenant's webhooks with pagination, newest first
func (r *mongoRepository) FindWebhooksByTenant(ctx context.Context, tenantID string, skip, limit int64) ([]*Subscription, error) {
	opts := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.webhooks.Find(ctx, bson.M{"tenantId": tenantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subs []*Subscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// FindActiveWebhooksByEvent finds a tenant's active webhooks whose event set
// contains the given event name (exact match)
func (r *mongoRepository) FindActiveWebhooksByEvent(ctx context.Context, tenantID, event string) ([]*Subscription, error) {
	filter := bson.M{
		"tenantId": tenantID,
		"active":   true,
		"events":   event,
	}

	cursor, err := r.webhooks.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subs []*Subscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// InsertWebhook creates a new webhook subscription
func (r *mongoRepository) InsertWebhook(ctx context.Context, sub *Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := r.webhooks.InsertOne(ctx, sub)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateWebhook updates an existing webhook subscription
func (r *mongoRepository) UpdateWebhook(ctx context.Context, sub *Subscription) error {
	sub.UpdatedAt = time.Now()

	result, err := r.webhooks.ReplaceOne(ctx, bson.M{"_id": sub.ID}, sub)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateWebhookActive flips a webhook's active flag
func (r *mongoRepository) UpdateWebhookActive(ctx context.Context, id string, active bool) error {
	result, err := r.webhooks.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"active":    active,
			"updatedAt": time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWebhook removes a webhook subscription
func (r *mongoRepository) DeleteWebhook(ctx context.Context, id string) error {
	result, err := r.webhooks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
