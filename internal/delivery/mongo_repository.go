package delivery

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

// ErrNotFound wraps the common repository sentinel so instrumentation
// can classify it without importing this package.
var ErrNotFound = fmt.Errorf("delivery: %w", repository.ErrNotFound)

// mongoRepository provides MongoDB access to delivery records
type mongoRepository struct {
	deliveries *mongo.Collection
}

// NewRepository creates a new delivery repository with instrumentation
func NewRepository(db *mongo.Database) Repository {
	return newInstrumentedRepository(&mongoRepository{
		deliveries: db.Collection("webhook_deliveries"),
	})
}

// FindDeliveryByID finds a delivery record by ID
func (r *mongoRepository) FindDeliveryByID(ctx context.Context, id string) (*Delivery, error) {
	var d Delivery
	err := r.deliveries.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// FindDeliveriesByWebhook returns a webhook's deliveries with pagination, newest first
func (r *mongoRepository) FindDeliveriesByWebhook(ctx context.Context, webhookID string, skip, limit int64) ([]*Delivery, error) {
	opts := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.deliveries.Find(ctx, bson.M{"webhookId": webhookID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*Delivery
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindDeliveriesByStatus returns deliveries in a given status with pagination, oldest first
func (r *mongoRepository) FindDeliveriesByStatus(ctx context.Context, status Status, skip, limit int64) ([]*Delivery, error) {
	opts := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.deliveries.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*Delivery
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// InsertDelivery creates a new delivery record
func (r *mongoRepository) InsertDelivery(ctx context.Context, d *Delivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = StatusPending
	}
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := r.deliveries.InsertOne(ctx, d)
	return err
}

// UpdateDeliveryResult rewrites the outcome fields of a delivery record in place
func (r *mongoRepository) UpdateDeliveryResult(ctx context.Context, id string, result Result) error {
	set := bson.M{
		"status":    result.Status,
		"response":  result.Response,
		"attempts":  result.Attempts,
		"updatedAt": time.Now(),
	}
	if result.CompletedAt != nil {
		set["completedAt"] = *result.CompletedAt
	}

	res, err := r.deliveries.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountDeliveriesByWebhook counts all deliveries recorded for a webhook
func (r *mongoRepository) CountDeliveriesByWebhook(ctx context.Context, webhookID string) (int64, error) {
	return r.deliveries.CountDocuments(ctx, bson.M{"webhookId": webhookID})
}

// CountDeliveriesByWebhookAndStatus counts a webhook's deliveries in a given status
func (r *mongoRepository) CountDeliveriesByWebhookAndStatus(ctx context.Context, webhookID string, status Status) (int64, error) {
	return r.deliveries.CountDocuments(ctx, bson.M{"webhookId": webhookID, "status": status})
}

// SuccessRate returns the percentage of a webhook's deliveries that succeeded,
// in the range [0, 100]. A webhook with no deliveries reports 0.
func (r *mongoRepository) SuccessRate(ctx context.Context, webhookID string) (float64, error) {
	total, err := r.CountDeliveriesByWebhook(ctx, webhookID)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}

	succeeded, err := r.CountDeliveriesByWebhookAndStatus(ctx, webhookID, StatusSuccess)
	if err != nil {
		return 0, err
	}
	return float64(succeeded) / float64(total) * 100, nil
}
