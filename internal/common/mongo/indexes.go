package mongo

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexDefinition defines a MongoDB index
type IndexDefinition struct {
	Collection string
	Keys       bson.D
	Options    *options.IndexOptions
}

// IndexInitializer creates indexes on startup
type IndexInitializer struct {
	client *Client
}

// NewIndexInitializer creates a new index initializer
func NewIndexInitializer(client *Client) *IndexInitializer {
	return &IndexInitializer{client: client}
}

// Initialize creates all required indexes
func (i *IndexInitializer) Initialize(ctx context.Context) error {
	indexes := i.getIndexDefinitions()

	for _, idx := range indexes {
		if err := i.createIndex(ctx, idx); err != nil {
			slog.Warn("Failed to create index (may already exist)",
				"error", err,
				"collection", idx.Collection)
		}
	}

	slog.Info("Index initialization complete", "count", len(indexes))
	return nil
}

func (i *IndexInitializer) createIndex(ctx context.Context, idx IndexDefinition) error {
	collection := i.client.Collection(idx.Collection)

	indexModel := mongo.IndexModel{
		Keys:    idx.Keys,
		Options: idx.Options,
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

func (i *IndexInitializer) getIndexDefinitions() []IndexDefinition {
	return []IndexDefinition{
		// webhooks: fan-out lookup is tenant + active + interested event
		{
			Collection: "webhooks",
			Keys: bson.D{
				{Key: "tenantId", Value: 1},
				{Key: "active", Value: 1},
				{Key: "events", Value: 1},
			},
		},
		{
			Collection: "webhooks",
			Keys:       bson.D{{Key: "tenantId", Value: 1}, {Key: "createdAt", Value: -1}},
		},

		// webhook_deliveries: listing is per webhook newest-first,
		// status index serves failure triage queries
		{
			Collection: "webhook_deliveries",
			Keys:       bson.D{{Key: "webhookId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Collection: "webhook_deliveries",
			Keys:       bson.D{{Key: "status", Value: 1}},
		},
		{
			Collection: "webhook_deliveries",
			Keys:       bson.D{{Key: "webhookId", Value: 1}, {Key: "status", Value: 1}},
		},
	}
}
