package delivery

import (
	"context"
	"time"
)

// Result describes the fields rewritten when a dispatch attempt resolves.
// CompletedAt stays nil to leave the stored value untouched.
type Result struct {
	Status      Status
	Response    *Response
	Attempts    int
	CompletedAt *time.Time
}

// Repository defines the interface for delivery record data access.
// All implementations must be wrapped with instrumentation.
type Repository interface {
	FindDeliveryByID(ctx context.Context, id string) (*Delivery, error)
	FindDeliveriesByWebhook(ctx context.Context, webhookID string, skip, limit int64) ([]*Delivery, error)
	FindDeliveriesByStatus(ctx context.Context, status Status, skip, limit int64) ([]*Delivery, error)
	InsertDelivery(ctx context.Context, d *Delivery) error
	UpdateDeliveryResult(ctx context.Context, id string, result Result) error
	CountDeliveriesByWebhook(ctx context.Context, webhookID string) (int64, error)
	CountDeliveriesByWebhookAndStatus(ctx context.Context, webhookID string, status Status) (int64, error)
	SuccessRate(ctx context.Context, webhookID string) (float64, error)
}
