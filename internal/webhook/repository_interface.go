package webhook

import "context"

// Repository defines the interface for webhook subscription data access.
// All implementations must be wrapped with instrumentation.
type Repository interface {
	FindWebhookByID(ctx context.Context, id string) (*Subscription, error)
	FindWebhooksByTenant(ctx context.Context, tenantID string, skip, limit int64) ([]*Subscription, error)
	FindActiveWebhooksByEvent(ctx context.Context, tenantID, event string) ([]*Subscription, error)
	InsertWebhook(ctx context.Context, sub *Subscription) error
	UpdateWebhook(ctx context.Context, sub *Subscription) error
	UpdateWebhookActive(ctx context.Context, id string, active bool) error
	DeleteWebhook(ctx context.Context, id string) error
}
