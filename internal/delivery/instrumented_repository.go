package delivery

import (
	"context"

	"go.quayer.tech/hooks/internal/common/repository"
)

const collectionName = "webhook_deliveries"

// instrumentedRepository wraps a Repository with metrics and logging
type instrumentedRepository struct {
	inner Repository
}

// newInstrumentedRepository creates an instrumented wrapper around a Repository
func newInstrumentedRepository(inner Repository) Repository {
	return &instrumentedRepository{inner: inner}
}

func (r *instrumentedRepository) FindDeliveryByID(ctx context.Context, id string) (*Delivery, error) {
	return repository.Instrument(ctx, collectionName, "FindDeliveryByID", func() (*Delivery, error) {
		return r.inner.FindDeliveryByID(ctx, id)
	})
}

func (r *instrumentedRepository) FindDeliveriesByWebhook(ctx context.Context, webhookID string, skip, limit int64) ([]*Delivery, error) {
	return repository.Instrument(ctx, collectionName, "FindDeliveriesByWebhook", func() ([]*Delivery, error) {
		return r.inner.FindDeliveriesByWebhook(ctx, webhookID, skip, limit)
	})
}

func (r *instrumentedRepository) FindDeliveriesByStatus(ctx context.Context, status Status, skip, limit int64) ([]*Delivery, error) {
	return repository.Instrument(ctx, collectionName, "FindDeliveriesByStatus", func() ([]*Delivery, error) {
		return r.inner.FindDeliveriesByStatus(ctx, status, skip, limit)
	})
}

func (r *instrumentedRepository) InsertDelivery(ctx context.Context, d *Delivery) error {
	return repository.InstrumentVoid(ctx, collectionName, "InsertDelivery", func() error {
		return r.inner.InsertDelivery(ctx, d)
	})
}

func (r *instrumentedRepository) UpdateDeliveryResult(ctx context.Context, id string, result Result) error {
	return repository.InstrumentVoid(ctx, collectionName, "UpdateDeliveryResult", func() error {
		return r.inner.UpdateDeliveryResult(ctx, id, result)
	})
}

func (r *instrumentedRepository) CountDeliveriesByWebhook(ctx context.Context, webhookID string) (int64, error) {
	return repository.Instrument(ctx, collectionName, "CountDeliveriesByWebhook", func() (int64, error) {
		return r.inner.CountDeliveriesByWebhook(ctx, webhookID)
	})
}

func (r *instrumentedRepository) CountDeliveriesByWebhookAndStatus(ctx context.Context, webhookID string, status Status) (int64, error) {
	return repository.Instrument(ctx, collectionName, "CountDeliveriesByWebhookAndStatus", func() (int64, error) {
		return r.inner.CountDeliveriesByWebhookAndStatus(ctx, webhookID, status)
	})
}

func (r *instrumentedRepository) SuccessRate(ctx context.Context, webhookID string) (float64, error) {
	return repository.Instrument(ctx, collectionName, "SuccessRate", func() (float64, error) {
		return r.inner.SuccessRate(ctx, webhookID)
	})
}
