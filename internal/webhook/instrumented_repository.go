package webhook

import (
	"context"

	"go.quayer.tech/hooks/internal/common/repository"
)

const collectionName = "webhooks"

// instrumentedRepository wraps a Repository with metrics and logging
type instrumentedRepository struct {
	inner Repository
}

// newInstrumentedRepository creates an instrumented wrapper around a Repository
func newInstrumentedRepository(inner Repository) Repository {
	return &instrumentedRepository{inner: inner}
}

func (r *instrumentedRepository) FindWebhookByID(ctx context.Context, id string) (*Subscription, error) {
	return repository.Instrument(ctx, collectionName, "FindWebhookByID", func() (*Subscription, error) {
		return r.inner.FindWebhookByID(ctx, id)
	})
}

func (r *instrumentedRepository) FindWebhooksByTenant(ctx context.Context, tenantID string, skip, limit int64) ([]*Subscription, error) {
	return repository.Instrument(ctx, collectionName, "FindWebhooksByTenant", func() ([]*Subscription, error) {
		return r.inner.FindWebhooksByTenant(ctx, tenantID, skip, limit)
	})
}

func (r *instrumentedRepository) FindActiveWebhooksByEvent(ctx context.Context, tenantID, event string) ([]*Subscription, error) {
	return repository.Instrument(ctx, collectionName, "FindActiveWebhooksByEvent", func() ([]*Subscription, error) {
		return r.inner.FindActiveWebhooksByEvent(ctx, tenantID, event)
	})
}

func (r *instrumentedRepository) InsertWebhook(ctx context.Context, sub *Subscription) error {
	return repository.InstrumentVoid(ctx, collectionName, "InsertWebhook", func() error {
		return r.inner.InsertWebhook(ctx, sub)
	})
}

func (r *instrumentedRepository) UpdateWebhook(ctx context.Context, sub *Subscription) error {
	return repository.InstrumentVoid(ctx, collectionName, "UpdateWebhook", func() error {
		return r.inner.UpdateWebhook(ctx, sub)
	})
}

func (r *instrumentedRepository) UpdateWebhookActive(ctx context.Context, id string, active bool) error {
	return repository.InstrumentVoid(ctx, collectionName, "UpdateWebhookActive", func() error {
		return r.inner.UpdateWebhookActive(ctx, id, active)
	})
}

func (r *instrumentedRepository) DeleteWebhook(ctx context.Context, id string) error {
	return repository.InstrumentVoid(ctx, collectionName, "DeleteWebhook", func() error {
		return r.inner.DeleteWebhook(ctx, id)
	})
}
