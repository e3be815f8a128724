package api

import (
	"github.com/go-chi/chi/v5"

	"go.quayer.tech/hooks/internal/config"
	"go.quayer.tech/hooks/internal/delivery"
	"go.quayer.tech/hooks/internal/dispatch"
	"go.quayer.tech/hooks/internal/webhook"
)

// Handlers contains all API handlers
type Handlers struct {
	webhookHandler  *WebhookHandler
	deliveryHandler *DeliveryHandler
	eventHandler    *EventHandler
}

// NewHandlers creates all API handlers wired to the given infrastructure
func NewHandlers(engine *dispatch.Engine, webhooks webhook.Repository, deliveries delivery.Repository, cfg *config.Config) *Handlers {
	return &Handlers{
		webhookHandler:  NewWebhookHandler(webhooks, deliveries, engine),
		deliveryHandler: NewDeliveryHandler(deliveries, engine),
		eventHandler:    NewEventHandler(engine, cfg.Engine.TriggerTimeout),
	}
}

// Mount attaches all API routes under /api/v1
func (h *Handlers) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/webhooks", h.webhookHandler.Routes())
		r.Mount("/deliveries", h.deliveryHandler.Routes())
		r.Mount("/events", h.eventHandler.Routes())
	})
}
