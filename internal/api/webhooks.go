package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"go.quayer.tech/hooks/internal/delivery"
	"go.quayer.tech/hooks/internal/dispatch"
	"go.quayer.tech/hooks/internal/webhook"
)

const defaultPageSize = 50

// WebhookHandler handles webhook subscription endpoints
type WebhookHandler struct {
	webhooks   webhook.Repository
	deliveries delivery.Repository
	engine     *dispatch.Engine
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhooks webhook.Repository, deliveries delivery.Repository, engine *dispatch.Engine) *WebhookHandler {
	return &WebhookHandler{
		webhooks:   webhooks,
		deliveries: deliveries,
		engine:     engine,
	}
}

// Routes returns the router for webhook endpoints
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/activate", h.Activate)
	r.Post("/{id}/deactivate", h.Deactivate)
	r.Get("/{id}/deliveries", h.ListDeliveries)
	r.Get("/{id}/stats", h.Stats)
	r.Post("/{id}/test", h.Test)

	return r
}

// CreateWebhookRequest represents a request to register a webhook
type CreateWebhookRequest struct {
	TenantID            string            `json:"tenantId"`
	Name                string            `json:"name"`
	URL                 string            `json:"url"`
	Events              []string          `json:"events"`
	Secret              string            `json:"secret,omitempty"`
	Active              *bool             `json:"active,omitempty"`
	ExcludeMessages     bool              `json:"excludeMessages,omitempty"`
	AddURLEvents        bool              `json:"addUrlEvents,omitempty"`
	AddURLTypesMessages []string          `json:"addUrlTypesMessages,omitempty"`
	PathParams          map[string]string `json:"pathParams,omitempty"`
	TimeoutMillis       int               `json:"timeoutMillis,omitempty"`
}

// WebhookStatsResponse reports delivery bookkeeping for one webhook
type WebhookStatsResponse struct {
	Total       int64   `json:"total"`
	Succeeded   int64   `json:"succeeded"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"successRate"`
}

// List handles GET /api/v1/webhooks
// @Summary List a tenant's webhooks
// @Tags Webhooks
// @Produce json
// @Param tenantId query string true "Tenant ID"
// @Success 200 {array} webhook.Subscription
// @Router /api/v1/webhooks [get]
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		WriteBadRequest(w, "tenantId query parameter is required")
		return
	}

	skip, limit := pagination(r)
	subs, err := h.webhooks.FindWebhooksByTenant(r.Context(), tenantID, skip, limit)
	if err != nil {
		slog.Error("Failed to list webhooks", "tenantId", tenantID, "error", err)
		WriteInternalError(w, "Failed to list webhooks")
		return
	}
	if subs == nil {
		subs = []*webhook.Subscription{}
	}

	WriteJSON(w, http.StatusOK, subs)
}

// Create handles POST /api/v1/webhooks
// @Summary Register a webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param request body CreateWebhookRequest true "Webhook to register"
// @Success 201 {object} webhook.Subscription
// @Router /api/v1/webhooks [post]
func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.TenantID == "" || req.Name == "" || req.URL == "" {
		WriteBadRequest(w, "tenantId, name and url are required")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	sub := &webhook.Subscription{
		TenantID:            req.TenantID,
		Name:                req.Name,
		URL:                 req.URL,
		Events:              req.Events,
		Secret:              req.Secret,
		Active:              active,
		ExcludeMessages:     req.ExcludeMessages,
		AddURLEvents:        req.AddURLEvents,
		AddURLTypesMessages: req.AddURLTypesMessages,
		PathParams:          req.PathParams,
		TimeoutMillis:       req.TimeoutMillis,
	}

	if err := h.webhooks.InsertWebhook(r.Context(), sub); err != nil {
		slog.Error("Failed to create webhook", "tenantId", req.TenantID, "error", err)
		WriteInternalError(w, "Failed to create webhook")
		return
	}

	slog.Info("Webhook registered",
		"webhookId", sub.ID,
		"tenantId", sub.TenantID,
		"events", len(sub.Events))
	WriteJSON(w, http.StatusCreated, sub)
}

// Get handles GET /api/v1/webhooks/{id}
// @Summary Get webhook by ID
// @Tags Webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} webhook.Subscription
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/webhooks/{id} [get]
func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sub, err := h.webhooks.FindWebhookByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			WriteNotFound(w, "Webhook not found")
			return
		}
		slog.Error("Failed to get webhook", "id", id, "error", err)
		WriteInternalError(w, "Failed to get webhook")
		return
	}

	WriteJSON(w, http.StatusOK, sub)
}

// Update handles PUT /api/v1/webhooks/{id}
// @Summary Replace a webhook's configuration
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param id path string true "Webhook ID"
// @Param request body CreateWebhookRequest true "Updated webhook"
// @Success 200 {object} webhook.Subscription
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/webhooks/{id} [put]
func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.webhooks.FindWebhookByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			WriteNotFound(w, "Webhook not found")
			return
		}
		slog.Error("Failed to load webhook", "id", id, "error", err)
		WriteInternalError(w, "Failed to update webhook")
		return
	}

	var req CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Name == "" || req.URL == "" {
		WriteBadRequest(w, "name and url are required")
		return
	}

	// Full replace of the subscription's configuration. Identity, tenant
	// scope and timestamps are preserved; the active flag only changes
	// when the request carries one.
	existing.Name = req.Name
	existing.URL = req.URL
	existing.Events = req.Events
	existing.Secret = req.Secret
	existing.ExcludeMessages = req.ExcludeMessages
	existing.AddURLEvents = req.AddURLEvents
	existing.AddURLTypesMessages = req.AddURLTypesMessages
	existing.PathParams = req.PathParams
	existing.TimeoutMillis = req.TimeoutMillis
	if req.Active != nil {
		existing.Active = *req.Active
	}

	if err := h.webhooks.UpdateWebhook(r.Context(), existing); err != nil {
		slog.Error("Failed to update webhook", "id", id, "error", err)
		WriteInternalError(w, "Failed to update webhook")
		return
	}

	WriteJSON(w, http.StatusOK, existing)
}

// Delete handles DELETE /api/v1/webhooks/{id}
// @Summary Delete a webhook
// @Tags Webhooks
// @Param id path string true "Webhook ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/webhooks/{id} [delete]
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.webhooks.DeleteWebhook(r.Context(), id); err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			WriteNotFound(w, "Webhook not found")
			return
		}
		slog.Error("Failed to delete webhook", "id", id, "error", err)
		WriteInternalError(w, "Failed to delete webhook")
		return
	}

	slog.Info("Webhook deleted", "webhookId", id)
	w.WriteHeader(http.StatusNoContent)
}

// Activate handles POST /api/v1/webhooks/{id}/activate
// @Summary Activate a webhook
// @Tags Webhooks
// @Param id path string true "Webhook ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/webhooks/{id}/activate [post]
func (h *WebhookHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate handles POST /api/v1/webhooks/{id}/deactivate
// @Summary Deactivate a webhook
// @Tags Webhooks
// @Param id path string true "Webhook ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/webhooks/{id}/deactivate [post]
func (h *WebhookHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *WebhookHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := chi.URLParam(r, "id")

	if err := h.webhooks.UpdateWebhookActive(r.Context(), id, active); err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			WriteNotFound(w, "Webhook not found")
			return
		}
		slog.Error("Failed to change webhook state", "id", id, "active", active, "error", err)
		WriteInternalError(w, "Failed to change webhook state")
		return
	}

	slog.Info("Webhook state changed", "webhookId", id, "active", active)
	w.WriteHeader(http.StatusNoContent)
}

// ListDeliveries handles GET /api/v1/webhooks/{id}/deliveries
// @Summary List a webhook's delivery records
// @Tags Webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Param page query int false "Page number (1-based)"
// @Param pageSize query int false "Page size"
// @Success 200 {object} PagedResponse[delivery.Delivery]
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/webhooks/{id}/deliveries [get]
func (h *WebhookHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.webhooks.FindWebhookByID(r.Context(), id); err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			WriteNotFound(w, "Webhook not found")
			return
		}
		slog.Error("Failed to load webhook", "id", id, "error", err)
		WriteInternalError(w, "Failed to list deliveries")
		return
	}

	skip, limit := pagination(r)
	records, err := h.deliveries.FindDeliveriesByWebhook(r.Context(), id, skip, limit)
	if err != nil {
		slog.Error("Failed to list deliveries", "webhookId", id, "error", err)
		WriteInternalError(w, "Failed to list deliveries")
		return
	}
	if records == nil {
		records = []*delivery.Delivery{}
	}

	total, err := h.deliveries.CountDeliveriesByWebhook(r.Context(), id)
	if err != nil {
		slog.Error("Failed to count deliveries", "webhookId", id, "error", err)
		WriteInternalError(w, "Failed to list deliveries")
		return
	}

	page := int(skip/limit) + 1
	pageSize := int(limit)
	totalPages := int((total + limit - 1) / limit)

	WriteJSON(w, http.StatusOK, PagedResponse[*delivery.Delivery]{
		Data:       records,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	})
}

// Stats handles GET /api/v1/webhooks/{id}/stats
// @Summary Delivery statistics for a webhook
// @Tags Webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} WebhookStatsResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/webhooks/{id}/stats [get]
func (h *WebhookHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.webhooks.FindWebhookByID(r.Context(), id); err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			WriteNotFound(w, "Webhook not found")
			return
		}
		slog.Error("Failed to load webhook", "id", id, "error", err)
		WriteInternalError(w, "Failed to load stats")
		return
	}

	ctx := r.Context()
	total, err := h.deliveries.CountDeliveriesByWebhook(ctx, id)
	if err != nil {
		slog.Error("Failed to count deliveries", "webhookId", id, "error", err)
		WriteInternalError(w, "Failed to load stats")
		return
	}
	succeeded, err := h.deliveries.CountDeliveriesByWebhookAndStatus(ctx, id, delivery.StatusSuccess)
	if err != nil {
		slog.Error("Failed to count deliveries", "webhookId", id, "error", err)
		WriteInternalError(w, "Failed to load stats")
		return
	}
	failed, err := h.deliveries.CountDeliveriesByWebhookAndStatus(ctx, id, delivery.StatusFailure)
	if err != nil {
		slog.Error("Failed to count deliveries", "webhookId", id, "error", err)
		WriteInternalError(w, "Failed to load stats")
		return
	}
	rate, err := h.deliveries.SuccessRate(ctx, id)
	if err != nil {
		slog.Error("Failed to compute success rate", "webhookId", id, "error", err)
		WriteInternalError(w, "Failed to load stats")
		return
	}

	WriteJSON(w, http.StatusOK, WebhookStatsResponse{
		Total:       total,
		Succeeded:   succeeded,
		Failed:      failed,
		SuccessRate: rate,
	})
}

// Test handles POST /api/v1/webhooks/{id}/test
// @Summary Fire a test event at a webhook
// @Tags Webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} dispatch.TestOutcome
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/webhooks/{id}/test [post]
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	outcome, err := h.engine.SendTest(r.Context(), id)
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			WriteNotFound(w, "Webhook not found")
			return
		}
		slog.Error("Failed to send test event", "webhookId", id, "error", err)
		WriteInternalError(w, "Failed to send test event")
		return
	}

	WriteJSON(w, http.StatusOK, outcome)
}

// pagination extracts page/pageSize query parameters as skip/limit
func pagination(r *http.Request) (skip, limit int64) {
	page := 1
	pageSize := defaultPageSize

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			pageSize = n
		}
	}

	return int64((page - 1) * pageSize), int64(pageSize)
}
