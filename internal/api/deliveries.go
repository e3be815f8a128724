package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go.quayer.tech/hooks/internal/delivery"
	"go.quayer.tech/hooks/internal/dispatch"
	"go.quayer.tech/hooks/internal/webhook"
)

// DeliveryHandler handles delivery record endpoints
type DeliveryHandler struct {
	deliveries delivery.Repository
	engine     *dispatch.Engine
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(deliveries delivery.Repository, engine *dispatch.Engine) *DeliveryHandler {
	return &DeliveryHandler{
		deliveries: deliveries,
		engine:     engine,
	}
}

// Routes returns the router for delivery endpoints
func (h *DeliveryHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListByStatus)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/retry", h.Retry)

	return r
}

// RetryResponse reports the settled outcome of a manual retry
type RetryResponse struct {
	Success bool `json:"success"`
}

// ListByStatus handles GET /api/v1/deliveries?status=failure
// @Summary List delivery records by status
// @Tags Deliveries
// @Produce json
// @Param status query string true "Delivery status (pending, success, failure)"
// @Success 200 {array} delivery.Delivery
// @Router /api/v1/deliveries [get]
func (h *DeliveryHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	status := delivery.Status(r.URL.Query().Get("status"))
	switch status {
	case delivery.StatusPending, delivery.StatusSuccess, delivery.StatusFailure:
	default:
		WriteBadRequest(w, "status must be one of pending, success, failure")
		return
	}

	skip, limit := pagination(r)
	records, err := h.deliveries.FindDeliveriesByStatus(r.Context(), status, skip, limit)
	if err != nil {
		slog.Error("Failed to list deliveries", "status", status, "error", err)
		WriteInternalError(w, "Failed to list deliveries")
		return
	}
	if records == nil {
		records = []*delivery.Delivery{}
	}

	WriteJSON(w, http.StatusOK, records)
}

// Get handles GET /api/v1/deliveries/{id}
// @Summary Get delivery record by ID
// @Tags Deliveries
// @Produce json
// @Param id path string true "Delivery ID"
// @Success 200 {object} delivery.Delivery
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/deliveries/{id} [get]
func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.deliveries.FindDeliveryByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, delivery.ErrNotFound) {
			WriteNotFound(w, "Delivery not found")
			return
		}
		slog.Error("Failed to get delivery", "id", id, "error", err)
		WriteInternalError(w, "Failed to get delivery")
		return
	}

	WriteJSON(w, http.StatusOK, record)
}

// Retry handles POST /api/v1/deliveries/{id}/retry
// @Summary Re-dispatch a previously recorded delivery
// @Tags Deliveries
// @Produce json
// @Param id path string true "Delivery ID"
// @Success 200 {object} RetryResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/deliveries/{id}/retry [post]
func (h *DeliveryHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	success, err := h.engine.Retry(r.Context(), id)
	if err != nil {
		if errors.Is(err, delivery.ErrNotFound) || errors.Is(err, webhook.ErrNotFound) {
			WriteNotFound(w, "Delivery not found")
			return
		}
		slog.Error("Failed to retry delivery", "id", id, "error", err)
		WriteInternalError(w, "Failed to retry delivery")
		return
	}

	WriteJSON(w, http.StatusOK, RetryResponse{Success: success})
}
