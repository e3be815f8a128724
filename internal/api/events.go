package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"go.quayer.tech/hooks/internal/dispatch"
)

// EventHandler accepts domain events and hands them to the fan-out engine
type EventHandler struct {
	engine         *dispatch.Engine
	triggerTimeout time.Duration
}

// NewEventHandler creates a new event handler
func NewEventHandler(engine *dispatch.Engine, triggerTimeout time.Duration) *EventHandler {
	return &EventHandler{
		engine:         engine,
		triggerTimeout: triggerTimeout,
	}
}

// Routes returns the router for event ingress
func (h *EventHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Trigger)

	return r
}

// TriggerEventRequest represents a domain event to fan out
type TriggerEventRequest struct {
	TenantID string         `json:"tenantId"`
	Event    string         `json:"event"`
	Data     map[string]any `json:"data"`
}

// TriggerEventResponse acknowledges an accepted event
type TriggerEventResponse struct {
	Accepted bool `json:"accepted"`
}

// Trigger handles POST /api/v1/events
// @Summary Fan a domain event out to subscribed webhooks
// @Description Accepts the event and dispatches in the background. Per-webhook
// @Description outcomes are recorded as delivery records, never returned here.
// @Tags Events
// @Accept json
// @Produce json
// @Param request body TriggerEventRequest true "Event to fan out"
// @Success 202 {object} TriggerEventResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/events [post]
func (h *EventHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.TenantID == "" || req.Event == "" {
		WriteBadRequest(w, "tenantId and event are required")
		return
	}

	// The caller is acknowledged immediately. The fan-out runs on its own
	// context so a closed client connection cannot cancel deliveries.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.triggerTimeout)
		defer cancel()
		h.engine.Trigger(ctx, req.TenantID, req.Event, req.Data)
	}()

	slog.Debug("Event accepted", "tenantId", req.TenantID, "event", req.Event)
	WriteJSON(w, http.StatusAccepted, TriggerEventResponse{Accepted: true})
}
