package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go.quayer.tech/hooks/internal/common/metrics"
	"go.quayer.tech/hooks/internal/config"
	"go.quayer.tech/hooks/internal/delivery"
	"go.quayer.tech/hooks/internal/webhook"
)

// TestEvent is the synthetic event name used by operator-initiated test fires
const TestEvent = "webhook.test"

// TestOutcome reports the settled result of a test fire back to the caller
type TestOutcome struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
	DeliveryID string `json:"deliveryId"`
}

// Engine fans domain events out to subscriber endpoints and keeps the
// per-dispatch bookkeeping in the delivery store.
type Engine struct {
	webhooks   webhook.Repository
	deliveries delivery.Repository
	dispatcher *Dispatcher
	limiter    *rate.Limiter
	sem        chan struct{}
}

// NewEngine creates a fan-out engine
func NewEngine(webhooks webhook.Repository, deliveries delivery.Repository, dispatcher *Dispatcher, cfg config.EngineConfig) *Engine {
	e := &Engine{
		webhooks:   webhooks,
		deliveries: deliveries,
		dispatcher: dispatcher,
	}
	if cfg.RateLimitPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60.0), cfg.RateLimitPerMinute)
	}
	if cfg.MaxParallelDispatches > 0 {
		e.sem = make(chan struct{}, cfg.MaxParallelDispatches)
	}
	return e
}

// Trigger fans an event out to every active subscription of the tenant whose
// event set contains the event name. Pipelines run concurrently and settle
// independently; one subscriber's failure never reaches its siblings or the
// caller. The delivery store is the only record of per-subscriber outcomes.
func (e *Engine) Trigger(ctx context.Context, tenantID, event string, data map[string]any) {
	subs, err := e.webhooks.FindActiveWebhooksByEvent(ctx, tenantID, event)
	if err != nil {
		slog.Error("Failed to load webhooks for event",
			"tenantId", tenantID,
			"event", event,
			"error", err)
		return
	}

	if len(subs) == 0 {
		slog.Debug("No webhooks subscribed to event",
			"tenantId", tenantID,
			"event", event)
		return
	}

	metrics.EngineFanOutSize.Observe(float64(len(subs)))
	slog.Info("Fanning out event",
		"tenantId", tenantID,
		"event", event,
		"webhooks", len(subs))

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *webhook.Subscription) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Delivery pipeline panicked",
						"webhookId", sub.ID,
						"event", event,
						"panic", r)
				}
			}()
			e.deliver(ctx, sub, event, data)
		}(sub)
	}
	wg.Wait()
}

// deliver runs one subscription's pipeline: filter, build URL, record,
// dispatch, settle. Steps run in strict sequence.
func (e *Engine) deliver(ctx context.Context, sub *webhook.Subscription, event string, data map[string]any) {
	if webhook.ShouldExclude(event, data, sub.ExcludeMessages, sub.AddURLTypesMessages) {
		metrics.EngineFilteredEvents.WithLabelValues(event).Inc()
		slog.Debug("Event filtered for webhook",
			"webhookId", sub.ID,
			"event", event)
		return
	}

	url := webhook.BuildURL(sub.URL, event, data, sub.PathParams, sub.AddURLEvents, sub.AddURLTypesMessages)

	record := &delivery.Delivery{
		WebhookID: sub.ID,
		Event:     event,
		Payload:   data,
		Status:    delivery.StatusPending,
	}
	if err := e.deliveries.InsertDelivery(ctx, record); err != nil {
		slog.Error("Failed to create delivery record",
			"webhookId", sub.ID,
			"event", event,
			"error", err)
		return
	}

	result := e.throttledDispatch(ctx, sub, url, event, data)

	now := time.Now()
	update := delivery.Result{
		Status:      statusFor(result),
		Response:    result.Snapshot(),
		Attempts:    1,
		CompletedAt: &now,
	}
	if err := e.deliveries.UpdateDeliveryResult(ctx, record.ID, update); err != nil {
		slog.Error("Failed to update delivery record",
			"deliveryId", record.ID,
			"webhookId", sub.ID,
			"error", err)
	}

	e.observeOutcome(sub.ID, record.ID, event, result)
}

// Retry re-dispatches a previously recorded delivery using the live
// subscription configuration. It returns true when the retried attempt
// succeeded. Unlike Trigger, lookup failures surface to the caller.
func (e *Engine) Retry(ctx context.Context, deliveryID string) (bool, error) {
	record, err := e.deliveries.FindDeliveryByID(ctx, deliveryID)
	if err != nil {
		return false, fmt.Errorf("loading delivery %s: %w", deliveryID, err)
	}

	sub, err := e.webhooks.FindWebhookByID(ctx, record.WebhookID)
	if err != nil {
		return false, fmt.Errorf("loading webhook %s: %w", record.WebhookID, err)
	}

	// A delivery that already succeeded is never re-sent
	if record.IsSuccess() {
		metrics.EngineRetries.WithLabelValues("noop").Inc()
		return true, nil
	}

	url := webhook.BuildURL(sub.URL, record.Event, record.Payload, sub.PathParams, sub.AddURLEvents, sub.AddURLTypesMessages)
	result := e.throttledDispatch(ctx, sub, url, record.Event, record.Payload)

	update := delivery.Result{
		Status:   statusFor(result),
		Response: result.Snapshot(),
		Attempts: record.Attempts + 1,
	}
	if result.Success {
		now := time.Now()
		update.CompletedAt = &now
	}
	if err := e.deliveries.UpdateDeliveryResult(ctx, record.ID, update); err != nil {
		return result.Success, fmt.Errorf("updating delivery %s: %w", record.ID, err)
	}

	if result.Success {
		metrics.EngineRetries.WithLabelValues("success").Inc()
	} else {
		metrics.EngineRetries.WithLabelValues("failure").Inc()
	}
	slog.Info("Delivery retried",
		"deliveryId", record.ID,
		"webhookId", sub.ID,
		"event", record.Event,
		"attempts", record.Attempts+1,
		"success", result.Success)

	return result.Success, nil
}

// SendTest fires a synthetic event at a single webhook, bypassing filters,
// and records the attempt like any other delivery.
func (e *Engine) SendTest(ctx context.Context, webhookID string) (*TestOutcome, error) {
	sub, err := e.webhooks.FindWebhookByID(ctx, webhookID)
	if err != nil {
		return nil, fmt.Errorf("loading webhook %s: %w", webhookID, err)
	}

	data := map[string]any{
		"test":        true,
		"webhookName": sub.Name,
		"triggeredAt": time.Now().UTC().Format(time.RFC3339),
	}

	url := webhook.BuildURL(sub.URL, TestEvent, data, sub.PathParams, sub.AddURLEvents, sub.AddURLTypesMessages)

	record := &delivery.Delivery{
		WebhookID: sub.ID,
		Event:     TestEvent,
		Payload:   data,
		Status:    delivery.StatusPending,
	}
	if err := e.deliveries.InsertDelivery(ctx, record); err != nil {
		return nil, fmt.Errorf("creating delivery record: %w", err)
	}

	result := e.throttledDispatch(ctx, sub, url, TestEvent, data)

	now := time.Now()
	update := delivery.Result{
		Status:      statusFor(result),
		Response:    result.Snapshot(),
		Attempts:    1,
		CompletedAt: &now,
	}
	if err := e.deliveries.UpdateDeliveryResult(ctx, record.ID, update); err != nil {
		slog.Error("Failed to update delivery record",
			"deliveryId", record.ID,
			"webhookId", sub.ID,
			"error", err)
	}

	e.observeOutcome(sub.ID, record.ID, TestEvent, result)

	return &TestOutcome{
		Success:    result.Success,
		StatusCode: result.StatusCode,
		Error:      result.Err,
		DeliveryID: record.ID,
	}, nil
}

// throttledDispatch applies the engine-wide rate limit and parallelism cap,
// then performs the dispatch.
func (e *Engine) throttledDispatch(ctx context.Context, sub *webhook.Subscription, url, event string, data map[string]any) Result {
	if e.sem != nil {
		select {
		case e.sem <- struct{}{}:
			defer func() { <-e.sem }()
		case <-ctx.Done():
			return Result{Err: ctx.Err().Error()}
		}
	}

	if e.limiter != nil && !e.limiter.Allow() {
		metrics.EngineRateLimitWaits.Inc()
		if err := e.limiter.Wait(ctx); err != nil {
			return Result{Err: err.Error()}
		}
	}

	payload := Payload{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		WebhookID: sub.ID,
	}
	return e.dispatcher.Dispatch(ctx, url, payload, sub.Secret, sub.Timeout())
}

func (e *Engine) observeOutcome(webhookID, deliveryID, event string, result Result) {
	if result.Success {
		metrics.EngineDeliveries.WithLabelValues(event, "success").Inc()
		slog.Info("Webhook delivered",
			"webhookId", webhookID,
			"deliveryId", deliveryID,
			"event", event,
			"statusCode", result.StatusCode)
		return
	}
	metrics.EngineDeliveries.WithLabelValues(event, "failure").Inc()
	slog.Warn("Webhook delivery failed",
		"webhookId", webhookID,
		"deliveryId", deliveryID,
		"event", event,
		"statusCode", result.StatusCode,
		"error", result.Err)
}

func statusFor(result Result) delivery.Status {
	if result.Success {
		return delivery.StatusSuccess
	}
	return delivery.StatusFailure
}
