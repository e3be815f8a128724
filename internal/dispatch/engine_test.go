package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.quayer.tech/hooks/internal/config"
	"go.quayer.tech/hooks/internal/delivery"
	"go.quayer.tech/hooks/internal/webhook"
)

// fakeWebhookRepo is an in-memory webhook.Repository for engine tests
type fakeWebhookRepo struct {
	mu   sync.Mutex
	subs map[string]*webhook.Subscription
}

func newFakeWebhookRepo(subs ...*webhook.Subscription) *fakeWebhookRepo {
	r := &fakeWebhookRepo{subs: make(map[string]*webhook.Subscription)}
	for _, s := range subs {
		r.subs[s.ID] = s
	}
	return r
}

func (r *fakeWebhookRepo) FindWebhookByID(ctx context.Context, id string) (*webhook.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, webhook.ErrNotFound
	}
	return sub, nil
}

func (r *fakeWebhookRepo) FindWebhooksByTenant(ctx context.Context, tenantID string, skip, limit int64) ([]*webhook.Subscription, error) {
	return nil, errors.New("not used")
}

func (r *fakeWebhookRepo) FindActiveWebhooksByEvent(ctx context.Context, tenantID, event string) ([]*webhook.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*webhook.Subscription
	for _, sub := range r.subs {
		if sub.TenantID == tenantID && sub.Active && sub.MatchesEvent(event) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (r *fakeWebhookRepo) InsertWebhook(ctx context.Context, sub *webhook.Subscription) error {
	return errors.New("not used")
}

func (r *fakeWebhookRepo) UpdateWebhook(ctx context.Context, sub *webhook.Subscription) error {
	return errors.New("not used")
}

func (r *fakeWebhookRepo) UpdateWebhookActive(ctx context.Context, id string, active bool) error {
	return errors.New("not used")
}

func (r *fakeWebhookRepo) DeleteWebhook(ctx context.Context, id string) error {
	return errors.New("not used")
}

// fakeDeliveryRepo is an in-memory delivery.Repository for engine tests
type fakeDeliveryRepo struct {
	mu      sync.Mutex
	records map[string]*delivery.Delivery
	nextID  int
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{records: make(map[string]*delivery.Delivery)}
}

func (r *fakeDeliveryRepo) FindDeliveryByID(ctx context.Context, id string) (*delivery.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.records[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *fakeDeliveryRepo) FindDeliveriesByWebhook(ctx context.Context, webhookID string, skip, limit int64) ([]*delivery.Delivery, error) {
	return nil, errors.New("not used")
}

func (r *fakeDeliveryRepo) FindDeliveriesByStatus(ctx context.Context, status delivery.Status, skip, limit int64) ([]*delivery.Delivery, error) {
	return nil, errors.New("not used")
}

func (r *fakeDeliveryRepo) InsertDelivery(ctx context.Context, d *delivery.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == "" {
		r.nextID++
		d.ID = "dlv-" + string(rune('a'+r.nextID-1))
	}
	if d.Status == "" {
		d.Status = delivery.StatusPending
	}
	d.CreatedAt = time.Now()
	copied := *d
	r.records[d.ID] = &copied
	return nil
}

func (r *fakeDeliveryRepo) UpdateDeliveryResult(ctx context.Context, id string, result delivery.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.records[id]
	if !ok {
		return delivery.ErrNotFound
	}
	d.Status = result.Status
	d.Response = result.Response
	d.Attempts = result.Attempts
	if result.CompletedAt != nil {
		d.CompletedAt = result.CompletedAt
	}
	d.UpdatedAt = time.Now()
	return nil
}

func (r *fakeDeliveryRepo) CountDeliveriesByWebhook(ctx context.Context, webhookID string) (int64, error) {
	return 0, errors.New("not used")
}

func (r *fakeDeliveryRepo) CountDeliveriesByWebhookAndStatus(ctx context.Context, webhookID string, status delivery.Status) (int64, error) {
	return 0, errors.New("not used")
}

func (r *fakeDeliveryRepo) SuccessRate(ctx context.Context, webhookID string) (float64, error) {
	return 0, errors.New("not used")
}

func (r *fakeDeliveryRepo) all() []*delivery.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*delivery.Delivery
	for _, d := range r.records {
		copied := *d
		out = append(out, &copied)
	}
	return out
}

func (r *fakeDeliveryRepo) byWebhook(webhookID string) *delivery.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.records {
		if d.WebhookID == webhookID {
			copied := *d
			return &copied
		}
	}
	return nil
}

func newTestEngine(webhooks webhook.Repository, deliveries delivery.Repository) *Engine {
	d := NewDispatcher(config.DispatchConfig{
		DefaultTimeout:   5 * time.Second,
		UserAgent:        "Quayer-Hooks/1.0",
		MaxResponseBytes: 64 * 1024,
	})
	return NewEngine(webhooks, deliveries, d, config.EngineConfig{})
}

func activeSub(id, tenantID, url string, events ...string) *webhook.Subscription {
	return &webhook.Subscription{
		ID:       id,
		TenantID: tenantID,
		Name:     id,
		URL:      url,
		Events:   events,
		Active:   true,
	}
}

func TestEngine_TriggerRecordsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	webhooks := newFakeWebhookRepo(activeSub("wh-1", "t1", server.URL, "message.received"))
	deliveries := newFakeDeliveryRepo()
	engine := newTestEngine(webhooks, deliveries)

	engine.Trigger(context.Background(), "t1", "message.received", map[string]any{"body": "hi"})

	record := deliveries.byWebhook("wh-1")
	if record == nil {
		t.Fatal("expected a delivery record")
	}
	if record.Status != delivery.StatusSuccess {
		t.Errorf("expected success status, got %q", record.Status)
	}
	if record.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", record.Attempts)
	}
	if record.CompletedAt == nil {
		t.Error("expected completedAt to be set")
	}
	if record.Response == nil || record.Response.StatusCode != http.StatusOK || record.Response.Body != "ok" {
		t.Errorf("expected response snapshot, got %+v", record.Response)
	}
}

func TestEngine_TriggerIsolatesFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer bad.Close()

	webhooks := newFakeWebhookRepo(
		activeSub("wh-good", "t1", good.URL, "order.created"),
		activeSub("wh-bad", "t1", bad.URL, "order.created"),
	)
	deliveries := newFakeDeliveryRepo()
	engine := newTestEngine(webhooks, deliveries)

	engine.Trigger(context.Background(), "t1", "order.created", map[string]any{"id": "o1"})

	goodRecord := deliveries.byWebhook("wh-good")
	if goodRecord == nil || goodRecord.Status != delivery.StatusSuccess {
		t.Errorf("expected healthy subscriber to succeed, got %+v", goodRecord)
	}

	badRecord := deliveries.byWebhook("wh-bad")
	if badRecord == nil {
		t.Fatal("expected a record for the failing subscriber")
	}
	if badRecord.Status != delivery.StatusFailure {
		t.Errorf("expected failure status, got %q", badRecord.Status)
	}
	if badRecord.Response == nil || badRecord.Response.Error != "HTTP 500: boom" {
		t.Errorf("expected formatted error, got %+v", badRecord.Response)
	}
}

func TestEngine_TriggerSkipsFilteredEvents(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sub := activeSub("wh-1", "t1", server.URL, "message.received")
	sub.ExcludeMessages = true

	webhooks := newFakeWebhookRepo(sub)
	deliveries := newFakeDeliveryRepo()
	engine := newTestEngine(webhooks, deliveries)

	engine.Trigger(context.Background(), "t1", "message.received", map[string]any{"body": "hi"})

	if calls.Load() != 0 {
		t.Errorf("expected no HTTP call for filtered event, got %d", calls.Load())
	}
	// Filtering happens before record creation
	if got := len(deliveries.all()); got != 0 {
		t.Errorf("expected no delivery record for filtered event, got %d", got)
	}
}

func TestEngine_TriggerIgnoresInactiveWebhooks(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sub := activeSub("wh-1", "t1", server.URL, "message.received")
	sub.Active = false

	webhooks := newFakeWebhookRepo(sub)
	deliveries := newFakeDeliveryRepo()
	engine := newTestEngine(webhooks, deliveries)

	engine.Trigger(context.Background(), "t1", "message.received", map[string]any{"body": "hi"})

	if calls.Load() != 0 {
		t.Errorf("expected no dispatch for inactive webhook, got %d calls", calls.Load())
	}
	if got := len(deliveries.all()); got != 0 {
		t.Errorf("expected no delivery record for inactive webhook, got %d", got)
	}
}

func TestEngine_TriggerNoSubscribersIsNoop(t *testing.T) {
	webhooks := newFakeWebhookRepo()
	deliveries := newFakeDeliveryRepo()
	engine := newTestEngine(webhooks, deliveries)

	engine.Trigger(context.Background(), "t1", "order.created", map[string]any{"id": "o1"})

	if got := len(deliveries.all()); got != 0 {
		t.Errorf("expected no records without subscribers, got %d", got)
	}
}

func TestEngine_RetryNotFound(t *testing.T) {
	engine := newTestEngine(newFakeWebhookRepo(), newFakeDeliveryRepo())

	_, err := engine.Retry(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for unknown delivery")
	}
	if !errors.Is(err, delivery.ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestEngine_RetrySuccessShortCircuits(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhooks := newFakeWebhookRepo(activeSub("wh-1", "t1", server.URL, "message.received"))
	deliveries := newFakeDeliveryRepo()
	now := time.Now()
	record := &delivery.Delivery{
		ID:          "dlv-1",
		WebhookID:   "wh-1",
		Event:       "message.received",
		Payload:     map[string]any{"body": "hi"},
		Status:      delivery.StatusSuccess,
		Attempts:    1,
		CompletedAt: &now,
	}
	deliveries.InsertDelivery(context.Background(), record)
	deliveries.UpdateDeliveryResult(context.Background(), "dlv-1", delivery.Result{
		Status: delivery.StatusSuccess, Attempts: 1, CompletedAt: &now,
	})

	engine := newTestEngine(webhooks, deliveries)

	ok, err := engine.Retry(context.Background(), "dlv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected retry of successful delivery to report true")
	}
	if calls.Load() != 0 {
		t.Errorf("expected no re-dispatch of successful delivery, got %d calls", calls.Load())
	}

	after, _ := deliveries.FindDeliveryByID(context.Background(), "dlv-1")
	if after.Attempts != 1 {
		t.Errorf("expected attempts unchanged, got %d", after.Attempts)
	}
}

func TestEngine_RetryFailedDelivery(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	webhooks := newFakeWebhookRepo(activeSub("wh-1", "t1", server.URL, "message.received"))
	deliveries := newFakeDeliveryRepo()
	deliveries.InsertDelivery(context.Background(), &delivery.Delivery{
		ID:        "dlv-1",
		WebhookID: "wh-1",
		Event:     "message.received",
		Payload:   map[string]any{"body": "hi"},
	})
	deliveries.UpdateDeliveryResult(context.Background(), "dlv-1", delivery.Result{
		Status:   delivery.StatusFailure,
		Response: &delivery.Response{Error: "HTTP 500: boom"},
		Attempts: 1,
	})

	engine := newTestEngine(webhooks, deliveries)

	ok, err := engine.Retry(context.Background(), "dlv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected retried attempt to succeed")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one re-dispatch, got %d", calls.Load())
	}

	after, _ := deliveries.FindDeliveryByID(context.Background(), "dlv-1")
	if after.Status != delivery.StatusSuccess {
		t.Errorf("expected success status after retry, got %q", after.Status)
	}
	if after.Attempts != 2 {
		t.Errorf("expected attempts incremented to 2, got %d", after.Attempts)
	}
	if after.CompletedAt == nil {
		t.Error("expected completedAt set on successful retry")
	}
	if after.Response == nil || after.Response.Body != "recovered" {
		t.Errorf("expected fresh response snapshot, got %+v", after.Response)
	}
}

func TestEngine_RetryRepeatedFailureStaysRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("still down"))
	}))
	defer server.Close()

	webhooks := newFakeWebhookRepo(activeSub("wh-1", "t1", server.URL, "message.received"))
	deliveries := newFakeDeliveryRepo()
	deliveries.InsertDelivery(context.Background(), &delivery.Delivery{
		ID:        "dlv-1",
		WebhookID: "wh-1",
		Event:     "message.received",
		Payload:   map[string]any{"body": "hi"},
	})
	deliveries.UpdateDeliveryResult(context.Background(), "dlv-1", delivery.Result{
		Status:   delivery.StatusFailure,
		Response: &delivery.Response{Error: "HTTP 500: boom"},
		Attempts: 1,
	})

	engine := newTestEngine(webhooks, deliveries)

	ok, err := engine.Retry(context.Background(), "dlv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected retried attempt to fail")
	}

	after, _ := deliveries.FindDeliveryByID(context.Background(), "dlv-1")
	if after.Status != delivery.StatusFailure {
		t.Errorf("expected failure status, got %q", after.Status)
	}
	if after.Attempts != 2 {
		t.Errorf("expected attempts incremented to 2, got %d", after.Attempts)
	}
	if after.CompletedAt != nil {
		t.Error("expected completedAt unset while delivery remains retryable")
	}
	if after.Response == nil || after.Response.Error != "HTTP 503: still down" {
		t.Errorf("expected refreshed error snapshot, got %+v", after.Response)
	}
}

func TestEngine_RetryUsesLiveSubscriptionConfig(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sub := activeSub("wh-1", "t1", server.URL+"/{tenant}/hook", "message.received")
	sub.PathParams = map[string]string{"tenant": "acme"}
	sub.AddURLEvents = true

	webhooks := newFakeWebhookRepo(sub)
	deliveries := newFakeDeliveryRepo()
	deliveries.InsertDelivery(context.Background(), &delivery.Delivery{
		ID:        "dlv-1",
		WebhookID: "wh-1",
		Event:     "message.received",
		Payload:   map[string]any{"body": "hi"},
	})
	deliveries.UpdateDeliveryResult(context.Background(), "dlv-1", delivery.Result{
		Status:   delivery.StatusFailure,
		Response: &delivery.Response{Error: "connection refused"},
		Attempts: 1,
	})

	engine := newTestEngine(webhooks, deliveries)

	if _, err := engine.Retry(context.Background(), "dlv-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/acme/hook?event=message.received" {
		t.Errorf("expected URL rebuilt from live config, got %q", gotPath)
	}
}

func TestEngine_SendTest(t *testing.T) {
	var gotEvent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvent = r.Header.Get(EventHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// Test fires bypass filters even when the subscription excludes messages
	sub := activeSub("wh-1", "t1", server.URL, "message.received")
	sub.ExcludeMessages = true

	webhooks := newFakeWebhookRepo(sub)
	deliveries := newFakeDeliveryRepo()
	engine := newTestEngine(webhooks, deliveries)

	outcome, err := engine.SendTest(context.Background(), "wh-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success {
		t.Errorf("expected test fire to succeed, got %+v", outcome)
	}
	if gotEvent != TestEvent {
		t.Errorf("expected %q event header, got %q", TestEvent, gotEvent)
	}

	record, err := deliveries.FindDeliveryByID(context.Background(), outcome.DeliveryID)
	if err != nil {
		t.Fatalf("expected delivery record for test fire: %v", err)
	}
	if record.Status != delivery.StatusSuccess || record.Attempts != 1 {
		t.Errorf("expected recorded test delivery, got %+v", record)
	}
}
