package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.quayer.tech/hooks/internal/config"
)

func testDispatcher() *Dispatcher {
	return NewDispatcher(config.DispatchConfig{
		DefaultTimeout:   5 * time.Second,
		UserAgent:        "Quayer-Hooks/1.0",
		MaxResponseBytes: 64 * 1024,
	})
}

func testPayload() Payload {
	return Payload{
		Event:     "message.received",
		Data:      map[string]any{"messageType": "text", "body": "hi"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		WebhookID: "wh-1",
	}
}

func TestDispatcher_Success(t *testing.T) {
	var gotBody []byte
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"received":true}`))
	}))
	defer server.Close()

	d := testDispatcher()
	payload := testPayload()
	result := d.Dispatch(context.Background(), server.URL, payload, "secret-1", 5*time.Second)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Err)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", result.StatusCode)
	}
	if result.Body != `{"received":true}` {
		t.Errorf("expected response body captured verbatim, got %q", result.Body)
	}
	if result.Err != "" {
		t.Errorf("expected no error on success, got %q", result.Err)
	}

	// Headers
	if ct := gotHeaders.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json content type, got %q", ct)
	}
	if ua := gotHeaders.Get("User-Agent"); ua != "Quayer-Hooks/1.0" {
		t.Errorf("expected user agent set, got %q", ua)
	}
	if evt := gotHeaders.Get(EventHeader); evt != "message.received" {
		t.Errorf("expected event header, got %q", evt)
	}
	if ts := gotHeaders.Get(TimestampHeader); ts == "" {
		t.Error("expected timestamp header to be set")
	}

	// Signature verifies over the exact body bytes received
	signature := gotHeaders.Get(SignatureHeader)
	if signature == "" {
		t.Fatal("expected signature header to be set")
	}
	if !NewSigner().Verify(gotBody, signature, "secret-1") {
		t.Error("expected signature to verify over received body")
	}

	// Body is the JSON payload
	var decoded Payload
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded.Event != payload.Event || decoded.WebhookID != payload.WebhookID {
		t.Errorf("expected payload round-trip, got %+v", decoded)
	}
}

func TestDispatcher_NoSignatureWithoutSecret(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := testDispatcher()
	result := d.Dispatch(context.Background(), server.URL, testPayload(), "", 5*time.Second)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Err)
	}
	if sig := gotHeaders.Get(SignatureHeader); sig != "" {
		t.Errorf("expected no signature header without secret, got %q", sig)
	}
}

func TestDispatcher_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream broken"))
	}))
	defer server.Close()

	d := testDispatcher()
	result := d.Dispatch(context.Background(), server.URL, testPayload(), "secret", 5*time.Second)

	if result.Success {
		t.Fatal("expected failure on non-2xx status")
	}
	if result.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", result.StatusCode)
	}
	if result.Err != "HTTP 502: upstream broken" {
		t.Errorf("expected formatted error, got %q", result.Err)
	}

	// Response snapshot is still attached for diagnostics
	snapshot := result.Snapshot()
	if snapshot == nil {
		t.Fatal("expected response snapshot on HTTP error")
	}
	if snapshot.StatusCode != http.StatusBadGateway || snapshot.Body != "upstream broken" {
		t.Errorf("expected snapshot to carry status and body, got %+v", snapshot)
	}
}

func TestDispatcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	d := testDispatcher()
	start := time.Now()
	result := d.Dispatch(context.Background(), server.URL, testPayload(), "", 100*time.Millisecond)

	if result.Success {
		t.Fatal("expected failure on timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected dispatch to respect the deadline, took %s", elapsed)
	}
	if !strings.Contains(result.Err, "timed out") {
		t.Errorf("expected timeout error, got %q", result.Err)
	}
	if result.StatusCode != 0 {
		t.Errorf("expected no status code on timeout, got %d", result.StatusCode)
	}
}

func TestDispatcher_ConnectionFailure(t *testing.T) {
	// Grab a port that nothing listens on
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	d := testDispatcher()
	result := d.Dispatch(context.Background(), url, testPayload(), "", time.Second)

	if result.Success {
		t.Fatal("expected failure on connection refused")
	}
	if result.Err == "" {
		t.Error("expected error message on connection failure")
	}
	if result.StatusCode != 0 {
		t.Errorf("expected no status code without a response, got %d", result.StatusCode)
	}

	snapshot := result.Snapshot()
	if snapshot == nil || snapshot.StatusCode != 0 || snapshot.Body != "" {
		t.Errorf("expected error-only snapshot, got %+v", snapshot)
	}
}

func TestDispatcher_ResponseBodyCapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer server.Close()

	d := NewDispatcher(config.DispatchConfig{
		DefaultTimeout:   5 * time.Second,
		UserAgent:        "Quayer-Hooks/1.0",
		MaxResponseBytes: 16,
	})

	result := d.Dispatch(context.Background(), server.URL, testPayload(), "", 5*time.Second)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Err)
	}
	if len(result.Body) != 16 {
		t.Errorf("expected body capped at 16 bytes, got %d", len(result.Body))
	}
}
