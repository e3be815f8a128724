package dispatch

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSigner_Sign(t *testing.T) {
	signer := NewSigner()

	body := []byte(`{"event":"message.received","data":{"id":"123"}}`)
	secret := "my-secret-key"

	signature := signer.Sign(body, secret)

	if signature == "" {
		t.Fatal("expected signature to be set")
	}
	if len(signature) != 64 { // SHA256 produces 32 bytes = 64 hex chars
		t.Errorf("expected 64-char hex signature, got %d chars", len(signature))
	}
	if strings.ToLower(signature) != signature {
		t.Error("expected signature to be lowercase hex")
	}

	// Same body and secret always produce the same signature
	if again := signer.Sign(body, secret); again != signature {
		t.Errorf("expected deterministic signature, got %q then %q", signature, again)
	}

	// A different secret produces a different signature
	if other := signer.Sign(body, "other-secret"); other == signature {
		t.Error("expected different secrets to produce different signatures")
	}
}

func TestSigner_SignMatchesMarshaledPayload(t *testing.T) {
	signer := NewSigner()
	secret := "s3cret"

	payload := Payload{
		Event:     "message.received",
		Data:      map[string]any{"messageType": "text"},
		Timestamp: "2025-01-02T03:04:05Z",
		WebhookID: "wh-1",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// A receiver recomputing over the exact body bytes must get a match
	signature := signer.Sign(body, secret)
	if !signer.Verify(body, signature, secret) {
		t.Error("expected signature over marshaled payload to verify")
	}
}

func TestSigner_Verify(t *testing.T) {
	signer := NewSigner()

	body := []byte(`{"event":"test"}`)
	secret := "my-secret-key"
	signature := signer.Sign(body, secret)

	if !signer.Verify(body, signature, secret) {
		t.Error("expected valid signature to verify")
	}
	if signer.Verify(body, signature, "wrong-secret") {
		t.Error("expected verification to fail with wrong secret")
	}
	if signer.Verify([]byte("tampered"), signature, secret) {
		t.Error("expected verification to fail with tampered body")
	}
	if signer.Verify(body, "deadbeef", secret) {
		t.Error("expected verification to fail with bogus signature")
	}
}
