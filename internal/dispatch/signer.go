package dispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const (
	// SignatureHeader is the HTTP header name for the webhook signature
	SignatureHeader = "X-Webhook-Signature"

	// TimestampHeader is the HTTP header name for the dispatch timestamp
	TimestampHeader = "X-Webhook-Timestamp"

	// EventHeader is the HTTP header carrying the event name
	EventHeader = "X-Webhook-Event"
)

// Signer generates HMAC-SHA256 signatures for outbound webhook requests.
//
// The signature is computed over the exact JSON body bytes sent on the wire,
// keyed with the subscription secret and hex-encoded. Receivers recompute it
// from the raw request body to authenticate the sender, so the body must not
// be re-serialized between signing and sending.
type Signer struct{}

// NewSigner creates a new webhook signer
func NewSigner() *Signer {
	return &Signer{}
}

// Sign computes the hex-encoded HMAC-SHA256 of body using secret as key
func (s *Signer) Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature against the body in constant time
func (s *Signer) Verify(body []byte, signature, secret string) bool {
	expected := s.Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
