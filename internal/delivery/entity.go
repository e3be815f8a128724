package delivery

import (
	"time"
)

// Status defines the lifecycle state of a delivery
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Response captures what the subscriber endpoint answered, or the transport
// error when no HTTP response arrived at all.
type Response struct {
	StatusCode int    `bson:"statusCode,omitempty" json:"statusCode,omitempty"`
	Body       string `bson:"body,omitempty" json:"body,omitempty"`
	Error      string `bson:"error,omitempty" json:"error,omitempty"`
}

// Delivery is the bookkeeping record for one webhook dispatch.
// Collection: webhook_deliveries
type Delivery struct {
	ID          string         `bson:"_id" json:"id"`
	WebhookID   string         `bson:"webhookId" json:"webhookId"`
	Event       string         `bson:"event" json:"event"`
	Payload     map[string]any `bson:"payload" json:"payload"` // Event data snapshot, kept for retry and audit
	Status      Status         `bson:"status" json:"status"`
	Response    *Response      `bson:"response,omitempty" json:"response,omitempty"`
	Attempts    int            `bson:"attempts" json:"attempts"`
	CompletedAt *time.Time     `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedAt   time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// IsPending returns true while no dispatch attempt has resolved yet
func (d *Delivery) IsPending() bool {
	return d.Status == StatusPending
}

// IsSuccess returns true once a dispatch attempt got a 2xx answer
func (d *Delivery) IsSuccess() bool {
	return d.Status == StatusSuccess
}

// IsFailure returns true when the latest attempt failed
func (d *Delivery) IsFailure() bool {
	return d.Status == StatusFailure
}

// IsTerminal returns true once at least one attempt has resolved
func (d *Delivery) IsTerminal() bool {
	return d.Status == StatusSuccess || d.Status == StatusFailure
}
