package webhook

import (
	"time"
)

// Subscription represents a tenant-registered webhook endpoint.
// Collection: webhooks
type Subscription struct {
	ID                  string            `bson:"_id" json:"id"`
	TenantID            string            `bson:"tenantId" json:"tenantId"`
	Name                string            `bson:"name" json:"name"`
	URL                 string            `bson:"url" json:"url"` // Endpoint template, may contain {placeholder} segments
	Events              []string          `bson:"events" json:"events"`
	Secret              string            `bson:"secret,omitempty" json:"secret,omitempty"`
	Active              bool              `bson:"active" json:"active"`
	ExcludeMessages     bool              `bson:"excludeMessages" json:"excludeMessages"`
	AddURLEvents        bool              `bson:"addUrlEvents" json:"addUrlEvents"`
	AddURLTypesMessages []string          `bson:"addUrlTypesMessages,omitempty" json:"addUrlTypesMessages,omitempty"`
	PathParams          map[string]string `bson:"pathParams,omitempty" json:"pathParams,omitempty"`
	TimeoutMillis       int               `bson:"timeoutMillis,omitempty" json:"timeoutMillis,omitempty"`
	CreatedAt           time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// Default values for Subscription
const (
	DefaultTimeoutMillis = 30000
)

// MatchesEvent checks if the subscription is interested in an event name.
func (s *Subscription) MatchesEvent(event string) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Timeout returns the per-endpoint request timeout with the default applied.
func (s *Subscription) Timeout() time.Duration {
	millis := s.TimeoutMillis
	if millis <= 0 {
		millis = DefaultTimeoutMillis
	}
	return time.Duration(millis) * time.Millisecond
}
