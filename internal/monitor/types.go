package monitor

import (
	"time"

	"github.com/securedocflow/securedoc-proxy/internal/privacy"
)

// EventType identifies the kind of monitoring event
type EventType string

const (
	EventTypeRequestLog   EventType = "request_log"
	EventTypePHIDetection EventType = "phi_detection"
	EventTypeWebhook      EventType = "webhook_outcome"
)

// Event is the envelope broadcast to connected monitoring clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data"`
}

// RequestLogEvent summarizes one handled HTTP request
type RequestLogEvent struct {
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration_ms"`
}

// PHIDetectionEvent carries only counts and category names, never the
// matched text or the placeholders.
type PHIDetectionEvent struct {
	Summary privacy.Summary `json:"summary"`
}

// WebhookEvent reports the outcome of one webhook notification
type WebhookEvent struct {
	EventType string `json:"event_type"`
	Duplicate bool   `json:"duplicate"`
	Accepted  bool   `json:"accepted"`
}
