package core

import (
	"strings"
	"time"
)

// WebhookDeltaData carries the provider resource representation for a single
// event. Object is passed through to handlers unmodified.
type WebhookDeltaData struct {
	Object        map[string]any `json:"object"`
	GrantID       string         `json:"grant_id,omitempty"`
	ApplicationID string         `json:"application_id,omitempty"`
}

// WebhookDelta is one event notification inside a webhook payload.
type WebhookDelta struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	SpecVersion string           `json:"specversion,omitempty"`
	Source      string           `json:"source,omitempty"`
	Time        string           `json:"time,omitempty"`
	Data        WebhookDeltaData `json:"data"`
}

// Family returns the resource family of the event type, the segment before
// the first dot. Empty when the type carries no dot separator.
func (d WebhookDelta) Family() string {
	eventType := strings.TrimSpace(d.Type)
	if idx := strings.Index(eventType, "."); idx > 0 {
		return eventType[:idx]
	}
	return ""
}

// ResourceID returns the provider id of the resource the delta refers to,
// falling back to the delta id when the object carries none. Used to keep
// same-resource deltas ordered within a batch.
func (d WebhookDelta) ResourceID() string {
	if d.Data.Object != nil {
		if value, ok := d.Data.Object["id"].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(d.ID)
}

// WebhookPayload is the envelope received from the provider. Deltas preserve
// delivery order.
type WebhookPayload struct {
	Deltas []WebhookDelta `json:"deltas"`
}

// DeltaError reports one failed delta inside an otherwise accepted batch.
type DeltaError struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ProcessingResult aggregates the outcome of one batch run.
// Processed + Failed always equals the number of deltas in the payload.
type ProcessingResult struct {
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Errors    []DeltaError `json:"errors"`
	Duration  int64        `json:"duration"`
}

// CacheEntry is the unit written through the event cache store.
type CacheEntry struct {
	GrantID      string
	ResourceType string
	ResourceID   string
	Fields       map[string]any
	ExpiresAt    time.Time
}

// ForwardEnvelope is the normalized event shape delivered to the main
// application.
type ForwardEnvelope struct {
	EventID      string         `json:"event_id"`
	EventType    string         `json:"event_type"`
	GrantID      string         `json:"grant_id,omitempty"`
	Object       map[string]any `json:"object"`
	ObservedAt   time.Time      `json:"observed_at"`
	ReceivedFrom string         `json:"received_from,omitempty"`
}

// ActionResult is the uniform outcome contract for the action execution
// layer. Executor failures are reported in-band through Error, never thrown
// past the runner.
type ActionResult struct {
	Success  bool           `json:"success"`
	Action   string         `json:"action"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration int64          `json:"duration"`
}
