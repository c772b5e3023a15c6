package webhooks

import (
	"context"
	"strings"
	"time"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

const (
	ResourceTypeCalendar = "calendar"
	ResourceTypeEvent    = "event"
	ResourceTypeMessage  = "message"
	ResourceTypeContact  = "contact"
	ResourceTypeGrant    = "grant"
)

// CacheHandlers translates webhook deltas into cache writes on the external
// event store and, when a forwarder is configured, relays the normalized
// event to the main application.
type CacheHandlers struct {
	Store     core.EventCacheStore
	Forwarder core.EventForwarder
	TTL       time.Duration
	Now       func() time.Time
}

func NewCacheHandlers(store core.EventCacheStore, ttl time.Duration) *CacheHandlers {
	return &CacheHandlers{
		Store: store,
		TTL:   ttl,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// RegisterAll binds every handler family this module knows about. Message and
// email events share one handler since providers emit both spellings for the
// same resource.
func (h *CacheHandlers) RegisterAll(processor *BatchProcessor) error {
	if h == nil || processor == nil {
		return processorInternal("webhooks: cache handlers and processor are required")
	}
	bindings := map[string]HandlerFunc{
		ResourceTypeCalendar: h.resourceHandler(ResourceTypeCalendar),
		ResourceTypeEvent:    h.resourceHandler(ResourceTypeEvent),
		ResourceTypeMessage:  h.resourceHandler(ResourceTypeMessage),
		"email":              h.resourceHandler(ResourceTypeMessage),
		ResourceTypeContact:  h.resourceHandler(ResourceTypeContact),
		ResourceTypeGrant:    h.HandleGrant,
	}
	for family, handler := range bindings {
		if err := processor.RegisterFamily(family, handler); err != nil {
			return err
		}
	}
	return nil
}

// resourceHandler builds the upsert/delete translation for one resource
// family. Deleted events remove the cache entry; everything else upserts the
// provider object as the entry fields.
func (h *CacheHandlers) resourceHandler(resourceType string) HandlerFunc {
	return func(ctx context.Context, delta core.WebhookDelta) error {
		if h == nil || h.Store == nil {
			return processorInternal("webhooks: event cache store is required")
		}
		grantID := strings.TrimSpace(delta.Data.GrantID)
		resourceID := delta.ResourceID()

		if eventAction(delta.Type) == "deleted" {
			if err := h.Store.Delete(ctx, grantID, resourceType, resourceID); err != nil {
				return err
			}
			return h.forward(ctx, delta)
		}

		entry := core.CacheEntry{
			GrantID:      grantID,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			Fields:       delta.Data.Object,
			ExpiresAt:    h.now().Add(h.ttl()),
		}
		if err := h.Store.Upsert(ctx, entry); err != nil {
			return err
		}
		return h.forward(ctx, delta)
	}
}

// HandleGrant relays grant lifecycle events upstream without touching the
// cache; grant state lives in the main application, not the event cache.
func (h *CacheHandlers) HandleGrant(ctx context.Context, delta core.WebhookDelta) error {
	if h == nil {
		return processorInternal("webhooks: cache handlers are required")
	}
	return h.forward(ctx, delta)
}

func (h *CacheHandlers) forward(ctx context.Context, delta core.WebhookDelta) error {
	if h.Forwarder == nil {
		return nil
	}
	observedAt := h.now()
	if parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(delta.Time)); err == nil {
		observedAt = parsed.UTC()
	}
	return h.Forwarder.Forward(ctx, core.ForwardEnvelope{
		EventID:      strings.TrimSpace(delta.ID),
		EventType:    strings.TrimSpace(delta.Type),
		GrantID:      strings.TrimSpace(delta.Data.GrantID),
		Object:       delta.Data.Object,
		ObservedAt:   observedAt,
		ReceivedFrom: strings.TrimSpace(delta.Source),
	})
}

func (h *CacheHandlers) now() time.Time {
	if h != nil && h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *CacheHandlers) ttl() time.Duration {
	if h != nil && h.TTL > 0 {
		return h.TTL
	}
	return 24 * time.Hour
}

func eventAction(eventType string) string {
	eventType = strings.ToLower(strings.TrimSpace(eventType))
	if idx := strings.Index(eventType, "."); idx >= 0 && idx+1 < len(eventType) {
		return eventType[idx+1:]
	}
	return ""
}
