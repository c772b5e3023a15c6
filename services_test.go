package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
	"github.com/singularitybridge/sb-api-services-v2-sub008/security"
	"github.com/singularitybridge/sb-api-services-v2-sub008/webhooks"
)

const receiverSecret = "receiver-test-secret"

func newTestReceiver(t *testing.T, opts ...Option) *Receiver {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Webhook.Secret = receiverSecret
	receiver, err := NewReceiver(cfg, opts...)
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	return receiver
}

func postSigned(t *testing.T, receiver *Receiver, secret string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(body))
	req.Header.Set(receiver.Config.Webhook.SignatureHeader, webhooks.Sign(secret, []byte(body)))
	rec := httptest.NewRecorder()
	receiver.Server.Router().ServeHTTP(rec, req)
	return rec
}

func TestReceiverEndToEndCachesMessage(t *testing.T) {
	receiver := newTestReceiver(t)

	body := `{"deltas":[{"id":"d1","type":"message.created","data":{"grant_id":"g1","object":{"id":"m1","subject":"hello"}}}]}`
	rec := postSigned(t, receiver, receiverSecret, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	entry, err := receiver.Cache.Get(context.Background(), "g1", "message", "m1")
	if err != nil {
		t.Fatalf("expected cached entry: %v", err)
	}
	if entry.Fields["subject"] != "hello" {
		t.Fatalf("unexpected cached fields %v", entry.Fields)
	}
}

func TestReceiverRejectsWrongSecret(t *testing.T) {
	receiver := newTestReceiver(t)

	rec := postSigned(t, receiver, "wrong-secret", `{"deltas":[]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestReceiverWithSigningKeysAcceptsRotatedSecret(t *testing.T) {
	ring, err := security.NewKeyring(
		security.SigningKey{KeyID: "current", Secret: "rotated-secret"},
		security.SigningKey{KeyID: "previous", Secret: receiverSecret},
	)
	if err != nil {
		t.Fatalf("build keyring: %v", err)
	}
	receiver := newTestReceiver(t, WithSigningKeys(ring))

	if rec := postSigned(t, receiver, "rotated-secret", `{"deltas":[]}`); rec.Code != http.StatusOK {
		t.Fatalf("current key: expected 200, got %d", rec.Code)
	}
	if rec := postSigned(t, receiver, receiverSecret, `{"deltas":[]}`); rec.Code != http.StatusOK {
		t.Fatalf("previous key: expected 200, got %d", rec.Code)
	}
	if rec := postSigned(t, receiver, "never-a-key", `{"deltas":[]}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown key: expected 401, got %d", rec.Code)
	}
}

func TestReceiverUsesProvidedEventCache(t *testing.T) {
	store := webhooks.NewInMemoryEventCacheStore()
	receiver := newTestReceiver(t, WithEventCache(store))

	if receiver.Cache != core.EventCacheStore(store) {
		t.Fatalf("expected injected cache store to be wired")
	}

	body := `{"deltas":[{"id":"d1","type":"contact.updated","data":{"grant_id":"g1","object":{"id":"c1"}}}]}`
	if rec := postSigned(t, receiver, receiverSecret, body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one cached entry, got %d", store.Len())
	}
}

func TestReceiverForwarderOnlyWiredWhenConfigured(t *testing.T) {
	receiver := newTestReceiver(t)
	if receiver.Forwarder != nil {
		t.Fatalf("expected no forwarder without a forward url")
	}

	cfg := DefaultConfig()
	cfg.Webhook.Secret = receiverSecret
	cfg.Forward.URL = "https://app.example.com/events"
	cfg.Forward.Secret = "relay-secret"
	withForward, err := NewReceiver(cfg)
	if err != nil {
		t.Fatalf("new receiver: %v", err)
	}
	if withForward.Forwarder == nil {
		t.Fatalf("expected default forwarder when forward url is configured")
	}
}

func TestReceiverRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = " "
	if _, err := NewReceiver(cfg); err == nil {
		t.Fatalf("expected invalid config to be rejected")
	}
}
