// Package nylas holds the provider glue for Nylas-delivered webhooks and the
// thin vendor-API actions the integrations layer exposes.
package nylas

import (
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
	"github.com/singularitybridge/sb-api-services-v2-sub008/webhooks"
)

const ProviderID = "nylas"

const (
	HeaderSignature = "X-Nylas-Signature"

	// ChallengeParam is the query parameter Nylas sends on the one-time
	// subscription verification request.
	ChallengeParam = "challenge"
)

// NewWebhookVerifier builds the signature verifier for Nylas deliveries:
// HMAC-SHA256 over the raw body, hex digest, keyed by the shared webhook
// secret.
func NewWebhookVerifier(secret string) webhooks.SignatureVerifier {
	return webhooks.NewSignatureVerifier(secret, HeaderSignature)
}

// ParsePayload decodes a raw webhook body into the delta envelope. The raw
// bytes must be the exact wire bytes; signature verification happens before
// this and against the same slice.
func ParsePayload(raw []byte) (core.WebhookPayload, error) {
	if len(raw) == 0 {
		return core.WebhookPayload{}, malformedPayload("providers/nylas: webhook payload is empty", nil)
	}
	var payload core.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return core.WebhookPayload{}, malformedPayload("providers/nylas: decode webhook payload", err)
	}
	if payload.Deltas == nil {
		return core.WebhookPayload{}, malformedPayload("providers/nylas: webhook payload is missing deltas", nil)
	}
	for i := range payload.Deltas {
		payload.Deltas[i].ID = strings.TrimSpace(payload.Deltas[i].ID)
		payload.Deltas[i].Type = strings.TrimSpace(payload.Deltas[i].Type)
	}
	return payload, nil
}

func malformedPayload(message string, source error) error {
	if source == nil {
		return goerrors.New(message, goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ServiceErrorMalformedPayload)
	}
	return goerrors.Wrap(source, goerrors.CategoryBadInput, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorMalformedPayload)
}
