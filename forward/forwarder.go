// Package forward relays normalized webhook events to the main application.
package forward

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
	"github.com/singularitybridge/sb-api-services-v2-sub008/webhooks"
)

const SignatureHeader = "X-Relay-Signature"

const defaultForwardTimeout = 30 * time.Second

// Forwarder posts forward envelopes to the main application, signing the
// outbound body with the same HMAC-SHA256 hex scheme the inbound verifier
// checks, so the receiving side verifies with the shared secret.
type Forwarder struct {
	Transport core.TransportAdapter
	URL       string
	Secret    string
	Timeout   time.Duration
	Logger    core.Logger
}

func NewForwarder(adapter core.TransportAdapter, url string, secret string) *Forwarder {
	return &Forwarder{
		Transport: adapter,
		URL:       strings.TrimSpace(url),
		Secret:    strings.TrimSpace(secret),
		Timeout:   defaultForwardTimeout,
	}
}

func (f *Forwarder) Forward(ctx context.Context, envelope core.ForwardEnvelope) error {
	if f == nil || f.Transport == nil {
		return forwardInternal("forward: transport adapter is required")
	}
	if strings.TrimSpace(f.URL) == "" {
		return forwardBadInput("forward: destination url is required")
	}
	if strings.TrimSpace(envelope.EventType) == "" {
		return forwardBadInput("forward: envelope event type is required")
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "forward: encode envelope").
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ServiceErrorInternal)
	}

	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if strings.TrimSpace(f.Secret) != "" {
		headers[SignatureHeader] = webhooks.Sign(f.Secret, body)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultForwardTimeout
	}
	res, err := f.Transport.Do(ctx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     f.URL,
		Headers: headers,
		Body:    body,
		Timeout: timeout,
		Metadata: map[string]any{
			"event_id":   envelope.EventID,
			"event_type": envelope.EventType,
		},
	})
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusMultipleChoices {
		f.logError(ctx, "event forward rejected",
			"event_id", envelope.EventID,
			"event_type", envelope.EventType,
			"status_code", res.StatusCode,
		)
		return goerrors.New(
			"forward: main application rejected event",
			goerrors.CategoryExternal,
		).WithCode(http.StatusBadGateway).
			WithTextCode(core.ServiceErrorOperationFailed).
			WithMetadata(map[string]any{
				"event_id":    envelope.EventID,
				"status_code": res.StatusCode,
			})
	}
	return nil
}

func (f *Forwarder) logError(ctx context.Context, message string, args ...any) {
	if f == nil || f.Logger == nil {
		return
	}
	logger := f.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Error(message, args...)
}

func forwardBadInput(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorBadInput)
}

func forwardInternal(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ServiceErrorInternal)
}

var _ core.EventForwarder = (*Forwarder)(nil)
