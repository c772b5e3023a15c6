package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
	"github.com/singularitybridge/sb-api-services-v2-sub008/providers/nylas"
)

type challengeResponse struct {
	Challenge string `json:"challenge"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type webhookResponse struct {
	Success   bool              `json:"success"`
	Processed int               `json:"processed"`
	Failed    int               `json:"failed"`
	Errors    []core.DeltaError `json:"errors"`
	Duration  int64             `json:"duration"`
	Timestamp string            `json:"timestamp"`
}

// handleChallenge echoes the provider's verification challenge.
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get(nylas.ChallengeParam)
	if strings.TrimSpace(challenge) == "" {
		s.respondError(w, http.StatusBadRequest, "Missing challenge parameter")
		return
	}
	s.respondJSON(w, http.StatusOK, challengeResponse{Challenge: challenge})
}

// handleWebhook is the ingestion pipeline: raw body first, then signature,
// then decode, then batch processing.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limited := io.LimitReader(r.Body, s.maxBodyBytes()+1)
	rawBody, err := io.ReadAll(limited)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to read request body")
		return
	}
	if int64(len(rawBody)) > s.maxBodyBytes() {
		s.respondError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	signature := r.Header.Get(s.signatureHeader())
	if err := s.verify(ctx, rawBody, signature); err != nil {
		s.logWarn(ctx, "webhook signature rejected", "path", r.URL.Path)
		s.metrics().IncrementCounter(ctx, "httpapi.webhooks.rejected", 1, map[string]string{"reason": "signature"})
		s.respondError(w, http.StatusUnauthorized, "Invalid webhook signature")
		return
	}

	payload, err := nylas.ParsePayload(rawBody)
	if err != nil {
		s.metrics().IncrementCounter(ctx, "httpapi.webhooks.rejected", 1, map[string]string{"reason": "payload"})
		s.respondError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	s.processAndRespond(w, r, payload)
}

// handleTestWebhook processes a synthetic single-delta payload, bypassing
// signature verification. Not routed in production.
func (s *Server) handleTestWebhook(w http.ResponseWriter, r *http.Request) {
	var requested struct {
		Type    string `json:"type"`
		GrantID string `json:"grant_id"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(io.LimitReader(r.Body, s.maxBodyBytes())).Decode(&requested)
	}
	eventType := strings.TrimSpace(requested.Type)
	if eventType == "" {
		eventType = "message.created"
	}
	grantID := strings.TrimSpace(requested.GrantID)
	if grantID == "" {
		grantID = "test-grant"
	}

	resourceID := "test-" + uuid.NewString()
	payload := core.WebhookPayload{
		Deltas: []core.WebhookDelta{
			{
				ID:   resourceID,
				Type: eventType,
				Time: s.now().Format(time.RFC3339Nano),
				Data: core.WebhookDeltaData{
					GrantID: grantID,
					Object: map[string]any{
						"id":      resourceID,
						"subject": "synthetic test event",
					},
				},
			},
		},
	}

	s.processAndRespond(w, r, payload)
}

func (s *Server) processAndRespond(w http.ResponseWriter, r *http.Request, payload core.WebhookPayload) {
	ctx := r.Context()

	result, err := s.Processor.Process(ctx, payload)
	if err != nil {
		richErr := core.MapServiceError(err)
		if richErr != nil && richErr.Category == goerrors.CategoryBadInput {
			s.respondError(w, http.StatusBadRequest, "Invalid webhook payload")
			return
		}
		s.logError(ctx, "webhook pipeline failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Webhook processing failed")
		return
	}

	errors := result.Errors
	if errors == nil {
		errors = []core.DeltaError{}
	}
	s.respondJSON(w, http.StatusOK, webhookResponse{
		Success:   true,
		Processed: result.Processed,
		Failed:    result.Failed,
		Errors:    errors,
		Duration:  result.Duration,
		Timestamp: s.now().Format(time.RFC3339Nano),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Success: false, Error: message})
}
