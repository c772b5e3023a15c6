package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

// HandlerFunc processes one webhook delta. A returned error marks that delta
// failed without affecting the rest of the batch.
type HandlerFunc func(ctx context.Context, delta core.WebhookDelta) error

// BatchProcessor routes each delta of a webhook payload through an explicit
// dispatch table and aggregates per-delta outcomes without short-circuiting.
//
// Deltas that target the same resource are processed sequentially in delivery
// order; distinct resources run concurrently. Unknown event types are logged
// and counted as processed, since new event types may arrive before handler
// code is deployed.
type BatchProcessor struct {
	Logger  core.Logger
	Metrics core.MetricsRecorder
	Now     func() time.Time

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	families map[string]HandlerFunc
}

func NewBatchProcessor() *BatchProcessor {
	return &BatchProcessor{
		Metrics: core.NopMetricsRecorder(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
		handlers: map[string]HandlerFunc{},
		families: map[string]HandlerFunc{},
	}
}

// Register binds a handler to a full event type, e.g. "message.created".
func (p *BatchProcessor) Register(eventType string, handler HandlerFunc) error {
	return p.register(p.handlerTable, eventType, handler)
}

// RegisterFamily binds a fallback handler to a resource family, e.g.
// "calendar", used when no exact event-type handler matches.
func (p *BatchProcessor) RegisterFamily(family string, handler HandlerFunc) error {
	return p.register(p.familyTable, family, handler)
}

func (p *BatchProcessor) register(table func() map[string]HandlerFunc, key string, handler HandlerFunc) error {
	if p == nil {
		return processorInternal("webhooks: batch processor is nil")
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return processorBadInput("webhooks: dispatch key is required")
	}
	if handler == nil {
		return processorBadInput("webhooks: handler is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	target := table()
	if _, exists := target[key]; exists {
		return goerrors.New(
			fmt.Sprintf("webhooks: handler already registered for %q", key),
			goerrors.CategoryConflict,
		).WithCode(http.StatusConflict).WithTextCode(core.ServiceErrorConflict)
	}
	target[key] = handler
	return nil
}

func (p *BatchProcessor) handlerTable() map[string]HandlerFunc { return p.handlers }

func (p *BatchProcessor) familyTable() map[string]HandlerFunc { return p.families }

type deltaOutcome struct {
	delta core.WebhookDelta
	err   error
}

// Process consumes one webhook payload and returns the aggregated result.
// It returns an error only for pipeline-level failures (absent deltas);
// per-delta handler failures are reported inside the result.
func (p *BatchProcessor) Process(ctx context.Context, payload core.WebhookPayload) (core.ProcessingResult, error) {
	if p == nil {
		return core.ProcessingResult{}, processorInternal("webhooks: batch processor is nil")
	}
	if payload.Deltas == nil {
		return core.ProcessingResult{}, goerrors.New(
			"webhooks: webhook payload is missing deltas",
			goerrors.CategoryBadInput,
		).WithCode(http.StatusBadRequest).WithTextCode(core.ServiceErrorMalformedPayload)
	}

	started := p.now()
	groups := groupByResource(payload.Deltas)

	outcomes := make([][]deltaOutcome, len(groups))
	var wg sync.WaitGroup
	for i, group := range groups {
		wg.Add(1)
		go func(slot int, deltas []core.WebhookDelta) {
			defer wg.Done()
			results := make([]deltaOutcome, 0, len(deltas))
			for _, delta := range deltas {
				results = append(results, deltaOutcome{
					delta: delta,
					err:   p.invoke(ctx, delta),
				})
			}
			outcomes[slot] = results
		}(i, group)
	}
	wg.Wait()

	result := core.ProcessingResult{Errors: []core.DeltaError{}}
	for _, group := range outcomes {
		for _, outcome := range group {
			if outcome.err != nil {
				result.Failed++
				result.Errors = append(result.Errors, core.DeltaError{
					ID:      outcome.delta.ID,
					Type:    outcome.delta.Type,
					Message: outcome.err.Error(),
				})
				continue
			}
			result.Processed++
		}
	}
	result.Duration = p.now().Sub(started).Milliseconds()

	p.record(ctx, "webhooks.deltas.processed", int64(result.Processed))
	p.record(ctx, "webhooks.deltas.failed", int64(result.Failed))
	if result.Failed > 0 {
		p.logError(ctx, "webhook batch completed with failures",
			"processed", result.Processed,
			"failed", result.Failed,
		)
	}
	return result, nil
}

// invoke resolves and runs the handler for a single delta, converting panics
// into ordinary delta failures so one bad handler cannot take down the batch.
func (p *BatchProcessor) invoke(ctx context.Context, delta core.WebhookDelta) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("webhooks: handler panic: %v", recovered)
		}
	}()

	handler := p.resolve(delta)
	if handler == nil {
		p.logDebug(ctx, "no handler for webhook event type",
			"delta_id", delta.ID,
			"event_type", delta.Type,
		)
		return nil
	}
	return handler(ctx, delta)
}

func (p *BatchProcessor) resolve(delta core.WebhookDelta) HandlerFunc {
	eventType := strings.ToLower(strings.TrimSpace(delta.Type))
	p.mu.RLock()
	defer p.mu.RUnlock()
	if handler, ok := p.handlers[eventType]; ok {
		return handler
	}
	if family := strings.ToLower(delta.Family()); family != "" {
		if handler, ok := p.families[family]; ok {
			return handler
		}
	}
	return nil
}

// groupByResource partitions deltas into per-resource groups, preserving
// delivery order both across first-seen groups and inside each group. A
// create followed by a delete for the same resource id stays ordered.
func groupByResource(deltas []core.WebhookDelta) [][]core.WebhookDelta {
	order := make([]string, 0, len(deltas))
	grouped := map[string][]core.WebhookDelta{}
	for _, delta := range deltas {
		key := strings.ToLower(delta.Family()) + "::" + delta.ResourceID()
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], delta)
	}
	groups := make([][]core.WebhookDelta, 0, len(order))
	for _, key := range order {
		groups = append(groups, grouped[key])
	}
	return groups
}

func (p *BatchProcessor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *BatchProcessor) record(ctx context.Context, name string, value int64) {
	if p == nil || p.Metrics == nil {
		return
	}
	p.Metrics.IncrementCounter(ctx, name, value, map[string]string{"component": "batch_processor"})
}

func (p *BatchProcessor) logDebug(ctx context.Context, message string, args ...any) {
	if p == nil || p.Logger == nil {
		return
	}
	p.logger(ctx).Debug(message, args...)
}

func (p *BatchProcessor) logError(ctx context.Context, message string, args ...any) {
	if p == nil || p.Logger == nil {
		return
	}
	p.logger(ctx).Error(message, args...)
}

func (p *BatchProcessor) logger(ctx context.Context) core.Logger {
	logger := p.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	return logger
}

func processorBadInput(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorBadInput)
}

func processorInternal(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ServiceErrorInternal)
}
