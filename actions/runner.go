package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

// Runner executes actions from a registry and normalizes every outcome into
// a core.ActionResult. It never returns an error to the caller: unknown
// actions, executor failures, and panics all land in the result's Error
// field so callers hold one contract for every integration.
type Runner struct {
	Registry *Registry
	Logger   core.Logger
	Metrics  core.MetricsRecorder
	Now      func() time.Time
}

func NewRunner(registry *Registry) *Runner {
	return &Runner{
		Registry: registry,
		Metrics:  core.NopMetricsRecorder(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (r *Runner) Execute(ctx context.Context, req Request) core.ActionResult {
	started := r.now()
	name := normalizeActionName(req.Action)

	result := core.ActionResult{Action: name}
	finish := func() core.ActionResult {
		result.Duration = r.now().Sub(started).Milliseconds()
		status := "success"
		if !result.Success {
			status = "failure"
			r.logError(ctx, "action execution failed",
				"action", name,
				"error", result.Error,
			)
		}
		r.record(ctx, name, status)
		return result
	}

	if r == nil || r.Registry == nil {
		result.Error = "actions: runner is not configured"
		return finish()
	}
	if name == "" {
		result.Error = "actions: action name is required"
		return finish()
	}

	executor, ok := r.Registry.Resolve(name)
	if !ok {
		result.Error = fmt.Sprintf("actions: no executor registered for %q", name)
		return finish()
	}

	data, err := r.invoke(ctx, executor, req)
	if err != nil {
		result.Error = strings.TrimSpace(err.Error())
		return finish()
	}
	result.Success = true
	result.Data = data
	return finish()
}

func (r *Runner) invoke(ctx context.Context, executor Executor, req Request) (data map[string]any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			data = nil
			err = fmt.Errorf("actions: executor panic: %v", recovered)
		}
	}()
	return executor.Execute(ctx, req)
}

func (r *Runner) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) record(ctx context.Context, action string, status string) {
	if r == nil || r.Metrics == nil {
		return
	}
	r.Metrics.IncrementCounter(ctx, "actions.executions.total", 1, map[string]string{
		"action": action,
		"status": status,
	})
}

func (r *Runner) logError(ctx context.Context, message string, args ...any) {
	if r == nil || r.Logger == nil {
		return
	}
	logger := r.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Error(message, args...)
}
