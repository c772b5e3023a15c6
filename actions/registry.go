package actions

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

// Request names an action and carries its parameters. GrantID scopes the
// action to one connected account when the integration needs it.
type Request struct {
	Action     string
	GrantID    string
	Parameters map[string]any
}

// Executor implements one action. Execute returns the normalized data
// payload; a returned error is captured into the action result by the
// runner, never propagated to the caller.
type Executor interface {
	Name() string
	Execute(ctx context.Context, req Request) (map[string]any, error)
}

// ExecutorFunc adapts a function to the Executor contract.
type ExecutorFunc struct {
	ActionName string
	Run        func(ctx context.Context, req Request) (map[string]any, error)
}

func (f ExecutorFunc) Name() string {
	return f.ActionName
}

func (f ExecutorFunc) Execute(ctx context.Context, req Request) (map[string]any, error) {
	if f.Run == nil {
		return nil, actionsInternal("actions: executor function is nil")
	}
	return f.Run(ctx, req)
}

// Registry is the explicit action dispatch table.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

func NewRegistry() *Registry {
	return &Registry{
		executors: map[string]Executor{},
	}
}

func (r *Registry) Register(executor Executor) error {
	if r == nil {
		return actionsInternal("actions: registry is nil")
	}
	if executor == nil {
		return actionsBadInput("actions: executor is nil")
	}
	name := normalizeActionName(executor.Name())
	if name == "" {
		return actionsBadInput("actions: action name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[name]; exists {
		return goerrors.New(
			fmt.Sprintf("actions: executor already registered for %q", name),
			goerrors.CategoryConflict,
		).WithCode(http.StatusConflict).WithTextCode(core.ServiceErrorConflict)
	}
	r.executors[name] = executor
	return nil
}

func (r *Registry) Resolve(name string) (Executor, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	executor, ok := r.executors[normalizeActionName(name)]
	return executor, ok
}

// Names lists registered actions; used by discovery endpoints and tests.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	return names
}

func normalizeActionName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func actionsBadInput(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorBadInput)
}

func actionsInternal(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ServiceErrorInternal)
}
