// Package gocommand bridges the action execution layer onto a go-command
// registry and dispatcher, for callers that already run a command bus.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	"github.com/singularitybridge/sb-api-services-v2-sub008/actions"
	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered commands into a go-job queue registry
// so action messages can also be executed off a durable queue.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

// BindActionRunner registers the action execution command on the registry
// and subscribes it on the global dispatcher, so ExecuteActionMessage values
// dispatched anywhere in the process reach the runner.
func BindActionRunner(
	adapter *RegistryAdapter,
	actionRunner *actions.Runner,
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if actionRunner == nil {
		return nil, fmt.Errorf("gocommand: action runner is required")
	}
	cmd := actions.NewExecuteActionCommand(actionRunner)
	subscription := SubscribeCommand[actions.ExecuteActionMessage](cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// ExecuteAction dispatches an action request over the command bus and
// collects the normalized result. The dispatch path never surfaces executor
// errors; a dispatch error here means the bus itself failed.
func ExecuteAction(ctx context.Context, req actions.Request) (core.ActionResult, error) {
	collector := command.NewResult[core.ActionResult]()
	ctx = command.ContextWithResult(ctx, collector)
	if err := Dispatch(ctx, actions.ExecuteActionMessage{Request: req}); err != nil {
		return core.ActionResult{}, err
	}
	result, ok := collector.Load()
	if !ok {
		return core.ActionResult{}, fmt.Errorf("gocommand: action dispatch produced no result for %q", strings.TrimSpace(req.Action))
	}
	return result, nil
}
