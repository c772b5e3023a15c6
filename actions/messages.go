package actions

import (
	"context"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
)

const TypeExecuteAction = "services.action.execute"

// ExecuteActionMessage carries an action request across a go-command bus.
type ExecuteActionMessage struct {
	Request Request
}

func (ExecuteActionMessage) Type() string { return TypeExecuteAction }

func (m ExecuteActionMessage) Validate() error {
	if strings.TrimSpace(m.Request.Action) == "" {
		return fmt.Errorf("actions: action name is required")
	}
	return nil
}

// ExecuteActionCommand bridges the runner onto a go-command dispatcher. The
// normalized result is stored on the dispatch context for the caller to
// collect.
type ExecuteActionCommand struct {
	runner *Runner
}

func NewExecuteActionCommand(runner *Runner) *ExecuteActionCommand {
	return &ExecuteActionCommand{runner: runner}
}

func (c *ExecuteActionCommand) Execute(ctx context.Context, msg ExecuteActionMessage) error {
	if c == nil || c.runner == nil {
		return actionsInternal("actions: execute command requires a runner")
	}
	storeResult(ctx, c.runner.Execute(ctx, msg.Request))
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
