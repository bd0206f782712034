package commands

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/morezero/components/pkg/apperr"
)

// CodeExecFailed is the error code of a command whose action panicked.
const CodeExecFailed = "EXEC_FAILED"

// Action executes a command with its parameters.
type Action func(ctx context.Context, params Parameters) (any, error)

// Command is a named action with an optional parameter schema.
type Command struct {
	name   string
	schema Schema
	action Action
}

// NewCommand creates a command. schema may be nil.
func NewCommand(name string, schema Schema, action Action) *Command {
	return &Command{name: name, schema: schema, action: action}
}

// Name returns the command name.
func (c *Command) Name() string {
	return c.name
}

// Schema returns the parameter schema, possibly nil.
func (c *Command) Schema() Schema {
	return c.schema
}

// Execute validates params and runs the action. Errors returned by the action are
// passed through unchanged; a panic becomes an invocation error.
func (c *Command) Execute(ctx context.Context, params Parameters) (result any, err error) {
	if params == nil {
		params = Parameters{}
	}
	if c.schema != nil {
		if err := c.schema.Validate(params); err != nil {
			return nil, err
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = apperr.NewInvocationError("", CodeExecFailed, fmt.Sprintf("Execution of %s failed", c.name)).
				WithDetails("command", c.name).
				WithCause(fmt.Errorf("panic: %v", rec)).
				WithStack(string(debug.Stack()))
		}
	}()
	return c.action(ctx, params)
}
