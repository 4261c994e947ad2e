package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fortunewang/coolq-amq/contracts"
)

// ErrActionFailed is wrapped by ActionError
var ErrActionFailed = errors.New("messaging: bot action failed")

// ActionError reports a command whose bot action returned an error
type ActionError struct {
	API contracts.API
	Err error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrActionFailed, e.API, e.Err)
}

func (e *ActionError) Unwrap() []error {
	return []error{ErrActionFailed, e.Err}
}

// CommandDispatcher decodes a command envelope and invokes the matching action
type CommandDispatcher struct {
	actions Actions
	logger  *slog.Logger
}

// DispatcherOption configures the CommandDispatcher
type DispatcherOption func(*CommandDispatcher)

// WithDispatcherLogger sets the logger
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *CommandDispatcher) {
		d.logger = logger
	}
}

// NewCommandDispatcher creates a new command dispatcher
func NewCommandDispatcher(actions Actions, options ...DispatcherOption) *CommandDispatcher {
	d := &CommandDispatcher{
		actions: actions,
		logger:  slog.Default(),
	}

	for _, opt := range options {
		opt(d)
	}

	return d
}

// Dispatch runs the command in body and returns the reply body. Malformed
// commands fail with a *contracts.CommandError, failing actions with an
// *ActionError.
func (d *CommandDispatcher) Dispatch(ctx context.Context, body []byte) ([]byte, error) {
	cmd, err := contracts.DecodeCommand(body)
	if err != nil {
		return nil, err
	}

	if err := d.invoke(ctx, cmd); err != nil {
		return nil, &ActionError{API: cmd.API(), Err: err}
	}

	d.logger.Debug("command executed", "api", cmd.API())

	return json.Marshal(contracts.Response{OK: true})
}

func (d *CommandDispatcher) invoke(ctx context.Context, cmd contracts.Command) error {
	switch c := cmd.(type) {
	case contracts.SendPrivateMessage:
		return d.actions.SendPrivateMessage(ctx, c.To, c.Message)
	case contracts.SendGroupMessage:
		return d.actions.SendGroupMessage(ctx, c.Group, c.Message)
	case contracts.SendDiscussMessage:
		return d.actions.SendDiscussMessage(ctx, c.Discuss, c.Message)
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}
