package tool

import (
	"context"

	"go.uber.org/zap"

	"taskchat/internal/llm"
)

// Dispatcher executes model-requested tool calls against the registry.
// Every failure mode becomes a structured error Result, never an error or
// a panic: the orchestrator always has something to feed back to the model,
// which can then recover conversationally.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch validates and executes a single tool call for the authenticated
// user. The model's arguments are untrusted: each tool parses them into its
// own typed parameter struct, and the user identity always comes from
// userID, never from the arguments.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, call llm.ToolCall) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked",
				zap.String("tool", call.Name),
				zap.Any("panic", r))
			result = Errorf("tool %s failed unexpectedly", call.Name)
		}
	}()

	t, err := d.registry.Get(call.Name)
	if err != nil {
		d.logger.Warn("unknown tool requested", zap.String("tool", call.Name))
		return Errorf("unknown tool: %s", call.Name)
	}

	res, err := t.Execute(ctx, userID, call.Arguments)
	if err != nil {
		d.logger.Warn("tool execution failed",
			zap.String("tool", call.Name),
			zap.Error(err))
		return Errorf("failed to execute %s: %v", call.Name, err)
	}

	d.logger.Debug("tool executed",
		zap.String("tool", call.Name),
		zap.String("status", res.Status))
	return res
}
