package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/logging"
	"github.com/hupe1980/agentkit/model"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Callbacks hook into the execution pipeline without modifying the
// strategies. Before callbacks that return an error abort the step they
// guard; after callbacks observe the outcome and their errors are logged.
type CallbackType string

const (
	// CallbackBeforeModel runs before every model call, inside the gate.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel runs after every model call.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackBeforeTool runs before a REACT tool call. An error is reported
	// back to the model as the tool result.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool runs after a REACT tool call.
	CallbackAfterTool CallbackType = "after_tool"

	// CallbackOnError runs when an execution fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries what a callback may inspect. Fields not relevant
// to the callback type are zero.
type CallbackContext struct {
	Type    CallbackType
	Agent   string
	ModelID string

	Request  *model.Request
	Response *model.Response

	ToolCall   *core.FunctionCall
	ToolResult any

	Err error
}

// Callback is an execution lifecycle hook.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback adapts a function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback creates a callback of callbackType backed by fn.
func NewFunctionCallback(callbackType CallbackType, fn func(ctx context.Context, cbCtx *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager holds callbacks by type. Safe for concurrent use; map_reduce
// mappers run callbacks concurrently.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// Register adds callbacks; they run in registration order.
func (m *CallbackManager) Register(callbacks ...Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cb := range callbacks {
		m.callbacks[cb.Type()] = append(m.callbacks[cb.Type()], cb)
	}
}

// Execute runs the callbacks registered for cbCtx.Type and stops at the
// first error. A nil manager is a no-op.
func (m *CallbackManager) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	callbacks := append([]Callback(nil), m.callbacks[cbCtx.Type]...)
	m.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb.Execute(ctx, cbCtx); err != nil {
			return err
		}
	}
	return nil
}

// LoggingCallback logs every event of its type at debug level.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a LoggingCallback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logger: logging.OrNoOp(logger)}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, cbCtx *CallbackContext) error {
	args := []any{"agent", cbCtx.Agent}
	if cbCtx.ModelID != "" {
		args = append(args, "model", cbCtx.ModelID)
	}
	if cbCtx.ToolCall != nil {
		args = append(args, "tool", cbCtx.ToolCall.Name)
	}
	if cbCtx.Err != nil {
		args = append(args, "error", cbCtx.Err.Error())
	}
	c.logger.Debug("engine.callback."+string(c.callbackType), args...)
	return nil
}
