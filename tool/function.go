package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sourcegraph/conc/panics"

	"github.com/hupe1980/agentkit/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// Responsibilities:
//   - Holds the JSON schema of the accepted arguments
//   - Validates model supplied arguments against that schema before execution
//   - Recovers panics raised by the wrapped function
//   - Normalizes error handling so callers receive *ToolError with consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     PANIC             -> underlying function panicked
//     (custom codes preserved if the function returns *ToolError directly)
//
// A FunctionTool has no mutable state after construction besides the lazily
// compiled schema and is safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	if parameters == nil {
		parameters = util.ObjectSchema(nil)
	}
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewTypedTool derives the parameter schema from T and decodes the model's
// arguments into a T before calling fn.
//
//	type SumArgs struct {
//	  A float64 `json:"a" jsonschema:"description=First addend"`
//	  B float64 `json:"b" jsonschema:"description=Second addend"`
//	}
//
//	sumTool := NewTypedTool("calculate_sum", "Calculate the sum of two numbers",
//	  func(ctx context.Context, in SumArgs) (any, error) { return in.A + in.B, nil })
func NewTypedTool[T any](
	name, description string,
	fn func(ctx context.Context, in T) (any, error),
) *FunctionTool {
	var zero T
	return NewFunctionTool(name, description, util.SchemaFor(zero), func(ctx context.Context, args map[string]any) (any, error) {
		var in T
		if err := decodeArgs(args, &in); err != nil {
			return nil, NewToolError(name, err.Error(), CodeValidation)
		}
		return fn(ctx, in)
	})
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates the provided args against the declared schema then invokes the
// underlying function.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (result any, err error) {
	t.compileOnce.Do(func() {
		t.compiled, t.compileErr = util.CompileSchema(t.parameters)
	})
	if t.compileErr != nil {
		return nil, &ToolError{Tool: t.name, Message: t.compileErr.Error(), Code: CodeSchema}
	}
	if args == nil {
		args = map[string]any{}
	}
	if verr := util.Validate(t.compiled, args); verr != nil {
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", verr),
			Code:    CodeValidation,
			Details: verr,
		}
	}

	var catcher panics.Catcher
	catcher.Try(func() { result, err = t.fn(ctx, args) })
	if r := catcher.Recovered(); r != nil {
		return nil, &ToolError{Tool: t.name, Message: fmt.Sprint(r.Value), Code: CodePanic, Details: r.Stack}
	}
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}
	return result, nil
}
