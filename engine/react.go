package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/panics"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
	"github.com/hupe1980/agentkit/tool"
	"github.com/hupe1980/agentkit/tracing"
)

// runReact alternates model turns and tool calls until the model answers
// without requesting tools or MaxIterations turns have been spent.
func runReact(ctx context.Context, e *Engine, x *Execution) (*core.Result, error) {
	maxIter := x.Config.MaxIterations
	if maxIter <= 0 {
		maxIter = core.DefaultMaxIterations
	}

	var defs []model.ToolDefinition
	if x.Tools != nil && x.Tools.Len() > 0 {
		defs = x.Tools.Definitions()
	}

	contents := BuildContents(x.Config, x.Args)
	for iter := 1; iter <= maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := e.callModel(ctx, x, model.Request{Contents: contents, Tools: defs})
		if err != nil {
			return nil, err
		}
		msg := resp.Content
		if msg.Role == "" {
			msg.Role = core.RoleAssistant
		}
		contents = append(contents, msg)

		calls := msg.FunctionCalls()
		if len(calls) == 0 {
			e.logger.Debug("engine.react.final", "agent", x.Config.Name, "iterations", iter)
			return e.finishReact(ctx, x, contents, msg.Text())
		}

		// One tool call in flight at a time.
		for _, call := range calls {
			contents = append(contents, e.executeTool(ctx, x, call))
		}
	}

	e.logger.Warn("engine.react.max_iterations", "agent", x.Config.Name, "max_iterations", maxIter)
	return nil, &core.MaxIterationsError{Agent: x.Config.Name, Iterations: maxIter, Contents: contents}
}

// finishReact returns the final answer. With an output schema the answer is
// used directly when it already validates; otherwise one structured call
// reformats it.
func (e *Engine) finishReact(ctx context.Context, x *Execution, contents []core.Content, text string) (*core.Result, error) {
	if len(x.OutputSchema) == 0 {
		return &core.Result{Text: text}, nil
	}
	if v, err := model.DecodeStructured(text, x.OutputSchema); err == nil {
		return &core.Result{Text: text, Structured: v}, nil
	}

	contents = append(contents, core.NewTextContent(core.RoleUser, "Return your final answer as JSON matching the requested schema."))
	resp, err := e.callModel(ctx, x, model.Request{Contents: contents, ResponseFormat: responseFormat(x.OutputSchema)})
	if err != nil {
		return nil, err
	}
	return finish(x, resp.Content.Text())
}

// executeTool runs one requested call. Every failure becomes the tool
// result so the model can react to it.
func (e *Engine) executeTool(ctx context.Context, x *Execution, call core.FunctionCall) core.Content {
	toolCtx, runID := e.collector.StartRun(ctx, tracing.KindTool, call.Name, map[string]any{"arguments": call.Arguments})

	out, err := e.callTool(toolCtx, x, call)
	e.collector.EndRun(toolCtx, runID, out, err)

	if cbErr := e.callbacks.Execute(ctx, &CallbackContext{Type: CallbackAfterTool, Agent: x.Config.Name, ToolCall: &call, ToolResult: out, Err: err}); cbErr != nil {
		e.logger.Warn("engine.callback.failed", "agent", x.Config.Name, "error", cbErr.Error())
	}

	resp := core.FunctionResponse{ID: call.ID, Name: call.Name}
	if err != nil {
		e.logger.Warn("engine.tool.failed", "agent", x.Config.Name, "tool", call.Name, "error", err.Error())
		resp.Error = err.Error()
	} else {
		resp.Response = out
	}
	return core.Content{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: resp}}}
}

func (e *Engine) callTool(ctx context.Context, x *Execution, call core.FunctionCall) (any, error) {
	var t tool.Tool
	if x.Tools != nil {
		t, _ = x.Tools.Lookup(call.Name)
	}
	if t == nil {
		return nil, tool.NewToolError(call.Name, "tool is not available to this agent", tool.CodeValidation)
	}

	args, err := tool.ParseArguments(call.Arguments)
	if err != nil {
		return nil, err
	}

	if err := e.callbacks.Execute(ctx, &CallbackContext{Type: CallbackBeforeTool, Agent: x.Config.Name, ToolCall: &call}); err != nil {
		return nil, err
	}

	var (
		out     any
		catcher panics.Catcher
	)
	catcher.Try(func() { out, err = t.Call(ctx, args) })
	if r := catcher.Recovered(); r != nil {
		e.logger.Error("engine.tool.panic", "agent", x.Config.Name, "tool", call.Name, "panic", fmt.Sprint(r.Value))
		return nil, &tool.ToolError{Tool: call.Name, Message: fmt.Sprintf("tool panicked: %v", r.Value), Code: tool.CodePanic, Details: r.Stack}
	}
	if err != nil {
		var te *tool.ToolError
		if !errors.As(err, &te) {
			err = tool.NewToolError(call.Name, err.Error(), tool.CodeExecution)
		}
		return nil, err
	}
	return out, nil
}
