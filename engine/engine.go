package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/logging"
	"github.com/hupe1980/agentkit/model"
	"github.com/hupe1980/agentkit/tool"
	"github.com/hupe1980/agentkit/tracing"
)

// AgentRunner invokes another agent by name. Workflows use it to reach
// their splitter, mappers and reducer.
type AgentRunner interface {
	RunAgent(ctx context.Context, name string, args map[string]any, outputSchema map[string]any) (*core.Result, error)
}

// Execution is everything one strategy run needs.
type Execution struct {
	Config  core.AgentConfig
	Model   model.Model
	ModelID string
	// Tools may be nil when the agent has none.
	Tools *tool.BoundSet
	Args  map[string]any
	// OutputSchema requests a structured result when non-empty.
	OutputSchema map[string]any
	// Runner is required for WORKFLOW agents.
	Runner AgentRunner
}

// Options configures an Engine.
type Options struct {
	// Gate bounds model calls. Nil admits everything.
	Gate *Gate
	// Collector records MODEL and TOOL runs. Defaults to a disabled collector.
	Collector *tracing.Collector
	Callbacks *CallbackManager
	Logger    logging.Logger
}

type strategy func(ctx context.Context, e *Engine, x *Execution) (*core.Result, error)

// Engine runs the execution strategies. It holds no per-invocation state and
// is safe for concurrent use.
type Engine struct {
	gate       *Gate
	collector  *tracing.Collector
	callbacks  *CallbackManager
	logger     logging.Logger
	strategies map[core.AgentType]strategy
}

// New creates an Engine.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Collector == nil {
		opts.Collector = tracing.NewCollector(func(o *tracing.Options) { o.Enabled = false })
	}
	return &Engine{
		gate:      opts.Gate,
		collector: opts.Collector,
		callbacks: opts.Callbacks,
		logger:    logging.OrNoOp(opts.Logger),
		strategies: map[core.AgentType]strategy{
			core.AgentTypeOneShot:  runOneShot,
			core.AgentTypeReact:    runReact,
			core.AgentTypeWorkflow: runWorkflow,
		},
	}
}

// Run executes x with the strategy selected by x.Config.AgentType.
func (e *Engine) Run(ctx context.Context, x *Execution) (*core.Result, error) {
	agentType := x.Config.AgentType
	if agentType == "" {
		agentType = core.AgentTypeOneShot
	}
	run, ok := e.strategies[agentType]
	if !ok {
		return nil, core.NewAgentError("execute", x.Config.Name, core.ErrInvalidConfig, fmt.Sprintf("unknown agent_type %q", agentType))
	}
	if x.Model == nil && agentType != core.AgentTypeWorkflow {
		return nil, core.NewAgentError("execute", x.Config.Name, core.ErrInvalidConfig, "no model")
	}

	if agentType == core.AgentTypeWorkflow && InScope(ctx) && IsSyncEntry(ctx) {
		return nil, core.NewAgentError("execute", x.Config.Name, core.ErrNestedExecution, "use the asynchronous entry point from inside a running execution")
	}
	ctx = withScope(ctx)

	start := time.Now()
	e.logger.Debug("engine.run.start", "agent", x.Config.Name, "agent_type", agentType, "model", x.ModelID)

	res, err := run(ctx, e, x)
	if err != nil {
		if cbErr := e.callbacks.Execute(ctx, &CallbackContext{Type: CallbackOnError, Agent: x.Config.Name, ModelID: x.ModelID, Err: err}); cbErr != nil {
			e.logger.Warn("engine.callback.failed", "agent", x.Config.Name, "error", cbErr.Error())
		}
		e.logger.Debug("engine.run.failed", "agent", x.Config.Name, "duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
		return nil, err
	}

	e.logger.Debug("engine.run.done", "agent", x.Config.Name, "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// callModel performs one gated, traced model call.
func (e *Engine) callModel(ctx context.Context, x *Execution, req model.Request) (model.Response, error) {
	ctx, runID := e.collector.StartRun(ctx, tracing.KindModel, "LLM: "+x.ModelID, map[string]any{
		"model":    x.ModelID,
		"messages": len(req.Contents),
		"tools":    len(req.Tools),
	})

	resp, err := e.generate(ctx, x, req)
	if err != nil {
		e.collector.EndRun(ctx, runID, nil, err)
		return model.Response{}, err
	}

	outputs := map[string]any{"text": resp.Content.Text()}
	if calls := resp.Content.FunctionCalls(); len(calls) > 0 {
		names := make([]string, len(calls))
		for i, c := range calls {
			names[i] = c.Name
		}
		outputs["tool_calls"] = names
	}
	if resp.Usage != nil {
		outputs["total_tokens"] = resp.Usage.TotalTokens
	}
	e.collector.EndRun(ctx, runID, outputs, nil)
	return resp, nil
}

func (e *Engine) generate(ctx context.Context, x *Execution, req model.Request) (model.Response, error) {
	if err := e.gate.Acquire(ctx); err != nil {
		return model.Response{}, err
	}
	defer e.gate.Release()

	if err := e.callbacks.Execute(ctx, &CallbackContext{Type: CallbackBeforeModel, Agent: x.Config.Name, ModelID: x.ModelID, Request: &req}); err != nil {
		return model.Response{}, err
	}

	start := time.Now()
	resp, err := model.GenerateOnce(ctx, x.Model, req)
	e.logger.Debug("engine.model.call", "agent", x.Config.Name, "model", x.ModelID, "duration_ms", time.Since(start).Milliseconds(), "ok", err == nil)

	if cbErr := e.callbacks.Execute(ctx, &CallbackContext{Type: CallbackAfterModel, Agent: x.Config.Name, ModelID: x.ModelID, Request: &req, Response: &resp, Err: err}); cbErr != nil {
		e.logger.Warn("engine.callback.failed", "agent", x.Config.Name, "error", cbErr.Error())
	}
	return resp, err
}

func responseFormat(schema map[string]any) *model.ResponseFormat {
	if len(schema) == 0 {
		return nil
	}
	return &model.ResponseFormat{Name: "output", Schema: schema}
}
