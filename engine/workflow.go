package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/internal/util"
	"github.com/hupe1980/agentkit/model"
)

// Task is one subtask produced by a map_reduce splitter. WorkerType selects
// a typed mapper by exact match; Arguments become the mapper's input.
type Task struct {
	WorkerType string         `json:"worker_type,omitempty" jsonschema:"description=Selects the mapper agent for this subtask"`
	Arguments  map[string]any `json:"arguments" jsonschema:"description=Input arguments for the mapper agent"`
}

// SplitOutput is the structured answer requested from the splitter.
type SplitOutput struct {
	Tasks []Task `json:"tasks" jsonschema:"description=Ordered subtasks"`
}

// SplitSchema is the output schema sent to splitter agents.
var SplitSchema = util.SchemaFor(&SplitOutput{})

// MapResult associates a mapper output with its subtask.
type MapResult struct {
	Index  int
	Task   Task
	Mapper string
	Result *core.Result
}

// ResultSeparator joins mapper outputs before they reach the reducer.
const ResultSeparator = "\n\n"

type workflowFunc func(ctx context.Context, e *Engine, x *Execution, wf *core.WorkflowConfig) (*core.Result, error)

var workflows = map[string]workflowFunc{
	core.WorkflowMapReduce: runMapReduce,
}

func runWorkflow(ctx context.Context, e *Engine, x *Execution) (*core.Result, error) {
	wf := x.Config.Workflow
	if wf == nil || wf.Type == "" {
		return nil, core.NewAgentError("workflow", x.Config.Name, core.ErrWorkflowConfig, "workflow_config.type is required")
	}
	run, ok := workflows[wf.Type]
	if !ok {
		return nil, core.NewAgentError("workflow", x.Config.Name, core.ErrUnknownWorkflowType, wf.Type)
	}
	if x.Runner == nil {
		return nil, core.NewAgentError("workflow", x.Config.Name, core.ErrWorkflowConfig, "no agent runner configured")
	}
	return run(ctx, e, x, wf)
}

// runMapReduce splits the task, maps every subtask concurrently and reduces
// the collected outputs. The first mapper failure cancels the siblings and
// fails the run.
func runMapReduce(ctx context.Context, e *Engine, x *Execution, wf *core.WorkflowConfig) (*core.Result, error) {
	name := x.Config.Name
	if wf.Splitter == "" || wf.Reducer == "" || (wf.Mapper == "" && len(wf.Mappers) == 0) {
		return nil, core.NewAgentError("workflow", name, core.ErrWorkflowConfig, "map_reduce requires splitter, reducer and mapper or mappers")
	}

	split, err := x.Runner.RunAgent(ctx, wf.Splitter, x.Args, SplitSchema)
	if err != nil {
		return nil, core.NewAgentError("workflow.split", name, err, wf.Splitter)
	}
	tasks, err := decodeTasks(split)
	if err != nil {
		return nil, core.NewAgentError("workflow.split", name, err, wf.Splitter)
	}

	// Route every subtask before the first mapper call.
	mappers := make([]string, len(tasks))
	for i, t := range tasks {
		m, ok := wf.MapperFor(t.WorkerType)
		if !ok {
			return nil, core.NewAgentError("workflow.map", name, core.ErrWorkflowConfig, fmt.Sprintf("no mapper for worker_type %q", t.WorkerType))
		}
		mappers[i] = m
	}
	e.logger.Debug("engine.workflow.split", "agent", name, "tasks", len(tasks))

	p := pool.NewWithResults[MapResult]().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, t := range tasks {
		p.Go(func(ctx context.Context) (MapResult, error) {
			res, err := x.Runner.RunAgent(ctx, mappers[i], t.Arguments, nil)
			if err != nil {
				return MapResult{}, core.NewAgentError("workflow.map", name, err, mappers[i])
			}
			return MapResult{Index: i, Task: t, Mapper: mappers[i], Result: res}, nil
		})
	}
	mapped, err := p.Wait()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(mapped, func(a, b MapResult) int { return a.Index - b.Index })

	parts := make([]string, len(mapped))
	for i, m := range mapped {
		parts[i] = resultText(m.Result)
	}

	reduced, err := x.Runner.RunAgent(ctx, wf.Reducer, map[string]any{"input": strings.Join(parts, ResultSeparator)}, x.OutputSchema)
	if err != nil {
		return nil, core.NewAgentError("workflow.reduce", name, err, wf.Reducer)
	}
	return &core.Result{Text: reduced.Text, Structured: reduced.Structured}, nil
}

func decodeTasks(res *core.Result) ([]Task, error) {
	v := res.Structured
	if v == nil {
		var err error
		if v, err = model.DecodeStructured(res.Text, SplitSchema); err != nil {
			return nil, err
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out SplitOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &core.StructuredOutputError{Raw: string(raw), Err: err}
	}
	return out.Tasks, nil
}

func resultText(r *core.Result) string {
	if r == nil {
		return ""
	}
	if r.Structured != nil {
		if b, err := json.Marshal(r.Structured); err == nil {
			return string(b)
		}
	}
	return r.Text
}
