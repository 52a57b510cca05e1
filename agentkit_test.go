package agentkit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkit/config"
	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
	"github.com/hupe1980/agentkit/provider"
	"github.com/hupe1980/agentkit/tool"
	"github.com/hupe1980/agentkit/tracing"
)

// testModels hands out one MockModel per identifier and records every
// Create call.
type testModels struct {
	mu      sync.Mutex
	models  map[string]*model.MockModel
	created []string
	opts    []provider.Options
}

func newTestModels() *testModels {
	return &testModels{models: map[string]*model.MockModel{}}
}

func (tm *testModels) get(id string) *model.MockModel {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	m, ok := tm.models[id]
	if !ok {
		m = model.NewMockModel(id, "mock")
		tm.models[id] = m
	}
	return m
}

func (tm *testModels) Create(id string, opts provider.Options) (model.Model, error) {
	m := tm.get(id)
	tm.mu.Lock()
	tm.created = append(tm.created, id)
	tm.opts = append(tm.opts, opts)
	tm.mu.Unlock()
	return m, nil
}

func (tm *testModels) createdIDs() []string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return append([]string(nil), tm.created...)
}

func newTestKit(t *testing.T, optFns ...func(o *Options)) (*Kit, *testModels) {
	t.Helper()
	tm := newTestModels()
	opts := append([]func(o *Options){func(o *Options) {
		o.Models = tm
		o.Routes = map[core.Capability]string{
			core.CapabilityFast:  "mock:fast",
			core.CapabilitySmart: "mock:smart",
		}
	}}, optFns...)
	return New(opts...), tm
}

func agentConfig(name string, mutate func(c *core.AgentConfig)) core.AgentConfig {
	cfg := core.DefaultAgentConfig(name)
	cfg.Description = "test agent " + name
	cfg.SystemPrompt = "You are " + name + "."
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}

func centralWith(cfgs ...core.AgentConfig) config.CentralSource {
	return config.CentralFunc(func(_ context.Context, name string) (*core.AgentConfig, error) {
		for _, c := range cfgs {
			if c.Name == name {
				c := c.Clone()
				return &c, nil
			}
		}
		return nil, nil
	})
}

func TestKit_InvokeSync_CentralWinsOverLocal(t *testing.T) {
	central := agentConfig("writer", func(c *core.AgentConfig) { c.SystemPrompt = "central prompt" })
	kit, tm := newTestKit(t, func(o *Options) { o.Central = centralWith(central) })
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("writer", func(c *core.AgentConfig) { c.SystemPrompt = "local prompt" })))

	res, err := kit.InvokeSync(context.Background(), "writer", map[string]any{"input": "draft"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: draft", res.Text)

	calls := tm.get("mock:smart").Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "central prompt", calls[0].Contents[0].Text())
}

func TestKit_InvokeSync_LocalWithTemperatureOverride(t *testing.T) {
	kit, tm := newTestKit(t)
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("writer", nil)))

	_, err := kit.InvokeSync(context.Background(), "writer", map[string]any{"input": "x"}, func(o *InvokeOptions) {
		o.Overrides.Temperature = core.Ptr(0.2)
	})
	require.NoError(t, err)

	require.Len(t, tm.opts, 1)
	assert.InDelta(t, 0.2, tm.opts[0].Temperature, 1e-9)

	// Per-call overrides do not persist.
	cfg, err := kit.ResolveConfig(context.Background(), "writer")
	require.NoError(t, err)
	assert.InDelta(t, core.DefaultTemperature, cfg.Temperature, 1e-9)
}

func TestKit_InvokeSync_ConfigNotFound(t *testing.T) {
	kit, tm := newTestKit(t)

	_, err := kit.InvokeSync(context.Background(), "ghost", map[string]any{"input": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfigNotFound)
	assert.Empty(t, tm.createdIDs())
}

func TestKit_InvokeSync_SynthesizedFromOverrides(t *testing.T) {
	kit, tm := newTestKit(t)

	res, err := kit.InvokeSync(context.Background(), "ghost", map[string]any{"input": "x"}, func(o *InvokeOptions) {
		o.Overrides.Name = core.Ptr("ghost")
		o.Overrides.Capability = core.Ptr(core.CapabilityFast)
	})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: x", res.Text)
	assert.Equal(t, []string{"mock:fast"}, tm.createdIDs())
}

func TestKit_Routing(t *testing.T) {
	kit, tm := newTestKit(t)
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("fast", func(c *core.AgentConfig) { c.Capability = core.CapabilityFast })))
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("pinned", func(c *core.AgentConfig) {
		c.Capability = core.CapabilityFast
		c.Model = "mock:pinned"
	})))
	ctx := context.Background()

	_, err := kit.InvokeSync(ctx, "fast", map[string]any{"input": "1"})
	require.NoError(t, err)

	kit.UpdateModelMapping(core.CapabilityFast, "mock:faster")
	_, err = kit.InvokeSync(ctx, "fast", map[string]any{"input": "2"})
	require.NoError(t, err)

	_, err = kit.InvokeSync(ctx, "pinned", map[string]any{"input": "3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"mock:fast", "mock:faster", "mock:pinned"}, tm.createdIDs())
	assert.Equal(t, "mock:faster", kit.ModelMappings()[core.CapabilityFast])
}

func TestKit_InvokeSync_NoToolsBound(t *testing.T) {
	kit, tm := newTestKit(t)
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("plain", func(c *core.AgentConfig) { c.AgentType = core.AgentTypeReact })))

	_, err := kit.InvokeSync(context.Background(), "plain", map[string]any{"input": "x"})
	require.NoError(t, err)

	calls := tm.get("mock:smart").Calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Tools)
}

func TestKit_InvokeSync_UnknownTool(t *testing.T) {
	kit, _ := newTestKit(t)
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("a", func(c *core.AgentConfig) { c.Tools = []string{"missing"} })))

	_, err := kit.InvokeSync(context.Background(), "a", map[string]any{"input": "x"})
	assert.ErrorIs(t, err, core.ErrUnknownTool)
}

func TestKit_React_ToolsAndTrace(t *testing.T) {
	kit, tm := newTestKit(t)
	var calls []string
	var mu sync.Mutex
	for _, name := range []string{"lookup", "summarize"} {
		require.NoError(t, kit.RegisterFunctionTool(name, "tool "+name, nil, func(_ context.Context, args map[string]any) (any, error) {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
			return name + " done", nil
		}))
	}
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("researcher", func(c *core.AgentConfig) {
		c.AgentType = core.AgentTypeReact
		c.Tools = []string{"lookup", "summarize"}
	})))

	tm.get("mock:smart").Script(
		model.ToolCallResponse(core.FunctionCall{ID: "1", Name: "lookup", Arguments: `{"payload":[]}`}),
		model.ToolCallResponse(core.FunctionCall{ID: "2", Name: "summarize", Arguments: `{}`}),
		model.TextResponse("final answer"),
	)

	res, err := kit.InvokeSync(context.Background(), "researcher", map[string]any{"input": "topic"})
	require.NoError(t, err)
	assert.Equal(t, "final answer", res.Text)
	assert.Equal(t, []string{"lookup", "summarize"}, calls)
	require.NotEmpty(t, res.RunID)

	tree, err := kit.GetTrace(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, tracing.KindAgent, tree.Run.Kind)

	kinds := map[tracing.Kind]int{}
	for _, c := range tree.Children {
		kinds[c.Run.Kind]++
	}
	assert.Equal(t, 3, kinds[tracing.KindModel])
	assert.Equal(t, 2, kinds[tracing.KindTool])
	assertEndTimes(t, tree)
}

func TestKit_React_MaxIterations(t *testing.T) {
	kit, tm := newTestKit(t)
	require.NoError(t, kit.RegisterFunctionTool("loop", "loops", nil, func(context.Context, map[string]any) (any, error) { return "again", nil }))
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("looper", func(c *core.AgentConfig) {
		c.AgentType = core.AgentTypeReact
		c.Tools = []string{"loop"}
		c.MaxIterations = 1
	})))
	tm.get("mock:smart").Script(model.ToolCallResponse(core.FunctionCall{ID: "1", Name: "loop", Arguments: `{}`}))

	_, err := kit.InvokeSync(context.Background(), "looper", map[string]any{"input": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMaxIterationsExceeded)

	var mie *core.MaxIterationsError
	require.ErrorAs(t, err, &mie)
	assert.NotEmpty(t, mie.Contents)
}

func TestKit_Workflow_MapReduce(t *testing.T) {
	kit, tm := newTestKit(t)
	for _, name := range []string{"splitter", "mapper", "reducer"} {
		require.NoError(t, kit.RegisterAgentConfig(agentConfig(name, func(c *core.AgentConfig) { c.Model = "mock:" + name })))
	}
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("pipeline", func(c *core.AgentConfig) {
		c.AgentType = core.AgentTypeWorkflow
		c.Workflow = &core.WorkflowConfig{Type: "map_reduce", Splitter: "splitter", Mapper: "mapper", Reducer: "reducer"}
	})))

	tm.get("mock:splitter").Script(model.TextResponse(`{"tasks":[
		{"worker_type":"w","arguments":{"input":"a"}},
		{"worker_type":"w","arguments":{"input":"b"}},
		{"worker_type":"w","arguments":{"input":"c"}}]}`))

	res, err := kit.InvokeSync(context.Background(), "pipeline", map[string]any{"input": "job"})
	require.NoError(t, err)

	assert.Len(t, tm.get("mock:mapper").Calls(), 3)
	reducerCalls := tm.get("mock:reducer").Calls()
	require.Len(t, reducerCalls, 1)
	joined := reducerCalls[0].Contents[len(reducerCalls[0].Contents)-1].Text()
	assert.Equal(t, "Mock response to: a\n\nMock response to: b\n\nMock response to: c", joined)
	assert.Equal(t, "Mock response to: "+joined, res.Text)

	// The workflow agent itself never creates a model.
	assert.NotContains(t, tm.createdIDs(), "mock:smart")

	tree, err := kit.GetTrace(res.RunID)
	require.NoError(t, err)
	assert.Len(t, tree.Children, 5)
	assertEndTimes(t, tree)
}

func TestKit_SetAgentEnabled(t *testing.T) {
	central := agentConfig("writer", nil)
	kit, tm := newTestKit(t, func(o *Options) { o.Central = centralWith(central) })
	ctx := context.Background()

	kit.SetAgentEnabled("writer", false)
	_, err := kit.InvokeSync(ctx, "writer", map[string]any{"input": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAgentDisabled)
	assert.Empty(t, tm.createdIDs())
	assert.Empty(t, tm.get("mock:smart").Calls())

	kit.SetAgentEnabled("writer", true)
	_, err = kit.InvokeSync(ctx, "writer", map[string]any{"input": "x"})
	require.NoError(t, err)
	assert.Len(t, tm.get("mock:smart").Calls(), 1)
}

func TestKit_BareConfig(t *testing.T) {
	kit, tm := newTestKit(t)
	require.NoError(t, kit.RegisterAgentConfig(core.AgentConfig{Name: "off", Capability: core.CapabilitySmart}))
	require.NoError(t, kit.RegisterAgentConfig(core.AgentConfig{Name: "on", Capability: core.CapabilitySmart, Enabled: true}))
	ctx := context.Background()

	_, err := kit.InvokeSync(ctx, "off", map[string]any{"input": "x"})
	assert.ErrorIs(t, err, core.ErrAgentDisabled)

	res, err := kit.InvokeSync(ctx, "on", map[string]any{"input": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: x", res.Text)
	assert.Len(t, tm.get("mock:smart").Calls(), 1)
}

func TestKit_UpdateAndResetAgentConfig(t *testing.T) {
	kit, _ := newTestKit(t)
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("writer", nil)))
	ctx := context.Background()

	kit.UpdateAgentConfig("writer", core.Overrides{MaxIterations: core.Ptr(9)})
	cfg, err := kit.ResolveConfig(ctx, "writer")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.MaxIterations)

	kit.ResetAgentConfig("writer")
	cfg, err = kit.ResolveConfig(ctx, "writer")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultMaxIterations, cfg.MaxIterations)
}

func TestKit_GlobalToolBoundToEveryAgent(t *testing.T) {
	kit, tm := newTestKit(t)
	require.NoError(t, kit.RegisterFunctionTool("clock", "tells the time", nil, func(context.Context, map[string]any) (any, error) { return "noon", nil }, tool.GlobalTag))
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("a", func(c *core.AgentConfig) { c.AgentType = core.AgentTypeReact })))
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("b", func(c *core.AgentConfig) {
		c.AgentType = core.AgentTypeReact
		c.Capability = core.CapabilityFast
	})))

	for _, name := range []string{"a", "b"} {
		_, err := kit.InvokeSync(context.Background(), name, map[string]any{"input": "x"})
		require.NoError(t, err)
	}
	for _, id := range []string{"mock:smart", "mock:fast"} {
		calls := tm.get(id).Calls()
		require.Len(t, calls, 1)
		require.Len(t, calls[0].Tools, 1)
		assert.Equal(t, "clock", calls[0].Tools[0].Function.Name)
		assert.Equal(t, DefaultToolSchema(), calls[0].Tools[0].Function.Parameters)
	}
}

func TestKit_ChildAgentAsTool(t *testing.T) {
	kit, tm := newTestKit(t)
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("helper", func(c *core.AgentConfig) { c.Model = "mock:helper" })))
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("boss", func(c *core.AgentConfig) {
		c.AgentType = core.AgentTypeReact
		c.ChildAgents = []string{"helper"}
	})))
	tm.get("mock:smart").Script(
		model.ToolCallResponse(core.FunctionCall{ID: "1", Name: "helper", Arguments: `{"input":"sub task"}`}),
		model.TextResponse("done"),
	)

	res, err := kit.InvokeSync(context.Background(), "boss", map[string]any{"input": "x"})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)
	require.Len(t, tm.get("mock:helper").Calls(), 1)

	bossCalls := tm.get("mock:smart").Calls()
	require.Len(t, bossCalls[0].Tools, 1)
	assert.Equal(t, "test agent helper", bossCalls[0].Tools[0].Function.Description)

	tree, err := kit.GetTrace(res.RunID)
	require.NoError(t, err)
	var nested int
	tree.Walk(func(n *tracing.Tree, depth int) {
		if n.Run.Kind == tracing.KindAgent && n.Run.Name == "helper" {
			nested = depth
		}
	})
	assert.Equal(t, 2, nested)
}

func TestKit_NestedSyncWorkflowFromTool(t *testing.T) {
	kit, tm := newTestKit(t)
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("pipeline", func(c *core.AgentConfig) {
		c.AgentType = core.AgentTypeWorkflow
		c.Workflow = &core.WorkflowConfig{Type: "map_reduce", Splitter: "s", Mapper: "m", Reducer: "r"}
	})))

	var nestedErr error
	require.NoError(t, kit.RegisterFunctionTool("spawn", "runs the pipeline", nil, func(ctx context.Context, _ map[string]any) (any, error) {
		_, nestedErr = kit.InvokeSync(ctx, "pipeline", map[string]any{"input": "x"})
		return nil, nestedErr
	}))
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("caller", func(c *core.AgentConfig) {
		c.AgentType = core.AgentTypeReact
		c.Tools = []string{"spawn"}
	})))
	tm.get("mock:smart").Script(
		model.ToolCallResponse(core.FunctionCall{ID: "1", Name: "spawn", Arguments: `{}`}),
		model.TextResponse("gave up"),
	)

	res, err := kit.InvokeSync(context.Background(), "caller", map[string]any{"input": "x"})
	require.NoError(t, err)
	assert.Equal(t, "gave up", res.Text)
	assert.ErrorIs(t, nestedErr, core.ErrNestedExecution)
}

func TestKit_Call(t *testing.T) {
	kit, tm := newTestKit(t)
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"score": map[string]any{"type": "integer"}},
		"required":   []string{"score"},
	}
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("grader", func(c *core.AgentConfig) {
		c.Methods = []core.MethodSpec{{Name: "grade", Output: schema}}
	})))
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("plain", nil)))
	ctx := context.Background()

	tm.get("mock:smart").Script(model.TextResponse(`{"score": 7}`))
	res, err := kit.Call(ctx, "grader", "grade", map[string]any{"input": "essay"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"score": float64(7)}, res.Structured)

	_, err = kit.Call(ctx, "grader", "review", map[string]any{"input": "essay"})
	assert.ErrorIs(t, err, core.ErrUnknownMethod)

	_, err = kit.Call(ctx, "plain", DefaultMethod, map[string]any{"input": "x"})
	assert.NoError(t, err)
	_, err = kit.Call(ctx, "plain", "grade", map[string]any{"input": "x"})
	assert.ErrorIs(t, err, core.ErrUnknownMethod)
}

func TestKit_Experiment(t *testing.T) {
	draws := []float64{0.1, 0.9}
	var mu sync.Mutex
	kit, tm := newTestKit(t, func(o *Options) {
		o.Random = func() float64 {
			mu.Lock()
			defer mu.Unlock()
			v := draws[0]
			draws = draws[1:]
			return v
		}
	})
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("writer_v1", func(c *core.AgentConfig) { c.Model = "mock:v1" })))
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("writer_v2", func(c *core.AgentConfig) { c.Model = "mock:v2" })))
	require.NoError(t, kit.RegisterExperiment("writer", map[string]float64{"writer_v1": 3, "writer_v2": 1}))

	ctx := context.Background()
	first, err := kit.InvokeSync(ctx, "writer", map[string]any{"input": "x"})
	require.NoError(t, err)
	_, err = kit.InvokeSync(ctx, "writer", map[string]any{"input": "x"})
	require.NoError(t, err)

	assert.Equal(t, []string{"mock:v1", "mock:v2"}, tm.createdIDs())

	tree, err := kit.GetTrace(first.RunID)
	require.NoError(t, err)
	assert.Equal(t, "writer_v1", tree.Run.Name)
	assert.Equal(t, "writer", tree.Run.Extra["experiment"])

	assert.Error(t, kit.RegisterExperiment("empty", map[string]float64{"a": 0}))
}

func TestKit_Invoke_Async(t *testing.T) {
	kit, _ := newTestKit(t)
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("writer", nil)))

	runID, resCh, errCh := kit.Invoke(context.Background(), "writer", map[string]any{"input": "x"})
	require.NotEmpty(t, runID)

	res, ok := <-resCh
	require.True(t, ok)
	require.NoError(t, <-errCh)
	assert.Equal(t, runID, res.RunID)

	tree, err := kit.GetTrace(runID)
	require.NoError(t, err)
	assert.Equal(t, "writer", tree.Run.Name)
}

func TestKit_Invoke_AsyncError(t *testing.T) {
	kit, _ := newTestKit(t)

	_, resCh, errCh := kit.Invoke(context.Background(), "ghost", nil)
	err := <-errCh
	assert.ErrorIs(t, err, core.ErrConfigNotFound)
	_, ok := <-resCh
	assert.False(t, ok)
}

func TestKit_TracingDisabledAgent(t *testing.T) {
	kit, _ := newTestKit(t)
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("quiet", func(c *core.AgentConfig) { c.TracingEnabled = false })))

	res, err := kit.InvokeSync(context.Background(), "quiet", map[string]any{"input": "x"})
	require.NoError(t, err)
	assert.Empty(t, res.RunID)
}

func TestKit_GetTrace_NotFound(t *testing.T) {
	kit, _ := newTestKit(t)
	_, err := kit.GetTrace("nope")
	assert.ErrorIs(t, err, tracing.ErrRunNotFound)
}

func TestKit_RegisterAgentConfig_Invalid(t *testing.T) {
	kit, _ := newTestKit(t)
	err := kit.RegisterAgentConfig(agentConfig("hot", func(c *core.AgentConfig) { c.Temperature = 3 }))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestKit_StartAndShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(`
models:
  reasoning: mock:deep
agents:
  - name: thinker
    capability: reasoning
    system_prompt: Think hard.
`)), 0o600))

	var closed bool
	kit, tm := newTestKit(t, func(o *Options) {
		o.ConfigFiles = []string{path}
		o.OnShutdown = append(o.OnShutdown, func(context.Context) error {
			closed = true
			return nil
		})
	})
	ctx := context.Background()
	assert.Equal(t, PhaseInitializing, kit.Phase())
	require.NoError(t, kit.Start(ctx))
	assert.Equal(t, PhaseReady, kit.Phase())
	assert.Contains(t, kit.Agents(), "thinker")

	_, err := kit.InvokeSync(ctx, "thinker", map[string]any{"input": "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mock:deep"}, tm.createdIDs())
	assert.Equal(t, PhaseRunning, kit.Phase())

	require.NoError(t, kit.Shutdown(ctx))
	assert.True(t, closed)
	assert.Equal(t, PhaseStopped, kit.Phase())

	_, err = kit.InvokeSync(ctx, "thinker", map[string]any{"input": "x"})
	assert.ErrorIs(t, err, ErrShutdown)
	assert.Error(t, kit.Start(ctx))
}

func TestKit_Shutdown_ResetsOwnedCollector(t *testing.T) {
	kit, _ := newTestKit(t)
	ctx := context.Background()
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("echo", nil)))

	res, err := kit.InvokeSync(ctx, "echo", map[string]any{"input": "x"})
	require.NoError(t, err)
	_, err = kit.GetTrace(res.RunID)
	require.NoError(t, err)

	require.NoError(t, kit.Shutdown(ctx))
	_, err = kit.GetTrace(res.RunID)
	assert.ErrorIs(t, err, tracing.ErrRunNotFound)
}

func TestKit_Shutdown_KeepsSuppliedCollector(t *testing.T) {
	collector := tracing.NewCollector()
	kit, _ := newTestKit(t, func(o *Options) { o.Collector = collector })
	ctx := context.Background()
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("echo", nil)))

	res, err := kit.InvokeSync(ctx, "echo", map[string]any{"input": "x"})
	require.NoError(t, err)
	require.NoError(t, kit.Shutdown(ctx))

	_, err = collector.Tree(res.RunID)
	assert.NoError(t, err)
}

// gatedModel blocks every Generate call until release is closed.
type gatedModel struct {
	model.Model
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.Model.Generate(ctx, req)
}

func TestKit_Shutdown_DrainsRunningWorkflow(t *testing.T) {
	tm := newTestModels()
	splitter := &gatedModel{Model: tm.get("mock:splitter"), started: make(chan struct{}), release: make(chan struct{})}
	kit, _ := newTestKit(t, func(o *Options) {
		o.Models = provider.CreatorFunc(func(id string, opts provider.Options) (model.Model, error) {
			if id == "mock:splitter" {
				return splitter, nil
			}
			return tm.Create(id, opts)
		})
	})
	for _, name := range []string{"splitter", "mapper", "reducer"} {
		require.NoError(t, kit.RegisterAgentConfig(agentConfig(name, func(c *core.AgentConfig) { c.Model = "mock:" + name })))
	}
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("pipeline", func(c *core.AgentConfig) {
		c.AgentType = core.AgentTypeWorkflow
		c.Workflow = &core.WorkflowConfig{Type: "map_reduce", Splitter: "splitter", Mapper: "mapper", Reducer: "reducer"}
	})))
	tm.get("mock:splitter").Script(model.TextResponse(`{"tasks":[
		{"worker_type":"w","arguments":{"input":"a"}},
		{"worker_type":"w","arguments":{"input":"b"}}]}`))

	ctx := context.Background()
	_, resCh, errCh := kit.Invoke(ctx, "pipeline", map[string]any{"input": "job"})
	<-splitter.started

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- kit.Shutdown(ctx) }()
	require.Eventually(t, func() bool { return kit.Phase() == PhaseShuttingDown }, time.Second, time.Millisecond)

	_, err := kit.InvokeSync(ctx, "mapper", map[string]any{"input": "late"})
	assert.ErrorIs(t, err, ErrShutdown)

	close(splitter.release)

	res, ok := <-resCh
	require.NoError(t, <-errCh)
	require.True(t, ok)
	assert.Contains(t, res.Text, "Mock response to: a")
	assert.Len(t, tm.get("mock:mapper").Calls(), 2)
	assert.Len(t, tm.get("mock:reducer").Calls(), 1)

	require.NoError(t, <-shutdownErr)
	assert.Equal(t, PhaseStopped, kit.Phase())
}

func TestKit_ModelFor(t *testing.T) {
	kit, _ := newTestKit(t)
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("a", func(c *core.AgentConfig) { c.Capability = core.CapabilityFast })))

	id, err := kit.ModelFor(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "mock:fast", id)

	_, err = kit.NewModel("mock:any", provider.Options{})
	assert.NoError(t, err)
}

func TestKit_ModelCreateFailure(t *testing.T) {
	kit := New(func(o *Options) {
		o.Models = provider.CreatorFunc(func(string, provider.Options) (model.Model, error) {
			return nil, provider.ErrCredentialMissing
		})
	})
	require.NoError(t, kit.RegisterAgentConfig(agentConfig("a", nil)))

	_, err := kit.InvokeSync(context.Background(), "a", map[string]any{"input": "x"})
	assert.True(t, errors.Is(err, provider.ErrCredentialMissing))
}

// assertEndTimes checks that no child run closes after its parent.
func assertEndTimes(t *testing.T, tree *tracing.Tree) {
	t.Helper()
	var check func(n *tracing.Tree)
	check = func(n *tracing.Tree) {
		require.True(t, n.Run.Closed(), "run %s not closed", n.Run.Name)
		for _, c := range n.Children {
			require.True(t, c.Run.Closed())
			assert.False(t, c.Run.EndTime.After(*n.Run.EndTime), "child %s closes after parent %s", c.Run.Name, n.Run.Name)
			check(c)
		}
	}
	check(tree)
}
