// Package agentkit provides a high-level façade that turns declarative agent
// configurations into callable execution units. Most applications interact
// with this package by:
//  1. Creating a Kit via New() (optionally overriding routes, tools, tracing
//     and the model factory)
//  2. Registering tools and agent configurations (or loading YAML files with Start)
//  3. Invoking agents asynchronously (Invoke) or synchronously (InvokeSync, Call)
//
// Every invocation resolves the effective configuration (central > local,
// then runtime overrides), checks that the agent is enabled, routes its
// capability to a model, binds tools and child agents and hands the result to
// engine.Engine. The whole call is recorded as an AGENT trace run.
package agentkit

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hupe1980/agentkit/config"
	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/engine"
	"github.com/hupe1980/agentkit/internal/util"
	"github.com/hupe1980/agentkit/logging"
	"github.com/hupe1980/agentkit/model"
	"github.com/hupe1980/agentkit/provider"
	"github.com/hupe1980/agentkit/router"
	"github.com/hupe1980/agentkit/tool"
	"github.com/hupe1980/agentkit/tracing"
)

// DefaultMethod is the implicit method of agents that declare none.
const DefaultMethod = "invoke"

// Options configures the Kit.
type Options struct {
	// Central is the authoritative configuration source (nil = none).
	Central config.CentralSource
	// Routes seeds the capability table on top of router.DefaultRoutes.
	Routes map[core.Capability]string
	// Models creates model handles. Defaults to a provider.Factory using
	// Credentials.
	Models      provider.Creator
	Credentials provider.Credentials

	// Gate bounds model calls. Defaults to a gate with MaxConcurrency and
	// RateLimit.
	Gate           *engine.Gate
	MaxConcurrency int64
	RateLimit      float64

	Tools     *tool.Registry
	Callbacks *engine.CallbackManager

	// Collector records traces. Defaults to an enabled in-memory collector
	// persisting to TraceStores that is reset by Shutdown.
	Collector   *tracing.Collector
	TraceStores []tracing.Store

	// ConfigFiles are YAML documents loaded by Start; WatchConfig reloads
	// them on change.
	ConfigFiles []string
	WatchConfig bool

	// OnShutdown hooks run by Shutdown after in-flight invocations finish
	// (exporter flushes, store closes).
	OnShutdown []func(ctx context.Context) error

	// Random draws experiment variants; returns values in [0,1).
	Random func() float64

	Logger logging.Logger
}

// InvokeOptions tune a single invocation.
type InvokeOptions struct {
	// Overrides are per-call configuration overrides (model, enabled, ...).
	Overrides core.Overrides
	// OutputSchema requests a structured result.
	OutputSchema map[string]any
	// Method selects a declared method; its output schema applies when
	// OutputSchema is unset.
	Method string
}

// Kit is the agent runtime façade. It is safe for concurrent use.
type Kit struct {
	opts      Options
	logger    logging.Logger
	resolver  *config.Resolver
	router    *router.Router
	tools     *tool.Registry
	binder    *tool.Binder
	collector *tracing.Collector
	models    provider.Creator
	engine    *engine.Engine

	experiments *experiments

	phase    atomic.Int32
	inflight sync.WaitGroup
	mu       sync.Mutex
	stop     context.CancelFunc
	watchers sync.WaitGroup
}

// New creates a Kit. Unset collaborators get in-memory defaults.
func New(optFns ...func(o *Options)) *Kit {
	opts := Options{
		MaxConcurrency: 10,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)

	if opts.Tools == nil {
		opts.Tools = tool.NewRegistry()
	}
	if opts.Collector == nil {
		collector := tracing.NewCollector(func(o *tracing.Options) {
			o.Stores = opts.TraceStores
			o.Logger = logger
		})
		// A kit-owned collector lives only as long as the kit.
		opts.OnShutdown = append(slices.Clone(opts.OnShutdown), func(context.Context) error {
			collector.Reset()
			return nil
		})
		opts.Collector = collector
	}
	if opts.Models == nil {
		opts.Models = provider.NewFactory(func(o *provider.FactoryOptions) {
			o.Credentials = opts.Credentials
			o.Logger = logger
		})
	}
	if opts.Gate == nil {
		opts.Gate = engine.NewGate(func(o *engine.GateOptions) {
			o.MaxConcurrent = opts.MaxConcurrency
			o.RequestsPerSecond = opts.RateLimit
		})
	}

	k := &Kit{
		opts:   opts,
		logger: logger,
		resolver: config.NewResolver(func(o *config.ResolverOptions) {
			o.Central = opts.Central
			o.Logger = logger
		}),
		router: router.New(func(o *router.Options) {
			o.Routes = opts.Routes
			o.Logger = logger
		}),
		tools:     opts.Tools,
		collector: opts.Collector,
		models:    opts.Models,
		engine: engine.New(func(o *engine.Options) {
			o.Gate = opts.Gate
			o.Collector = opts.Collector
			o.Callbacks = opts.Callbacks
			o.Logger = logger
		}),
		experiments: newExperiments(opts.Random),
	}
	k.binder = tool.NewBinder(k.tools, k, func(o *tool.BinderOptions) { o.Logger = logger })
	return k
}

// Invoke starts an asynchronous invocation. The returned run id identifies
// the root AGENT trace run (see GetTrace). Exactly one of the channels
// receives a value before both are closed.
func (k *Kit) Invoke(ctx context.Context, agent string, args map[string]any, optFns ...func(o *InvokeOptions)) (string, <-chan *core.Result, <-chan error) {
	opts := invokeOptions(optFns)
	runID := uuid.NewString()
	resCh := make(chan *core.Result, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(resCh)
		defer close(errCh)
		res, err := k.invoke(engine.ClearSyncEntry(ctx), runID, agent, args, opts)
		if err != nil {
			errCh <- err
			return
		}
		resCh <- res
	}()
	return runID, resCh, errCh
}

// InvokeSync runs an invocation to completion. Called from inside a running
// execution (for example from a tool) it refuses to start a workflow and
// returns core.ErrNestedExecution; use Invoke there instead.
func (k *Kit) InvokeSync(ctx context.Context, agent string, args map[string]any, optFns ...func(o *InvokeOptions)) (*core.Result, error) {
	return k.invoke(engine.MarkSyncEntry(ctx), uuid.NewString(), agent, args, invokeOptions(optFns))
}

// Call invokes a declared method of agent. Agents without declared methods
// accept DefaultMethod only.
func (k *Kit) Call(ctx context.Context, agent, method string, args map[string]any, optFns ...func(o *InvokeOptions)) (*core.Result, error) {
	return k.InvokeSync(ctx, agent, args, append(optFns, func(o *InvokeOptions) { o.Method = method })...)
}

func invokeOptions(optFns []func(o *InvokeOptions)) InvokeOptions {
	var opts InvokeOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// invoke runs one invocation under its own AGENT run.
func (k *Kit) invoke(ctx context.Context, runID, name string, args map[string]any, opts InvokeOptions) (*core.Result, error) {
	if err := k.enter(ctx); err != nil {
		return nil, err
	}
	defer k.inflight.Done()

	target, variant := k.experiments.pick(name)
	cfg, resolveErr := k.resolver.Resolve(ctx, target, opts.Overrides)

	if resolveErr == nil && !cfg.TracingEnabled {
		ctx = tracing.Suppress(ctx)
	}
	extra := map[string]any{}
	if variant {
		extra["experiment"] = name
		extra["variant"] = target
	}
	ctx, traceID := k.collector.StartRun(ctx, tracing.KindAgent, target, maps.Clone(args), func(o *tracing.StartOptions) {
		o.RunID = runID
		o.Extra = extra
	})

	res, err := k.execute(ctx, cfg, resolveErr, args, opts)

	var outputs any
	if res != nil {
		outputs = res.Value()
	}
	k.collector.EndRun(ctx, traceID, outputs, err)

	if err != nil {
		k.logger.Debug("agentkit.invoke.failed", "agent", target, "run_id", runID, "error", err.Error())
		return nil, err
	}
	if traceID != tracing.NoopRunID {
		res.RunID = traceID
	}
	return res, nil
}

func (k *Kit) execute(ctx context.Context, cfg core.AgentConfig, resolveErr error, args map[string]any, opts InvokeOptions) (*core.Result, error) {
	if resolveErr != nil {
		return nil, resolveErr
	}
	if !cfg.Enabled {
		return nil, core.DisabledError(cfg.Name)
	}

	schema, err := outputSchema(cfg, opts)
	if err != nil {
		return nil, err
	}

	x := &engine.Execution{
		Config:       cfg,
		Args:         args,
		OutputSchema: schema,
		Runner:       k,
	}

	// Workflows only orchestrate other agents and never call a model.
	if cfg.AgentType != core.AgentTypeWorkflow {
		modelID, err := k.router.Resolve(cfg.Capability, cfg.Model)
		if err != nil {
			return nil, err
		}
		x.ModelID = modelID
		x.Model, err = k.models.Create(modelID, provider.Options{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Profile:     cfg.LLMProfile,
		})
		if err != nil {
			return nil, core.NewAgentError("model", cfg.Name, err, modelID)
		}
	}

	x.Tools, err = k.binder.Bind(ctx, cfg.Tools, cfg.ChildAgents, cfg.Tags)
	if err != nil {
		return nil, err
	}

	return k.engine.Run(ctx, x)
}

func outputSchema(cfg core.AgentConfig, opts InvokeOptions) (map[string]any, error) {
	var schema map[string]any
	if opts.Method != "" {
		m, ok := cfg.Method(opts.Method)
		switch {
		case ok:
			schema = m.Output
		case len(cfg.Methods) == 0 && opts.Method == DefaultMethod:
		default:
			return nil, core.NewAgentError("call", cfg.Name, core.ErrUnknownMethod, opts.Method)
		}
	}
	if len(opts.OutputSchema) > 0 {
		schema = opts.OutputSchema
	}
	return schema, nil
}

// RunAgent implements engine.AgentRunner for workflow members.
func (k *Kit) RunAgent(ctx context.Context, name string, args map[string]any, outputSchema map[string]any) (*core.Result, error) {
	return k.invoke(engine.ClearSyncEntry(ctx), uuid.NewString(), name, args, InvokeOptions{OutputSchema: outputSchema})
}

// LocateAgent implements tool.AgentLocator for child agent binding.
func (k *Kit) LocateAgent(ctx context.Context, name string) (core.Invocable, error) {
	cfg, err := k.resolver.Resolve(ctx, name, core.Overrides{})
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, core.DisabledError(name)
	}
	return &Agent{kit: k, name: name, cfg: &cfg}, nil
}

// Agent returns a handle invoking the named agent. The configuration is
// resolved on every call.
func (k *Kit) Agent(name string) *Agent {
	return &Agent{kit: k, name: name}
}

// Agent is an invocable handle. It implements core.Invocable, so agents can
// be registered as tools of other agents.
type Agent struct {
	kit  *Kit
	name string
	// cfg is the configuration snapshot taken when the handle was located.
	cfg *core.AgentConfig
}

var _ core.Invocable = (*Agent)(nil)

// Name implements core.Invocable.
func (a *Agent) Name() string { return a.name }

// Description implements core.Invocable.
func (a *Agent) Description() string {
	if cfg := a.config(); cfg != nil {
		return cfg.Description
	}
	return ""
}

// Parameters returns the argument schema of the first declared method, or
// nil for the default {input: string} shape.
func (a *Agent) Parameters() map[string]any {
	if cfg := a.config(); cfg != nil && len(cfg.Methods) > 0 {
		return cfg.Methods[0].Parameters
	}
	return nil
}

// Invoke implements core.Invocable. It runs the first declared method, if any.
func (a *Agent) Invoke(ctx context.Context, args map[string]any) (*core.Result, error) {
	var opts InvokeOptions
	if cfg := a.config(); cfg != nil && len(cfg.Methods) > 0 {
		opts.Method = cfg.Methods[0].Name
	}
	return a.kit.invoke(engine.ClearSyncEntry(ctx), uuid.NewString(), a.name, args, opts)
}

func (a *Agent) config() *core.AgentConfig {
	if a.cfg != nil {
		return a.cfg
	}
	cfg, err := a.kit.resolver.Resolve(context.Background(), a.name, core.Overrides{})
	if err != nil {
		return nil
	}
	return &cfg
}

// UpdateModelMapping routes capability to identifier for every later call.
func (k *Kit) UpdateModelMapping(capability core.Capability, identifier string) {
	k.router.UpdateMapping(capability, identifier)
}

// ModelMappings returns the capability table.
func (k *Kit) ModelMappings() map[core.Capability]string { return k.router.Mappings() }

// RegisterTool adds t to the tool registry. Tools tagged tool.GlobalTag are
// bound to every agent.
func (k *Kit) RegisterTool(t tool.Tool, tags ...string) error {
	if err := k.tools.Register(t, tags...); err != nil {
		return err
	}
	k.logger.Info("agentkit.tool.registered", "tool", t.Name(), "tags", tags)
	return nil
}

// RegisterFunctionTool registers fn as a dynamic tool. A nil schema accepts
// {payload: [object]}.
func (k *Kit) RegisterFunctionTool(name, description string, schema map[string]any, fn func(ctx context.Context, args map[string]any) (any, error), tags ...string) error {
	if schema == nil {
		schema = DefaultToolSchema()
	}
	return k.RegisterTool(tool.NewFunctionTool(name, description, schema, fn), tags...)
}

// DefaultToolSchema is the argument schema of dynamic tools registered
// without one.
func DefaultToolSchema() map[string]any {
	return util.ObjectSchema(map[string]any{
		"payload": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "object"},
		},
	})
}

// RegisterAgentConfig registers (or replaces) a virtual agent. Validation
// warnings are logged; errors reject the config with core.ErrInvalidConfig.
func (k *Kit) RegisterAgentConfig(cfg core.AgentConfig) error {
	report := core.Validate(cfg)
	for _, w := range report.Warnings() {
		k.logger.Warn("agentkit.agent.validation_warning", "agent", cfg.Name, "field", w.Field, "message", w.Message)
	}
	if err := k.resolver.Local().Register(cfg); err != nil {
		return err
	}
	k.logger.Info("agentkit.agent.registered", "agent", cfg.Name, "agent_type", cfg.AgentType)
	return nil
}

// SetAgentEnabled persistently enables or disables name. It wins over every
// configuration source.
func (k *Kit) SetAgentEnabled(name string, enabled bool) {
	k.resolver.Runtime().Update(name, core.Overrides{Enabled: core.Ptr(enabled)})
	k.logger.Info("agentkit.agent.enabled", "agent", name, "enabled", enabled)
}

// UpdateAgentConfig stores persistent overrides for name, merged field by
// field with earlier ones.
func (k *Kit) UpdateAgentConfig(name string, overrides core.Overrides) {
	k.resolver.Runtime().Update(name, overrides)
}

// ResetAgentConfig drops the persistent overrides of name.
func (k *Kit) ResetAgentConfig(name string) {
	k.resolver.Runtime().Reset(name)
}

// ResolveConfig returns the effective configuration of name.
func (k *Kit) ResolveConfig(ctx context.Context, name string) (core.AgentConfig, error) {
	return k.resolver.Resolve(ctx, name, core.Overrides{})
}

// GetTrace returns the run tree rooted at rootRunID.
func (k *Kit) GetTrace(rootRunID string) (*tracing.Tree, error) {
	return k.collector.Tree(rootRunID)
}

// Agents lists the locally registered agents.
func (k *Kit) Agents() []string { return k.resolver.Local().Names() }

// ModelFor resolves the model identifier an agent would use.
func (k *Kit) ModelFor(ctx context.Context, name string) (string, error) {
	cfg, err := k.ResolveConfig(ctx, name)
	if err != nil {
		return "", err
	}
	return k.router.Resolve(cfg.Capability, cfg.Model)
}

// NewModel creates the model behind identifier using the Kit's factory.
func (k *Kit) NewModel(identifier string, opts provider.Options) (model.Model, error) {
	m, err := k.models.Create(identifier, opts)
	if err != nil {
		return nil, fmt.Errorf("create model %q: %w", identifier, err)
	}
	return m, nil
}
