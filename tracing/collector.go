// Package tracing records the hierarchical tree of runs (agent, tool and
// model calls) produced by an invocation.
//
// The current run is carried in the context.Context: StartRun returns a
// derived context so concurrent branches (map_reduce mappers) each see their
// own parent. Runs are append-only; closed runs are handed to the configured
// Stores and mirrored as OpenTelemetry spans.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentkit/logging"
)

const tracerName = "github.com/hupe1980/agentkit"

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("trace run not found")

// Store receives every closed run.
type Store interface {
	Persist(ctx context.Context, run Run) error
}

// Options configures a Collector.
type Options struct {
	// Enabled switches tracing on globally. Defaults to true.
	Enabled bool
	// TracerProvider mirrors runs as spans. Defaults to the global provider.
	TracerProvider trace.TracerProvider
	Stores         []Store
	Logger         logging.Logger
	// Now is the clock; tests may replace it.
	Now func() time.Time
}

// StartOptions tune a single StartRun call.
type StartOptions struct {
	// RunID forces the id of the new run (e.g. a pre-allocated invocation id).
	RunID string
	Extra map[string]any
}

// Collector is the in-memory TraceCollector.
type Collector struct {
	enabled bool
	tracer  trace.Tracer
	stores  []Store
	logger  logging.Logger
	now     func() time.Time

	mu       sync.RWMutex
	runs     map[string]*Run
	children map[string][]string
	spans    map[string]trace.Span
}

// NewCollector creates a Collector.
func NewCollector(optFns ...func(o *Options)) *Collector {
	opts := Options{
		Enabled: true,
		Logger:  logging.NoOpLogger{},
		Now:     time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	return &Collector{
		enabled:  opts.Enabled,
		tracer:   opts.TracerProvider.Tracer(tracerName),
		stores:   opts.Stores,
		logger:   logging.OrNoOp(opts.Logger),
		now:      opts.Now,
		runs:     map[string]*Run{},
		children: map[string][]string{},
		spans:    map[string]trace.Span{},
	}
}

// StartRun opens a run below the current run of ctx and returns a context
// carrying the new run. When tracing is disabled globally or for ctx it
// returns ctx unchanged and NoopRunID.
func (c *Collector) StartRun(ctx context.Context, kind Kind, name string, inputs map[string]any, optFns ...func(o *StartOptions)) (context.Context, string) {
	if !c.enabled || Suppressed(ctx) {
		return ctx, NoopRunID
	}
	var so StartOptions
	for _, fn := range optFns {
		fn(&so)
	}

	id := so.RunID
	if id == "" {
		id = uuid.NewString()
	}
	parentID := CurrentRunID(ctx)

	run := &Run{
		ID:        id,
		Kind:      kind,
		Name:      name,
		StartTime: c.now(),
		Inputs:    maps.Clone(inputs),
		Extra:     maps.Clone(so.Extra),
	}

	spanCtx, span := c.tracer.Start(ctx, fmt.Sprintf("%s %s", kind, name), trace.WithAttributes(
		attribute.String("agentkit.run_id", id),
		attribute.String("agentkit.run_kind", string(kind)),
		attribute.String("agentkit.run_name", name),
	))

	c.mu.Lock()
	if parent, ok := c.runs[parentID]; ok {
		run.ParentID = parentID
		run.TraceID = parent.TraceID
		c.children[parentID] = append(c.children[parentID], id)
	} else {
		run.TraceID = ulid.Make().String()
	}
	c.runs[id] = run
	c.spans[id] = span
	c.mu.Unlock()

	c.logger.Debug("trace.run.start", "run_id", id, "kind", kind, "name", name, "parent_id", run.ParentID)
	return ContextWithRun(spanCtx, id), id
}

// EndRun closes runID with outputs or err. Closing an unknown or already
// closed run is logged and otherwise ignored; NoopRunID is ignored silently.
func (c *Collector) EndRun(ctx context.Context, runID string, outputs any, err error) {
	if runID == NoopRunID || runID == "" {
		return
	}

	c.mu.Lock()
	run, ok := c.runs[runID]
	if !ok || run.Closed() {
		c.mu.Unlock()
		c.logger.Warn("trace.run.end_ignored", "run_id", runID, "known", ok)
		return
	}
	end := c.now()
	run.EndTime = &end
	run.Outputs = normalizeOutputs(outputs)
	if err != nil {
		run.Error = err.Error()
	}
	closed := run.clone()
	span := c.spans[runID]
	delete(c.spans, runID)
	c.mu.Unlock()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	persistCtx := context.WithoutCancel(ctx)
	for _, s := range c.stores {
		if perr := s.Persist(persistCtx, closed); perr != nil {
			c.logger.Error("trace.run.persist_failed", "run_id", runID, "error", perr.Error())
		}
	}
	c.logger.Debug("trace.run.end", "run_id", runID, "duration_ms", closed.Duration().Milliseconds(), "error", closed.Error)
}

// Run returns a copy of the run with id.
func (c *Collector) Run(id string) (Run, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.runs[id]
	if !ok {
		return Run{}, false
	}
	return r.clone(), true
}

// Tree returns the run tree rooted at rootID.
func (c *Collector) Tree(rootID string) (*Tree, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.runs[rootID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, rootID)
	}
	return c.buildTree(rootID), nil
}

func (c *Collector) buildTree(id string) *Tree {
	node := &Tree{Run: c.runs[id].clone()}
	for _, childID := range c.children[id] {
		node.Children = append(node.Children, c.buildTree(childID))
	}
	sortByStart(node.Children)
	return node
}

// Reset drops every recorded run. Spans of runs still open are ended so the
// exporter does not leak them. Closed runs already handed to the Stores are
// unaffected.
func (c *Collector) Reset() {
	c.mu.Lock()
	spans := c.spans
	c.runs = map[string]*Run{}
	c.children = map[string][]string{}
	c.spans = map[string]trace.Span{}
	c.mu.Unlock()

	for _, span := range spans {
		span.End()
	}
	c.logger.Debug("trace.reset", "open_runs", len(spans))
}

// Len returns the number of recorded runs.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.runs)
}
