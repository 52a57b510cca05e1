package tracing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type memStore struct {
	mu   sync.Mutex
	runs []Run
}

func (s *memStore) Persist(_ context.Context, r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, r)
	return nil
}

func TestCollector_NestedRunsLinkToParent(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	agentCtx, rootID := c.StartRun(ctx, KindAgent, "planner", map[string]any{"input": "plan"})
	modelCtx, modelID := c.StartRun(agentCtx, KindModel, "LLM: gpt-5.1", nil)
	assert.Equal(t, modelID, CurrentRunID(modelCtx))
	c.EndRun(modelCtx, modelID, "draft", nil)
	_, toolID := c.StartRun(agentCtx, KindTool, "search", nil)
	c.EndRun(agentCtx, toolID, map[string]any{"hits": 3}, nil)
	c.EndRun(agentCtx, rootID, "done", nil)

	tree, err := c.Tree(rootID)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Size())
	require.Len(t, tree.Children, 2)
	assert.Equal(t, modelID, tree.Children[0].Run.ID)
	assert.Equal(t, rootID, tree.Children[0].Run.ParentID)
	assert.Equal(t, tree.Run.TraceID, tree.Children[1].Run.TraceID)
	assert.Equal(t, map[string]any{"output": "draft"}, tree.Children[0].Run.Outputs)
	assert.Equal(t, map[string]any{"hits": 3}, tree.Children[1].Run.Outputs)
	assert.Empty(t, tree.Run.ParentID)
}

func TestCollector_ConcurrentBranchesKeepTheirParent(t *testing.T) {
	c := NewCollector()
	rootCtx, rootID := c.StartRun(context.Background(), KindAgent, "team", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			branchCtx, branchID := c.StartRun(rootCtx, KindAgent, "mapper", nil)
			_, leafID := c.StartRun(branchCtx, KindModel, "LLM: m", nil)
			c.EndRun(branchCtx, leafID, "x", nil)
			c.EndRun(rootCtx, branchID, "y", nil)
		}()
	}
	wg.Wait()
	c.EndRun(rootCtx, rootID, "z", nil)

	tree, err := c.Tree(rootID)
	require.NoError(t, err)
	require.Len(t, tree.Children, 10)
	for _, branch := range tree.Children {
		require.Len(t, branch.Children, 1)
		assert.Equal(t, branch.Run.ID, branch.Children[0].Run.ParentID)
	}
	tree.Walk(func(n *Tree, _ int) {
		for _, child := range n.Children {
			assert.False(t, child.Run.EndTime.After(*n.Run.EndTime))
		}
	})
}

func TestCollector_EndRunRecordsErrorOnce(t *testing.T) {
	store := &memStore{}
	c := NewCollector(func(o *Options) { o.Stores = []Store{store} })
	ctx, id := c.StartRun(context.Background(), KindAgent, "a", nil)

	c.EndRun(ctx, id, nil, errors.New("boom"))
	c.EndRun(ctx, id, "late", nil)

	run, ok := c.Run(id)
	require.True(t, ok)
	assert.Equal(t, "boom", run.Error)
	assert.Nil(t, run.Outputs)
	require.Len(t, store.runs, 1)
	assert.Equal(t, id, store.runs[0].ID)
}

func TestCollector_DisabledAndSuppressed(t *testing.T) {
	off := NewCollector(func(o *Options) { o.Enabled = false })
	ctx, id := off.StartRun(context.Background(), KindAgent, "a", nil)
	assert.Equal(t, NoopRunID, id)
	off.EndRun(ctx, id, "x", nil)
	assert.Equal(t, 0, off.Len())

	on := NewCollector()
	ctx, id = on.StartRun(Suppress(context.Background()), KindAgent, "a", nil)
	assert.Equal(t, NoopRunID, id)
	_, child := on.StartRun(ctx, KindModel, "m", nil)
	assert.Equal(t, NoopRunID, child)
	assert.Equal(t, 0, on.Len())
}

func TestCollector_ForcedRunIDAndClock(t *testing.T) {
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCollector(func(o *Options) {
		o.Now = func() time.Time { tick = tick.Add(time.Second); return tick }
	})
	ctx, id := c.StartRun(context.Background(), KindAgent, "a", nil, func(o *StartOptions) {
		o.RunID = "inv-1"
		o.Extra = map[string]any{"variant": "a_v2"}
	})
	c.EndRun(ctx, id, "ok", nil)

	run, ok := c.Run("inv-1")
	require.True(t, ok)
	assert.Equal(t, time.Second, run.Duration())
	assert.Equal(t, "a_v2", run.Extra["variant"])

	_, err := c.Tree("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestCollector_Reset(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	c := NewCollector(func(o *Options) { o.TracerProvider = tp })
	ctx := context.Background()

	agentCtx, rootID := c.StartRun(ctx, KindAgent, "planner", nil)
	_, toolID := c.StartRun(agentCtx, KindTool, "search", nil)
	c.EndRun(agentCtx, toolID, "hit", nil)
	require.Equal(t, 2, c.Len())

	c.Reset()

	assert.Equal(t, 0, c.Len())
	_, err := c.Tree(rootID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.Len(t, exp.GetSpans(), 2, "open root span is ended")

	// late EndRun of a dropped run is ignored
	c.EndRun(agentCtx, rootID, "done", nil)
	assert.Equal(t, 0, c.Len())
}

func TestCollector_MirrorsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	c := NewCollector(func(o *Options) { o.TracerProvider = tp })

	ctx, rootID := c.StartRun(context.Background(), KindAgent, "a", nil)
	_, toolID := c.StartRun(ctx, KindTool, "search", nil)
	c.EndRun(ctx, toolID, nil, errors.New("timeout"))
	c.EndRun(ctx, rootID, "ok", nil)

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "tool search", spans[0].Name)
	assert.Equal(t, "Error", spans[0].Status.Code.String())
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func TestSetupExporter(t *testing.T) {
	tp, shutdown, err := SetupExporter(context.Background(), ExporterConfig{Exporter: "none"})
	require.NoError(t, err)
	assert.NotNil(t, tp)
	assert.NoError(t, shutdown(context.Background()))

	_, _, err = SetupExporter(context.Background(), ExporterConfig{Exporter: "jaeger"})
	assert.Error(t, err)
}
