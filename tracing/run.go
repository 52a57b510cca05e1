package tracing

import (
	"maps"
	"slices"
	"time"
)

// Kind classifies a run.
type Kind string

const (
	KindAgent Kind = "agent"
	KindTool  Kind = "tool"
	KindModel Kind = "model"
)

// NoopRunID is returned by StartRun when tracing is disabled. EndRun
// ignores it.
const NoopRunID = "noop"

// Run is one recorded span of the invocation tree. A run is closed exactly
// once; EndTime and Outputs stay nil until then.
type Run struct {
	ID        string         `json:"id"`
	TraceID   string         `json:"trace_id"`
	Kind      Kind           `json:"kind"`
	Name      string         `json:"name"`
	ParentID  string         `json:"parent_id,omitempty"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	Error     string         `json:"error,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Closed reports whether EndRun has been called for the run.
func (r Run) Closed() bool { return r.EndTime != nil }

// Duration returns the elapsed time of a closed run, or zero.
func (r Run) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

func (r Run) clone() Run {
	r.Inputs = maps.Clone(r.Inputs)
	r.Outputs = maps.Clone(r.Outputs)
	r.Extra = maps.Clone(r.Extra)
	if r.EndTime != nil {
		t := *r.EndTime
		r.EndTime = &t
	}
	return r
}

// Tree is a run with its descendants; children are ordered by start time.
type Tree struct {
	Run      Run     `json:"run"`
	Children []*Tree `json:"children,omitempty"`
}

// Walk visits every node depth-first, parents before children.
func (t *Tree) Walk(fn func(node *Tree, depth int)) {
	var walk func(n *Tree, d int)
	walk = func(n *Tree, d int) {
		fn(n, d)
		for _, c := range n.Children {
			walk(c, d+1)
		}
	}
	walk(t, 0)
}

// Size returns the number of runs in the tree.
func (t *Tree) Size() int {
	n := 0
	t.Walk(func(*Tree, int) { n++ })
	return n
}

func sortByStart(nodes []*Tree) {
	slices.SortStableFunc(nodes, func(a, b *Tree) int { return a.Run.StartTime.Compare(b.Run.StartTime) })
}

// normalizeOutputs wraps non-map outputs as {"output": v}.
func normalizeOutputs(v any) map[string]any {
	switch o := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return maps.Clone(o)
	default:
		return map[string]any{"output": v}
	}
}
