package tool

import (
	"context"
	"errors"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/logging"
	"github.com/hupe1980/agentkit/model"
)

// Origin records how a tool entered a BoundSet.
type Origin string

const (
	OriginExplicit Origin = "explicit"
	OriginAgent    Origin = "agent"
	OriginDynamic  Origin = "dynamic"
)

// Bound is one entry of a BoundSet.
type Bound struct {
	Tool   Tool
	Origin Origin
}

// BoundSet is the ordered, name-unique tool list for one invocation.
type BoundSet struct {
	entries []Bound
	index   map[string]int
}

func newBoundSet() *BoundSet { return &BoundSet{index: map[string]int{}} }

// add appends t unless its name is already bound; first occurrence wins.
func (s *BoundSet) add(t Tool, origin Origin) bool {
	if _, dup := s.index[t.Name()]; dup {
		return false
	}
	s.index[t.Name()] = len(s.entries)
	s.entries = append(s.entries, Bound{Tool: t, Origin: origin})
	return true
}

// Len returns the number of bound tools.
func (s *BoundSet) Len() int { return len(s.entries) }

// Entries returns the bound tools in order.
func (s *BoundSet) Entries() []Bound { return append([]Bound(nil), s.entries...) }

// Names returns the bound tool names in order.
func (s *BoundSet) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Tool.Name()
	}
	return names
}

// Lookup returns the bound tool with name.
func (s *BoundSet) Lookup(name string) (Tool, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.entries[i].Tool, true
}

// Definitions converts the set into model tool definitions.
func (s *BoundSet) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, len(s.entries))
	for i, e := range s.entries {
		defs[i] = model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        e.Tool.Name(),
				Description: e.Tool.Description(),
				Parameters:  e.Tool.Parameters(),
			},
		}
	}
	return defs
}

// AgentLocator resolves agent names into invocables for child-agent binding.
type AgentLocator interface {
	LocateAgent(ctx context.Context, name string) (core.Invocable, error)
}

// BinderOptions configures a Binder.
type BinderOptions struct {
	Logger logging.Logger
}

// Binder resolves tool names, child agents and tags into a BoundSet.
type Binder struct {
	registry *Registry
	locator  AgentLocator
	logger   logging.Logger
}

// NewBinder creates a Binder. locator may be nil when no agent declares
// child agents.
func NewBinder(registry *Registry, locator AgentLocator, optFns ...func(o *BinderOptions)) *Binder {
	opts := BinderOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Binder{registry: registry, locator: locator, logger: logging.OrNoOp(opts.Logger)}
}

// Bind builds the tool set: explicit tools first, then child agents, then
// tag-matched and global tools. Unknown tool or agent names abort the bind.
// Disabled child agents are skipped.
func (b *Binder) Bind(ctx context.Context, toolNames, childAgents, tags []string) (*BoundSet, error) {
	set := newBoundSet()

	for _, name := range toolNames {
		t, ok := b.registry.Get(name)
		if !ok {
			return nil, core.NewAgentError("bind", "", core.ErrUnknownTool, name)
		}
		set.add(t, OriginExplicit)
	}

	for _, name := range childAgents {
		if b.locator == nil {
			return nil, core.NewAgentError("bind", name, core.ErrConfigNotFound, "no agent locator configured")
		}
		agent, err := b.locator.LocateAgent(ctx, name)
		if err != nil {
			if errors.Is(err, core.ErrAgentDisabled) {
				b.logger.Warn("tool.bind.child_skipped", "agent", name, "reason", "disabled")
				continue
			}
			return nil, err
		}
		set.add(NewAgentTool(agent), OriginAgent)
	}

	for _, t := range b.registry.ByTags(tags) {
		if !set.add(t, OriginDynamic) {
			b.logger.Debug("tool.bind.shadowed", "tool", t.Name())
		}
	}

	b.logger.Debug("tool.bind.done", "tools", set.Names())
	return set, nil
}
