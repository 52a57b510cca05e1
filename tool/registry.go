package tool

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// GlobalTag marks a tool that is attached to every agent.
const GlobalTag = "global"

// ErrInvalidTool is returned when registering a tool without a name or description.
var ErrInvalidTool = errors.New("invalid tool")

// Registry is the process-wide, mutex guarded table of named tools and their
// tags. Re-registering a name replaces the previous entry (last write wins)
// but keeps its original position in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	tags  map[string][]string // tool name -> tags
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: map[string]Tool{},
		tags:  map[string][]string{},
	}
}

// Register adds t under t.Name() with the given tags.
func (r *Registry) Register(t Tool, tags ...string) error {
	name := t.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTool)
	}
	if strings.TrimSpace(t.Description()) == "" {
		return fmt.Errorf("%w: tool %q has no description", ErrInvalidTool, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
	r.tags[name] = slices.Clone(tags)
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tags returns the tags of the named tool.
func (r *Registry) Tags(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.tags[name])
}

// Names lists registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// ByTags returns, in registration order, every tool whose tags intersect
// tags plus every tool tagged GlobalTag. Each tool appears at most once.
func (r *Registry) ByTags(tags []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Tool
	for _, name := range r.order {
		for _, tag := range r.tags[name] {
			if tag == GlobalTag || slices.Contains(tags, tag) {
				out = append(out, r.tools[name])
				break
			}
		}
	}
	return out
}
