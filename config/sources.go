package config

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/hupe1980/agentkit/core"
)

// CentralSource is the remote / authoritative configuration store. A nil
// config with a nil error means "not configured".
type CentralSource interface {
	AgentConfig(ctx context.Context, name string) (*core.AgentConfig, error)
}

// CentralFunc adapts a function to CentralSource.
type CentralFunc func(ctx context.Context, name string) (*core.AgentConfig, error)

// AgentConfig implements CentralSource.
func (f CentralFunc) AgentConfig(ctx context.Context, name string) (*core.AgentConfig, error) {
	return f(ctx, name)
}

// NoCentral is a CentralSource that never has a configuration.
type NoCentral struct{}

// AgentConfig implements CentralSource.
func (NoCentral) AgentConfig(context.Context, string) (*core.AgentConfig, error) { return nil, nil }

// LocalRegistry holds declared (and runtime registered virtual) agent
// configurations.
type LocalRegistry struct {
	mu      sync.RWMutex
	configs map[string]core.AgentConfig
}

// NewLocalRegistry creates an empty LocalRegistry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{configs: map[string]core.AgentConfig{}}
}

// Register validates cfg and stores a copy, replacing any previous entry.
func (r *LocalRegistry) Register(cfg core.AgentConfig) error {
	if err := core.Validate(cfg).Err(); err != nil {
		return err
	}
	if err := core.ValidateWorkflow(cfg); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg.Clone()
	return nil
}

// Get returns a copy of the named configuration, or nil.
func (r *LocalRegistry) Get(name string) *core.AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	if !ok {
		return nil
	}
	c := cfg.Clone()
	return &c
}

// Names lists registered agents, sorted.
func (r *LocalRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.configs))
}

// RuntimeStore keeps persistent per-agent overrides set through admin
// operations (UpdateAgentConfig, SetAgentEnabled).
type RuntimeStore struct {
	mu        sync.RWMutex
	overrides map[string]core.Overrides
}

// NewRuntimeStore creates an empty RuntimeStore.
func NewRuntimeStore() *RuntimeStore {
	return &RuntimeStore{overrides: map[string]core.Overrides{}}
}

// Update merges o into the stored overrides of name.
func (s *RuntimeStore) Update(name string, o core.Overrides) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[name] = s.overrides[name].Merge(o)
}

// Reset drops every stored override of name.
func (s *RuntimeStore) Reset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, name)
}

// Get returns the stored overrides of name.
func (s *RuntimeStore) Get(name string) core.Overrides {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overrides[name]
}
