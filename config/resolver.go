// Package config resolves the effective configuration of an agent from its
// sources: a central (authoritative) source, the local registry of declared
// and virtual agents, and runtime overrides. It also loads process Settings
// from the environment and declarative YAML documents from disk.
package config

import (
	"context"
	"time"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/logging"
)

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	Central CentralSource
	Local   *LocalRegistry
	Runtime *RuntimeStore
	Logger  logging.Logger
}

// Resolver merges central > local configuration with runtime overrides.
// Nothing is cached: every call reads the sources again so enable/disable
// changes are visible immediately.
type Resolver struct {
	central CentralSource
	local   *LocalRegistry
	runtime *RuntimeStore
	logger  logging.Logger
}

// NewResolver creates a Resolver. Unset sources default to empty ones.
func NewResolver(optFns ...func(o *ResolverOptions)) *Resolver {
	opts := ResolverOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Central == nil {
		opts.Central = NoCentral{}
	}
	if opts.Local == nil {
		opts.Local = NewLocalRegistry()
	}
	if opts.Runtime == nil {
		opts.Runtime = NewRuntimeStore()
	}
	return &Resolver{
		central: opts.Central,
		local:   opts.Local,
		runtime: opts.Runtime,
		logger:  logging.OrNoOp(opts.Logger),
	}
}

// Local returns the local registry.
func (r *Resolver) Local() *LocalRegistry { return r.local }

// Runtime returns the persistent runtime override store.
func (r *Resolver) Runtime() *RuntimeStore { return r.runtime }

// Resolve returns the effective configuration of name. perCall overrides
// are layered on top of the persistent runtime overrides. A failing central
// source is logged and treated as "not configured".
func (r *Resolver) Resolve(ctx context.Context, name string, perCall core.Overrides) (core.AgentConfig, error) {
	start := time.Now()

	central, err := r.central.AgentConfig(ctx, name)
	if err != nil {
		r.logger.Warn("config.central.error", "agent", name, "error", err.Error())
		central = nil
	}
	local := r.local.Get(name)
	overrides := r.runtime.Get(name).Merge(perCall)

	cfg, err := Merge(name, overrides, central, local)
	if err != nil {
		return core.AgentConfig{}, err
	}

	report := core.Validate(cfg)
	for _, w := range report.Warnings() {
		r.logger.Debug("config.validation.warning", "agent", cfg.Name, "field", w.Field, "message", w.Message)
	}
	if err := report.Err(); err != nil {
		return core.AgentConfig{}, err
	}
	if err := core.ValidateWorkflow(cfg); err != nil {
		return core.AgentConfig{}, err
	}

	source := "synthesized"
	switch {
	case central != nil:
		source = "central"
	case local != nil:
		source = "local"
	}
	r.logger.Debug("config.resolved", "agent", cfg.Name, "source", source, "duration_ms", time.Since(start).Milliseconds())
	return cfg, nil
}
