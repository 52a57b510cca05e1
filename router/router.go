// Package router maps abstract capabilities to concrete model identifiers.
//
// Identifiers are "provider:model" strings or bare model names; the router
// never validates provider names, it only performs the lookup. The table is
// process-wide mutable state guarded by a RWMutex: updates are last-write-wins
// and take effect for every later resolution.
package router

import (
	"maps"
	"sync"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/logging"
)

// DefaultRoutes is the initial capability table.
var DefaultRoutes = map[core.Capability]string{
	core.CapabilityFast:      "gpt-5-mini",
	core.CapabilitySmart:     "gpt-5.1",
	core.CapabilityReasoning: "gemini-3-pro",
	core.CapabilityVision:    "gpt-4o",
	core.CapabilityCoding:    "claude-3-5-sonnet",
}

// Options configures a Router.
type Options struct {
	// Routes seeds the table; entries override DefaultRoutes.
	Routes map[core.Capability]string
	Logger logging.Logger
}

// Router resolves capabilities to model identifiers.
type Router struct {
	mu     sync.RWMutex
	routes map[core.Capability]string
	logger logging.Logger
}

// New creates a Router seeded with DefaultRoutes.
func New(optFns ...func(o *Options)) *Router {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	routes := maps.Clone(DefaultRoutes)
	maps.Copy(routes, opts.Routes)
	return &Router{routes: routes, logger: logging.OrNoOp(opts.Logger)}
}

// Resolve returns override when non-empty, else the identifier routed for
// capability.
func (r *Router) Resolve(capability core.Capability, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	r.mu.RLock()
	id, ok := r.routes[capability]
	r.mu.RUnlock()
	if !ok {
		return "", core.NewAgentError("route", "", core.ErrUnknownCapability, string(capability))
	}
	return id, nil
}

// UpdateMapping replaces the identifier for capability.
func (r *Router) UpdateMapping(capability core.Capability, identifier string) {
	r.mu.Lock()
	prev := r.routes[capability]
	r.routes[capability] = identifier
	r.mu.Unlock()
	r.logger.Info("router.mapping.updated", "capability", capability, "from", prev, "to", identifier)
}

// Mappings returns a snapshot of the table.
func (r *Router) Mappings() map[core.Capability]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.routes)
}
