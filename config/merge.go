package config

import "github.com/hupe1980/agentkit/core"

// Merge combines an ordered list of optional sources (highest priority
// first) with field-level overrides. The first non-nil source is the base;
// every field supplied by overrides replaces the base value. Without any
// source a configuration is synthesized from defaults, which requires
// overrides to supply the agent name.
func Merge(name string, overrides core.Overrides, sources ...*core.AgentConfig) (core.AgentConfig, error) {
	for _, src := range sources {
		if src != nil {
			return overrides.Apply(*src), nil
		}
	}
	if overrides.Name == nil || *overrides.Name == "" {
		return core.AgentConfig{}, core.NewAgentError("resolve", name, core.ErrConfigNotFound, "no configuration found for agent: "+name)
	}
	return overrides.Apply(core.DefaultAgentConfig(*overrides.Name)), nil
}
