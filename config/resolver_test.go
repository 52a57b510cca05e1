package config

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentkit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func centralWith(cfgs ...core.AgentConfig) CentralSource {
	return CentralFunc(func(_ context.Context, name string) (*core.AgentConfig, error) {
		for _, c := range cfgs {
			if c.Name == name {
				c := c.Clone()
				return &c, nil
			}
		}
		return nil, nil
	})
}

func agent(name string, mutate func(c *core.AgentConfig)) core.AgentConfig {
	c := core.DefaultAgentConfig(name)
	c.SystemPrompt = "You are " + name
	if mutate != nil {
		mutate(&c)
	}
	return c
}

func TestResolver_Resolve_CentralWithoutOverrides(t *testing.T) {
	central := agent("planner", func(c *core.AgentConfig) {
		c.Capability = core.CapabilityReasoning
		c.Tools = []string{"search"}
	})
	local := NewLocalRegistry()
	require.NoError(t, local.Register(agent("planner", func(c *core.AgentConfig) { c.Temperature = 0.1 })))
	r := NewResolver(func(o *ResolverOptions) {
		o.Central = centralWith(central)
		o.Local = local
	})

	got, err := r.Resolve(context.Background(), "planner", core.Overrides{})

	require.NoError(t, err)
	assert.Equal(t, central, got)
}

func TestResolver_Resolve_LocalWithTemperatureOverride(t *testing.T) {
	local := NewLocalRegistry()
	base := agent("writer", func(c *core.AgentConfig) { c.Tags = []string{"docs"} })
	require.NoError(t, local.Register(base))
	r := NewResolver(func(o *ResolverOptions) { o.Local = local })

	got, err := r.Resolve(context.Background(), "writer", core.Overrides{Temperature: core.Ptr(0.3)})

	require.NoError(t, err)
	assert.Equal(t, 0.3, got.Temperature)
	got.Temperature = base.Temperature
	assert.Equal(t, base, got)
}

func TestResolver_Resolve_Missing(t *testing.T) {
	r := NewResolver()

	_, err := r.Resolve(context.Background(), "missing", core.Overrides{})
	assert.ErrorIs(t, err, core.ErrConfigNotFound)

	got, err := r.Resolve(context.Background(), "missing", core.Overrides{Name: core.Ptr("missing")})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultAgentConfig("missing"), got)
}

func TestResolver_Resolve_PersistentThenPerCall(t *testing.T) {
	local := NewLocalRegistry()
	require.NoError(t, local.Register(agent("a", nil)))
	r := NewResolver(func(o *ResolverOptions) { o.Local = local })

	r.Runtime().Update("a", core.Overrides{Enabled: core.Ptr(false), Temperature: core.Ptr(0.2)})
	got, err := r.Resolve(context.Background(), "a", core.Overrides{Temperature: core.Ptr(0.9)})
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, 0.9, got.Temperature)

	r.Runtime().Reset("a")
	got, err = r.Resolve(context.Background(), "a", core.Overrides{})
	require.NoError(t, err)
	assert.True(t, got.Enabled)
}

func TestResolver_Resolve_RuntimeOverridesCentral(t *testing.T) {
	r := NewResolver(func(o *ResolverOptions) { o.Central = centralWith(agent("a", nil)) })
	r.Runtime().Update("a", core.Overrides{Enabled: core.Ptr(false)})

	got, err := r.Resolve(context.Background(), "a", core.Overrides{})

	require.NoError(t, err)
	assert.False(t, got.Enabled)
}

func TestResolver_Resolve_CentralErrorFallsBackToLocal(t *testing.T) {
	local := NewLocalRegistry()
	require.NoError(t, local.Register(agent("a", nil)))
	r := NewResolver(func(o *ResolverOptions) {
		o.Central = CentralFunc(func(context.Context, string) (*core.AgentConfig, error) {
			return nil, errors.New("unreachable")
		})
		o.Local = local
	})

	got, err := r.Resolve(context.Background(), "a", core.Overrides{})

	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
}

func TestResolver_Resolve_WorkflowValidatedBeforeUse(t *testing.T) {
	r := NewResolver()

	_, err := r.Resolve(context.Background(), "team", core.Overrides{
		Name:      core.Ptr("team"),
		AgentType: core.Ptr(core.AgentTypeWorkflow),
		Workflow:  &core.WorkflowConfig{Type: core.WorkflowMapReduce, Mapper: "m"},
	})

	assert.ErrorIs(t, err, core.ErrWorkflowConfig)
}

func TestResolver_Resolve_InvalidOverride(t *testing.T) {
	r := NewResolver()

	_, err := r.Resolve(context.Background(), "x", core.Overrides{Name: core.Ptr("x"), Temperature: core.Ptr(3.0)})

	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestLocalRegistry_Register(t *testing.T) {
	l := NewLocalRegistry()

	assert.ErrorIs(t, l.Register(core.AgentConfig{}), core.ErrInvalidConfig)
	require.NoError(t, l.Register(agent("b", nil)))
	require.NoError(t, l.Register(agent("a", nil)))
	assert.Equal(t, []string{"a", "b"}, l.Names())
	assert.Nil(t, l.Get("c"))

	got := l.Get("a")
	got.Tags = append(got.Tags, "mutated")
	assert.Empty(t, l.Get("a").Tags)
}

func TestMerge_PriorityOrder(t *testing.T) {
	central := agent("a", func(c *core.AgentConfig) { c.Description = "central" })
	local := agent("a", func(c *core.AgentConfig) { c.Description = "local" })

	got, err := Merge("a", core.Overrides{}, &central, &local)
	require.NoError(t, err)
	assert.Equal(t, "central", got.Description)

	got, err = Merge("a", core.Overrides{}, nil, &local)
	require.NoError(t, err)
	assert.Equal(t, "local", got.Description)
}
