package router

import (
	"sync"
	"testing"

	"github.com/hupe1980/agentkit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Resolve_Defaults(t *testing.T) {
	r := New()

	id, err := r.Resolve(core.CapabilityFast, "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-mini", id)
}

func TestRouter_Resolve_OverrideWins(t *testing.T) {
	r := New()
	r.UpdateMapping(core.CapabilitySmart, "anthropic:claude-opus")

	id, err := r.Resolve(core.CapabilitySmart, "x:y")
	require.NoError(t, err)
	assert.Equal(t, "x:y", id)

	// override wins even for unknown capabilities
	id, err = r.Resolve("telepathy", "x:y")
	require.NoError(t, err)
	assert.Equal(t, "x:y", id)
}

func TestRouter_Resolve_UnknownCapability(t *testing.T) {
	_, err := New().Resolve("telepathy", "")
	assert.ErrorIs(t, err, core.ErrUnknownCapability)
}

func TestRouter_UpdateMapping(t *testing.T) {
	r := New(func(o *Options) {
		o.Routes = map[core.Capability]string{core.CapabilityCoding: "deepseek:deepseek-coder"}
	})

	id, _ := r.Resolve(core.CapabilityCoding, "")
	assert.Equal(t, "deepseek:deepseek-coder", id)

	r.UpdateMapping(core.CapabilityCoding, "qwen:qwen-coder")
	id, _ = r.Resolve(core.CapabilityCoding, "")
	assert.Equal(t, "qwen:qwen-coder", id)

	snapshot := r.Mappings()
	snapshot[core.CapabilityCoding] = "mutated"
	id, _ = r.Resolve(core.CapabilityCoding, "")
	assert.Equal(t, "qwen:qwen-coder", id)
}

func TestRouter_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.UpdateMapping(core.CapabilityFast, "openai:gpt-5-mini")
		}()
		go func() {
			defer wg.Done()
			_, err := r.Resolve(core.CapabilityFast, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
