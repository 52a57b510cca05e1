package tool

import (
	"context"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/internal/util"
)

// AgentTool exposes a child agent as a tool. The model sees the agent's
// description and declared argument schema; calling it invokes the agent
// and returns its result value.
type AgentTool struct {
	agent core.Invocable
}

// NewAgentTool wraps agent.
func NewAgentTool(agent core.Invocable) *AgentTool {
	return &AgentTool{agent: agent}
}

// Name returns the agent name.
func (t *AgentTool) Name() string { return t.agent.Name() }

// Description returns the agent description, or "Agent <name>" when unset.
func (t *AgentTool) Description() string {
	if d := t.agent.Description(); d != "" {
		return d
	}
	return "Agent " + t.agent.Name()
}

// Parameters returns the agent's declared input schema, defaulting to a
// single string "input" argument.
func (t *AgentTool) Parameters() map[string]any {
	if p := t.agent.Parameters(); len(p) > 0 {
		return p
	}
	return DefaultAgentParameters()
}

// Call invokes the agent.
func (t *AgentTool) Call(ctx context.Context, args map[string]any) (any, error) {
	res, err := t.agent.Invoke(ctx, args)
	if err != nil {
		return nil, err
	}
	return res.Value(), nil
}

// DefaultAgentParameters is the schema of an agent without declared methods.
func DefaultAgentParameters() map[string]any {
	return util.ObjectSchema(map[string]any{
		"input": map[string]any{"type": "string", "description": "Task or question for the agent"},
	}, "input")
}
