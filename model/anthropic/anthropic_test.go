package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
)

func TestBuildMessages_ToolResultsAreUserMessages(t *testing.T) {
	msgs := buildMessages([]core.Content{
		core.NewTextContent(core.RoleSystem, "sys"),
		core.NewTextContent(core.RoleUser, "hi"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t1", Name: "search", Arguments: `{"q":"x"}`}}}},
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "t1", Response: "ok"}}}},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "t1", msgs[2].Content[0].OfToolResult.ToolUseID)
}

func TestSystemBlocks_ResponseFormat(t *testing.T) {
	blocks := systemBlocks([]core.Content{core.NewTextContent(core.RoleSystem, "be terse")}, &model.ResponseFormat{
		Name: "output", Schema: map[string]any{"type": "object"},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "be terse", blocks[0].Text)
	assert.Contains(t, blocks[1].Text, `{"type":"object"}`)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{Function: model.FunctionDefinition{
		Name:        "search",
		Description: "web search",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"q": map[string]any{"type": "string"}},
			"required":   []any{"q"},
		},
	}}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "search", tools[0].OfTool.Name)
	assert.Equal(t, []string{"q"}, tools[0].OfTool.InputSchema.Required)
	assert.Equal(t, "web search", tools[0].OfTool.Description.Value)
}

func TestInfo(t *testing.T) {
	m := NewModelFromClient(nil, func(o *Options) { o.Model = "claude-3-5-haiku-latest" })
	assert.Equal(t, "anthropic", m.Info().Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", m.Info().Name)
}
