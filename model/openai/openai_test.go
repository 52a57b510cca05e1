package openai

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
)

func TestBuildMessages_ToolRoundTrip(t *testing.T) {
	contents := []core.Content{
		core.NewTextContent(core.RoleSystem, "sys"),
		core.NewTextContent(core.RoleUser, "hi"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "search", Arguments: `{"q":"x"}`}}}},
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "search", Error: "down"}}}},
	}

	msgs := buildMessages(contents)
	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Equal(t, "search", msgs[2].OfAssistant.ToolCalls[0].Function.Name)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
}

func TestBuildParams(t *testing.T) {
	m := NewModelFromClient(nil, func(o *Options) {
		o.Model = "deepseek-chat"
		o.MaxCompletionTokens = 256
		o.Provider = "deepseek"
	})
	schema := map[string]any{"type": "object"}
	params := m.buildParams(model.Request{
		ResponseFormat: &model.ResponseFormat{Name: "output", Schema: schema},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name: "search", Description: "web search", Parameters: schema,
		}}},
	}, nil)

	assert.Equal(t, openai.ChatModel("deepseek-chat"), params.Model)
	assert.Equal(t, int64(256), params.MaxCompletionTokens.Value)
	require.NotNil(t, params.ResponseFormat.OfJSONSchema)
	assert.Equal(t, "output", params.ResponseFormat.OfJSONSchema.JSONSchema.Name)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "search", params.Tools[0].Function.Name)
	assert.Equal(t, "deepseek", m.Info().Provider)
}

func TestFinalChunk_OrdersToolCalls(t *testing.T) {
	resp := finalChunk("", map[int64]*aggCall{
		1: {id: "b", name: "second"},
		0: {id: "a", name: "first"},
	}, "tool_calls")
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].Name)
	assert.Equal(t, "second", calls[1].Name)
}
