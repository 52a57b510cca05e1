package model

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentkit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userRequest(text string) Request {
	return Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, text)}}
}

func TestMockModel_GenerateOnce_CannedAndEcho(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	m.AddResponse("hello", "hi there")

	resp, err := GenerateOnce(context.Background(), m, userRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content.Text())

	resp, err = GenerateOnce(context.Background(), m, userRequest("other"))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Content.Text())
	assert.Len(t, m.Calls(), 2)
}

func TestMockModel_Script(t *testing.T) {
	boom := errors.New("rate limited")
	m := NewMockModel("mock-1", "mock").
		Script(ToolCallResponse(core.FunctionCall{ID: "1", Name: "search", Arguments: `{"q":"go"}`})).
		FailNext(boom)

	resp, err := GenerateOnce(context.Background(), m, userRequest("x"))
	require.NoError(t, err)
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Name)

	_, err = GenerateOnce(context.Background(), m, userRequest("x"))
	assert.ErrorIs(t, err, boom)
}

func TestMockModel_Streaming(t *testing.T) {
	m := NewMockModel("mock-1", "mock").Script(TextResponse("abc"))
	req := userRequest("x")
	req.Stream = true

	resp, err := GenerateOnce(context.Background(), m, req)
	require.NoError(t, err)
	assert.False(t, resp.Partial)
	assert.Equal(t, "abc", resp.Content.Text())
}

func TestDecodeStructured(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"score": map[string]any{"type": "number"}},
		"required":   []any{"score"},
	}

	v, err := DecodeStructured("```json\n{\"score\": 0.9}\n```", schema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"score": 0.9}, v)

	_, err = DecodeStructured("not json", schema)
	assert.ErrorIs(t, err, core.ErrStructuredOutput)

	_, err = DecodeStructured(`{"other": 1}`, schema)
	assert.ErrorIs(t, err, core.ErrStructuredOutput)
}

func TestToolResultText(t *testing.T) {
	assert.Equal(t, "error: boom", ToolResultText(core.FunctionResponse{Error: "boom"}))
	assert.Equal(t, "plain", ToolResultText(core.FunctionResponse{Response: "plain"}))
	assert.Equal(t, `{"n":1}`, ToolResultText(core.FunctionResponse{Response: map[string]any{"n": 1}}))
	assert.Empty(t, ToolResultText(core.FunctionResponse{}))
}
