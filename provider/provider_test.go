package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		in, provider, name string
	}{
		{"openai:gpt-4o", OpenAI, "gpt-4o"},
		{"claude:claude-3-5-sonnet", Anthropic, "claude-3-5-sonnet"},
		{"deepseek:deepseek-chat", DeepSeek, "deepseek-chat"},
		{"gemini-1.5-pro", Gemini, "gemini-1.5-pro"},
		{"claude-3-haiku", Anthropic, "claude-3-haiku"},
		{"qwen-max", Qwen, "qwen-max"},
		{"gpt-4o-mini", OpenAI, "gpt-4o-mini"},
		{"ollama:llama3:8b", "ollama", "llama3:8b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, n := ParseIdentifier(tt.in)
			assert.Equal(t, tt.provider, p)
			assert.Equal(t, tt.name, n)
		})
	}
}

func noEnv(string) (string, bool) { return "", false }

func TestFactory_Create(t *testing.T) {
	f := NewFactory(func(o *FactoryOptions) {
		o.Credentials = Credentials{APIKeys: map[string]string{"openai": "sk-test", "anthropic": "ak-test"}}
		o.LookupEnv = noEnv
	})

	m, err := f.Create("openai:gpt-4o-mini", Options{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, model.Info{Name: "gpt-4o-mini", Provider: OpenAI, SupportsTools: true}, m.Info())

	m, err = f.Create("claude-3-5-haiku-latest", Options{})
	require.NoError(t, err)
	assert.Equal(t, Anthropic, m.Info().Provider)
}

func TestFactory_Create_Errors(t *testing.T) {
	f := NewFactory(func(o *FactoryOptions) { o.LookupEnv = noEnv })

	_, err := f.Create("ollama:llama3", Options{})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = f.Create("deepseek-chat", Options{Profile: "team-a"})
	require.ErrorIs(t, err, ErrCredentialMissing)
	assert.Contains(t, err.Error(), "deepseek")
	assert.Contains(t, err.Error(), "team-a")
}

func TestFactory_CredentialLookupOrder(t *testing.T) {
	f := NewFactory(func(o *FactoryOptions) {
		o.Credentials = Credentials{APIKeys: map[string]string{
			"team-a.openai": "scoped",
			"team-b":        "profile",
			"openai":        "plain",
		}}
		o.LookupEnv = func(k string) (string, bool) {
			if k == "DEEPSEEK_API_KEY" {
				return "from-env", true
			}
			return "", false
		}
	})

	key, err := f.apiKey(OpenAI, "team-a", "OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "scoped", key)

	key, _ = f.apiKey(OpenAI, "team-b", "OPENAI_API_KEY")
	assert.Equal(t, "profile", key)

	key, _ = f.apiKey(OpenAI, "", "OPENAI_API_KEY")
	assert.Equal(t, "plain", key)

	key, _ = f.apiKey(DeepSeek, "", "DEEPSEEK_API_KEY")
	assert.Equal(t, "from-env", key)
}

func TestFactory_SharesBreakerPerProvider(t *testing.T) {
	f := NewFactory()
	assert.Same(t, f.breaker(OpenAI), f.breaker(OpenAI))
	assert.NotSame(t, f.breaker(OpenAI), f.breaker(Anthropic))
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := model.NewMockModel("m", "mock")
	inner.FailNext(errors.New("503")).FailNext(errors.New("503"))
	inner.Script(model.TextResponse("recovered"))

	b := NewBreaker("mock", func(s *BreakerSettings) { s.MaxFailures = 2 })
	m := b.Wrap(inner)
	ctx := context.Background()

	for range 2 {
		_, err := model.GenerateOnce(ctx, m, model.Request{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := model.GenerateOnce(ctx, m, model.Request{})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, inner.Calls(), 2)
	assert.Equal(t, "mock", m.Info().Provider)
}

func TestBreaker_IgnoresCancellation(t *testing.T) {
	inner := model.NewMockModel("m", "mock")
	b := NewBreaker("mock", func(s *BreakerSettings) { s.MaxFailures = 1 })
	m := b.Wrap(inner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := model.Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")}}
	_, _ = model.GenerateOnce(ctx, m, req)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
