// Package provider turns model identifiers ("provider:model" or a bare model
// name) into model.Model instances with credentials, base URLs, timeouts and
// a per-provider circuit breaker applied.
package provider

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentkit/logging"
	"github.com/hupe1980/agentkit/model"
	"github.com/hupe1980/agentkit/model/anthropic"
	"github.com/hupe1980/agentkit/model/openai"
)

var (
	// ErrCredentialMissing is returned when no API key is configured for a
	// provider/profile.
	ErrCredentialMissing = errors.New("api key not found")
	// ErrUnsupportedProvider is returned for unknown provider names.
	ErrUnsupportedProvider = errors.New("unknown llm provider")
)

// Provider names.
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	DeepSeek  = "deepseek"
	Qwen      = "qwen"
	Gemini    = "gemini"
)

// DefaultTimeout is the request timeout applied to every provider client.
const DefaultTimeout = 60 * time.Second

type kind int

const (
	kindOpenAI kind = iota
	kindAnthropic
)

type providerInfo struct {
	kind    kind
	envVar  string
	baseURL string
}

var providers = map[string]providerInfo{
	OpenAI:    {kind: kindOpenAI, envVar: "OPENAI_API_KEY"},
	Anthropic: {kind: kindAnthropic, envVar: "ANTHROPIC_API_KEY"},
	DeepSeek:  {kind: kindOpenAI, envVar: "DEEPSEEK_API_KEY", baseURL: "https://api.deepseek.com/v1"},
	Qwen:      {kind: kindOpenAI, envVar: "DASHSCOPE_API_KEY", baseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1"},
	Gemini:    {kind: kindOpenAI, envVar: "GEMINI_API_KEY", baseURL: "https://generativelanguage.googleapis.com/v1beta/openai/"},
}

var aliases = map[string]string{
	"claude": Anthropic,
	"google": Gemini,
}

// ParseIdentifier splits "provider:model" on the first colon. A bare model
// name yields the detected provider.
func ParseIdentifier(identifier string) (provider, name string) {
	if p, n, ok := strings.Cut(identifier, ":"); ok && p != "" {
		return canonical(p), n
	}
	return DetectProvider(identifier), identifier
}

// DetectProvider infers the provider from a model name; the first match wins
// and openai is the fallback.
func DetectProvider(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "gemini"):
		return Gemini
	case strings.Contains(lower, "claude"), strings.Contains(lower, "anthropic"):
		return Anthropic
	case strings.Contains(lower, "deepseek"):
		return DeepSeek
	case strings.Contains(lower, "qwen"):
		return Qwen
	default:
		return OpenAI
	}
}

func canonical(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if a, ok := aliases[p]; ok {
		return a
	}
	return p
}

// Credentials hold API keys and base URLs keyed by provider, by profile or
// by "profile.provider".
type Credentials struct {
	APIKeys  map[string]string
	BaseURLs map[string]string
}

// Options tune one created model.
type Options struct {
	Temperature float64
	// MaxTokens is the completion limit; 0 keeps the provider default.
	MaxTokens int
	// Profile selects a credential profile.
	Profile string
}

// Creator builds models from identifiers.
type Creator interface {
	Create(identifier string, opts Options) (model.Model, error)
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc func(identifier string, opts Options) (model.Model, error)

// Create implements Creator.
func (f CreatorFunc) Create(identifier string, opts Options) (model.Model, error) {
	return f(identifier, opts)
}

// FactoryOptions configures a Factory.
type FactoryOptions struct {
	Credentials Credentials
	Timeout     time.Duration
	Breaker     BreakerSettings
	Logger      logging.Logger
	// LookupEnv reads fallback API keys. Defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Factory is the default Creator backed by the OpenAI and Anthropic SDKs.
// Models of the same provider share one circuit breaker.
type Factory struct {
	opts FactoryOptions

	mu       sync.Mutex
	breakers map[string]*Breaker
}

var _ Creator = (*Factory)(nil)

// NewFactory creates a Factory.
func NewFactory(optFns ...func(o *FactoryOptions)) *Factory {
	opts := FactoryOptions{
		Timeout:   DefaultTimeout,
		LookupEnv: os.LookupEnv,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Factory{opts: opts, breakers: map[string]*Breaker{}}
}

// Create implements Creator.
func (f *Factory) Create(identifier string, opts Options) (model.Model, error) {
	prov, name := ParseIdentifier(identifier)
	sp, ok := providers[prov]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, prov)
	}
	if name == "" {
		return nil, fmt.Errorf("empty model name in identifier %q", identifier)
	}

	key, err := f.apiKey(prov, opts.Profile, sp.envVar)
	if err != nil {
		return nil, err
	}
	baseURL := f.lookup(f.opts.Credentials.BaseURLs, prov, opts.Profile)
	if baseURL == "" {
		baseURL = sp.baseURL
	}

	var m model.Model
	switch sp.kind {
	case kindAnthropic:
		m = anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = name
			o.Temperature = opts.Temperature
			o.MaxTokens = int64(opts.MaxTokens)
			o.APIKey = key
			o.BaseURL = baseURL
			o.Timeout = f.opts.Timeout
		})
	default:
		m = openai.NewModel(func(o *openai.Options) {
			o.Model = name
			o.Temperature = opts.Temperature
			o.MaxCompletionTokens = int64(opts.MaxTokens)
			o.APIKey = key
			o.BaseURL = baseURL
			o.Timeout = f.opts.Timeout
			o.Provider = prov
		})
	}

	f.opts.Logger.Debug("provider.model.created", "provider", prov, "model", name, "profile", opts.Profile)
	return f.breaker(prov).Wrap(m), nil
}

func (f *Factory) apiKey(prov, profile, envVar string) (string, error) {
	if key := f.lookup(f.opts.Credentials.APIKeys, prov, profile); key != "" {
		return key, nil
	}
	if f.opts.LookupEnv != nil {
		if key, ok := f.opts.LookupEnv(envVar); ok && key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w for provider '%s' (profile: '%s')", ErrCredentialMissing, prov, profile)
}

// lookup resolves "profile.provider", then "profile", then "provider".
func (f *Factory) lookup(m map[string]string, prov, profile string) string {
	if profile != "" {
		if v := m[profile+"."+prov]; v != "" {
			return v
		}
		if v := m[profile]; v != "" {
			return v
		}
	}
	return m[prov]
}

func (f *Factory) breaker(prov string) *Breaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.breakers[prov]
	if !ok {
		b = NewBreaker(prov, func(s *BreakerSettings) {
			*s = f.opts.Breaker
			s.Logger = f.opts.Logger
		})
		f.breakers[prov] = b
	}
	return b
}
