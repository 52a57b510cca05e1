package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Namespace prefixes every environment variable read by LoadSettings.
const Namespace = "AGENTKIT"

// Settings is the process-level configuration read from the environment.
// List variables are comma separated; pair entries use "key=value".
type Settings struct {
	MaxConcurrency int     `envconfig:"MAX_CONCURRENCY" default:"10"`
	RateLimit      float64 `envconfig:"RATE_LIMIT" default:"0"` // model calls per second, 0 = unlimited
	RateBurst      int     `envconfig:"RATE_BURST" default:"1"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	TraceExporter string `envconfig:"TRACE_EXPORTER" default:"none"` // none | stdout
	TraceDB       string `envconfig:"TRACE_DB"`

	ConfigFile string `envconfig:"CONFIG_FILE"`

	// APIKeys entries: "openai=sk-...", "work.anthropic=sk-ant-..." (profile.provider).
	APIKeys []string `envconfig:"API_KEYS"`
	// BaseURLs entries: "deepseek=https://api.deepseek.com/v1".
	BaseURLs []string `envconfig:"BASE_URLS"`
	// ModelRoutes entries: "fast=openai:gpt-5-mini".
	ModelRoutes []string `envconfig:"MODEL_ROUTES"`

	BreakerTimeout  time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`
	BreakerFailures uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// LoadSettings reads Settings from AGENTKIT_* environment variables.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process(Namespace, &s); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &s, nil
}

// APIKeyMap returns APIKeys as a map.
func (s *Settings) APIKeyMap() map[string]string { return Pairs(s.APIKeys) }

// BaseURLMap returns BaseURLs as a map.
func (s *Settings) BaseURLMap() map[string]string { return Pairs(s.BaseURLs) }

// RouteMap returns ModelRoutes as a map.
func (s *Settings) RouteMap() map[string]string { return Pairs(s.ModelRoutes) }

// Pairs parses "key=value" entries, ignoring malformed ones.
func Pairs(entries []string) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}
