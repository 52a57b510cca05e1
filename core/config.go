package core

import (
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// Capability is an abstract quality label routed to a concrete model identifier.
type Capability string

const (
	CapabilityFast      Capability = "fast"
	CapabilitySmart     Capability = "smart"
	CapabilityReasoning Capability = "reasoning"
	CapabilityVision    Capability = "vision"
	CapabilityCoding    Capability = "coding"
)

// AgentType selects the execution strategy of an agent. The empty value
// runs as AgentTypeOneShot.
type AgentType string

const (
	// AgentTypeOneShot issues exactly one model call.
	AgentTypeOneShot AgentType = "one_shot"
	// AgentTypeReact loops model call -> tool calls until a final answer.
	AgentTypeReact AgentType = "react"
	// AgentTypeWorkflow delegates to a configured workflow (map_reduce).
	AgentTypeWorkflow AgentType = "workflow"
)

// WorkflowMapReduce is the only workflow type currently supported.
const WorkflowMapReduce = "map_reduce"

// Defaults applied to every new AgentConfig.
const (
	DefaultMaxIterations      = 5
	DefaultTemperature        = 0.7
	DefaultUserPromptTemplate = "{{.input}}"
)

// WorkflowConfig configures a WORKFLOW agent. Splitter, Mapper, Mappers and
// Reducer name other agents.
type WorkflowConfig struct {
	Type     string            `yaml:"type" json:"type"`
	Splitter string            `yaml:"splitter,omitempty" json:"splitter,omitempty"`
	Mapper   string            `yaml:"mapper,omitempty" json:"mapper,omitempty"`
	Mappers  map[string]string `yaml:"mappers,omitempty" json:"mappers,omitempty"`
	Reducer  string            `yaml:"reducer,omitempty" json:"reducer,omitempty"`
}

// MapperFor returns the agent handling subtasks of the given worker type.
// Typed mappers match by exact string; the shared mapper is the fallback.
func (w *WorkflowConfig) MapperFor(workerType string) (string, bool) {
	if name, ok := w.Mappers[workerType]; ok && name != "" {
		return name, true
	}
	return w.Mapper, w.Mapper != ""
}

func (w *WorkflowConfig) clone() *WorkflowConfig {
	if w == nil {
		return nil
	}
	c := *w
	c.Mappers = maps.Clone(w.Mappers)
	return &c
}

// MethodSpec declares one callable method of an agent: its argument schema
// and, when structured, its output schema.
type MethodSpec struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Parameters  map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Output      map[string]any `yaml:"output,omitempty" json:"output,omitempty"`
}

// AgentConfig is the declarative description of one agent. Values are
// treated as immutable once registered; use Overrides.Apply to derive a
// modified copy.
type AgentConfig struct {
	Name               string          `yaml:"name" json:"name"`
	Description        string          `yaml:"description,omitempty" json:"description,omitempty"`
	Capability         Capability      `yaml:"capability" json:"capability"`
	Model              string          `yaml:"model,omitempty" json:"model,omitempty"`
	SystemPrompt       string          `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	UserPromptTemplate string          `yaml:"user_prompt_template,omitempty" json:"user_prompt_template,omitempty"`
	AgentType          AgentType       `yaml:"agent_type" json:"agent_type"`
	Tools              []string        `yaml:"tools,omitempty" json:"tools,omitempty"`
	ChildAgents        []string        `yaml:"agents,omitempty" json:"agents,omitempty"`
	Tags               []string        `yaml:"tags,omitempty" json:"tags,omitempty"`
	Temperature        float64         `yaml:"temperature" json:"temperature"`
	MaxTokens          int             `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	MaxIterations      int             `yaml:"max_iterations" json:"max_iterations"`
	LLMProfile         string          `yaml:"llm_profile,omitempty" json:"llm_profile,omitempty"`
	Workflow           *WorkflowConfig `yaml:"workflow_config,omitempty" json:"workflow_config,omitempty"`
	Methods            []MethodSpec    `yaml:"methods,omitempty" json:"methods,omitempty"`
	Enabled            bool            `yaml:"enabled" json:"enabled"`
	TracingEnabled     bool            `yaml:"tracing_enabled" json:"tracing_enabled"`
}

// DefaultAgentConfig returns the minimal configuration synthesized for name.
func DefaultAgentConfig(name string) AgentConfig {
	return AgentConfig{
		Name:               name,
		Capability:         CapabilitySmart,
		UserPromptTemplate: DefaultUserPromptTemplate,
		AgentType:          AgentTypeOneShot,
		Temperature:        DefaultTemperature,
		MaxIterations:      DefaultMaxIterations,
		Enabled:            true,
		TracingEnabled:     true,
	}
}

// UnmarshalYAML decodes on top of DefaultAgentConfig so omitted keys keep
// their defaults (enabled, tracing_enabled, temperature, ...).
func (c *AgentConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain AgentConfig
	p := plain(DefaultAgentConfig(""))
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = AgentConfig(p)
	return nil
}

// Clone returns a deep copy.
func (c AgentConfig) Clone() AgentConfig {
	c.Tools = slices.Clone(c.Tools)
	c.ChildAgents = slices.Clone(c.ChildAgents)
	c.Tags = slices.Clone(c.Tags)
	c.Methods = slices.Clone(c.Methods)
	c.Workflow = c.Workflow.clone()
	return c
}

// Method looks up a declared method by name.
func (c AgentConfig) Method(name string) (MethodSpec, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return MethodSpec{}, false
}

// HasTag reports whether the agent carries tag.
func (c AgentConfig) HasTag(tag string) bool { return slices.Contains(c.Tags, tag) }
