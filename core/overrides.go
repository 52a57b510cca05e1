package core

import "slices"

// Ptr returns a pointer to v. Handy for building Overrides literals.
func Ptr[T any](v T) *T { return &v }

// Overrides is a field-level patch over an AgentConfig. Nil pointers and nil
// slices are "not supplied" and keep the base value.
type Overrides struct {
	Name               *string
	Description        *string
	Capability         *Capability
	Model              *string
	SystemPrompt       *string
	UserPromptTemplate *string
	AgentType          *AgentType
	Tools              []string
	ChildAgents        []string
	Tags               []string
	Temperature        *float64
	MaxTokens          *int
	MaxIterations      *int
	LLMProfile         *string
	Workflow           *WorkflowConfig
	Enabled            *bool
	TracingEnabled     *bool
}

// IsZero reports whether no field is supplied.
func (o Overrides) IsZero() bool {
	return o.Name == nil && o.Description == nil && o.Capability == nil && o.Model == nil &&
		o.SystemPrompt == nil && o.UserPromptTemplate == nil && o.AgentType == nil &&
		o.Tools == nil && o.ChildAgents == nil && o.Tags == nil && o.Temperature == nil &&
		o.MaxTokens == nil && o.MaxIterations == nil && o.LLMProfile == nil &&
		o.Workflow == nil && o.Enabled == nil && o.TracingEnabled == nil
}

// Apply returns a copy of base with every supplied field replaced.
func (o Overrides) Apply(base AgentConfig) AgentConfig {
	c := base.Clone()
	setIf(&c.Name, o.Name)
	setIf(&c.Description, o.Description)
	setIf(&c.Capability, o.Capability)
	setIf(&c.Model, o.Model)
	setIf(&c.SystemPrompt, o.SystemPrompt)
	setIf(&c.UserPromptTemplate, o.UserPromptTemplate)
	setIf(&c.AgentType, o.AgentType)
	setIf(&c.Temperature, o.Temperature)
	setIf(&c.MaxTokens, o.MaxTokens)
	setIf(&c.MaxIterations, o.MaxIterations)
	setIf(&c.LLMProfile, o.LLMProfile)
	setIf(&c.Enabled, o.Enabled)
	setIf(&c.TracingEnabled, o.TracingEnabled)
	if o.Tools != nil {
		c.Tools = slices.Clone(o.Tools)
	}
	if o.ChildAgents != nil {
		c.ChildAgents = slices.Clone(o.ChildAgents)
	}
	if o.Tags != nil {
		c.Tags = slices.Clone(o.Tags)
	}
	if o.Workflow != nil {
		c.Workflow = o.Workflow.clone()
	}
	return c
}

// Merge layers next on top of o: every field supplied by next wins.
func (o Overrides) Merge(next Overrides) Overrides {
	m := o
	pick(&m.Name, next.Name)
	pick(&m.Description, next.Description)
	pick(&m.Capability, next.Capability)
	pick(&m.Model, next.Model)
	pick(&m.SystemPrompt, next.SystemPrompt)
	pick(&m.UserPromptTemplate, next.UserPromptTemplate)
	pick(&m.AgentType, next.AgentType)
	pick(&m.Temperature, next.Temperature)
	pick(&m.MaxTokens, next.MaxTokens)
	pick(&m.MaxIterations, next.MaxIterations)
	pick(&m.LLMProfile, next.LLMProfile)
	pick(&m.Enabled, next.Enabled)
	pick(&m.TracingEnabled, next.TracingEnabled)
	if next.Workflow != nil {
		m.Workflow = next.Workflow.clone()
	}
	if next.Tools != nil {
		m.Tools = slices.Clone(next.Tools)
	}
	if next.ChildAgents != nil {
		m.ChildAgents = slices.Clone(next.ChildAgents)
	}
	if next.Tags != nil {
		m.Tags = slices.Clone(next.Tags)
	}
	return m
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func pick[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}
