package core

import (
	"fmt"
	"strings"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validator finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
}

// ValidationReport collects the findings for one agent.
type ValidationReport struct {
	Agent  string
	Issues []Issue
}

func (r *ValidationReport) add(sev Severity, field, msg string) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Field: field, Message: msg})
}

// HasErrors reports whether any finding is fatal.
func (r ValidationReport) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Warnings returns the non-fatal findings.
func (r ValidationReport) Warnings() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityWarning {
			out = append(out, i)
		}
	}
	return out
}

// Err returns a *ValidationError when the report holds errors, else nil.
func (r ValidationReport) Err() error {
	if !r.HasErrors() {
		return nil
	}
	var errs []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			errs = append(errs, i)
		}
	}
	return &ValidationError{Agent: r.Agent, Issues: errs}
}

// ValidationError lists the fatal findings of a configuration.
type ValidationError struct {
	Agent  string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = fmt.Sprintf("%s: %s", is.Field, is.Message)
	}
	return fmt.Sprintf("%s %q: %s", ErrInvalidConfig, e.Agent, strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidConfig }

// Validate checks the declarative invariants of an AgentConfig.
func Validate(cfg AgentConfig) ValidationReport {
	r := ValidationReport{Agent: cfg.Name}

	if strings.TrimSpace(cfg.Name) == "" {
		r.add(SeverityError, "name", "agent name cannot be empty")
	}
	if cfg.Capability == "" && cfg.Model == "" {
		r.add(SeverityError, "capability", "capability cannot be empty")
	}
	switch cfg.AgentType {
	case "", AgentTypeOneShot, AgentTypeReact, AgentTypeWorkflow:
	default:
		r.add(SeverityError, "agent_type", fmt.Sprintf("unsupported agent type %q", cfg.AgentType))
	}
	if !(cfg.Temperature >= 0 && cfg.Temperature <= 2) {
		r.add(SeverityError, "temperature", "temperature must be between 0.0 and 2.0")
	} else if cfg.Temperature > 1 {
		r.add(SeverityWarning, "temperature", "high temperature (>1.0) may cause hallucinations")
	}
	if cfg.AgentType == AgentTypeReact && cfg.MaxIterations < 1 {
		r.add(SeverityError, "max_iterations", "max_iterations must be positive")
	}
	if cfg.MaxTokens < 0 {
		r.add(SeverityError, "max_tokens", "max_tokens cannot be negative")
	}
	if cfg.SystemPrompt == "" && cfg.AgentType != AgentTypeWorkflow {
		r.add(SeverityWarning, "system_prompt", "system prompt is empty")
	}
	seen := map[string]bool{}
	for _, m := range cfg.Methods {
		if m.Name == "" {
			r.add(SeverityError, "methods", "method name cannot be empty")
		} else if seen[m.Name] {
			r.add(SeverityError, "methods", fmt.Sprintf("duplicate method %q", m.Name))
		}
		seen[m.Name] = true
	}

	return r
}

// ValidateWorkflow checks the workflow section of a WORKFLOW agent. It does
// not judge the workflow type itself; unknown types are rejected when the
// workflow is executed.
func ValidateWorkflow(cfg AgentConfig) error {
	if cfg.AgentType != AgentTypeWorkflow {
		return nil
	}
	w := cfg.Workflow
	if w == nil || w.Type == "" {
		return NewAgentError("workflow", cfg.Name, ErrWorkflowConfig, "workflow_config must contain 'type'")
	}
	if w.Type != WorkflowMapReduce {
		return nil
	}
	var missing []string
	if w.Splitter == "" {
		missing = append(missing, "splitter")
	}
	if w.Reducer == "" {
		missing = append(missing, "reducer")
	}
	if w.Mapper == "" && len(w.Mappers) == 0 {
		missing = append(missing, "mapper or mappers")
	}
	if len(missing) > 0 {
		return NewAgentError("workflow", cfg.Name, ErrWorkflowConfig, "map_reduce requires "+strings.Join(missing, ", "))
	}
	return nil
}
