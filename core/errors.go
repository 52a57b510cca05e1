package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors forming the invocation error taxonomy. Match with errors.Is;
// the typed errors below wrap them with context.
var (
	ErrConfigNotFound        = errors.New("agent configuration not found")
	ErrAgentDisabled         = errors.New("agent is disabled")
	ErrUnknownCapability     = errors.New("unknown capability")
	ErrUnknownTool           = errors.New("unknown tool")
	ErrUnknownWorkflowType   = errors.New("unknown workflow type")
	ErrWorkflowConfig        = errors.New("invalid workflow configuration")
	ErrMaxIterationsExceeded = errors.New("max iterations exceeded")
	ErrStructuredOutput      = errors.New("structured output does not satisfy schema")
	ErrNestedExecution       = errors.New("synchronous invocation from inside a running execution")
	ErrUnknownMethod         = errors.New("unknown agent method")
	ErrInvalidConfig         = errors.New("invalid agent configuration")
)

// AgentError attaches the failing operation and agent to a taxonomy error.
type AgentError struct {
	Op     string // e.g. "resolve", "bind", "workflow.split"
	Agent  string
	Detail string
	Err    error
}

func (e *AgentError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Agent != "" {
		fmt.Fprintf(&sb, " %q", e.Agent)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *AgentError) Unwrap() error { return e.Err }

// NewAgentError builds an AgentError.
func NewAgentError(op, agent string, err error, detail string) *AgentError {
	return &AgentError{Op: op, Agent: agent, Err: err, Detail: detail}
}

// DisabledError reports an invocation of a disabled agent.
func DisabledError(agent string) error {
	return &AgentError{Op: "invoke", Agent: agent, Err: ErrAgentDisabled, Detail: fmt.Sprintf("agent '%s' is disabled via configuration", agent)}
}

// MaxIterationsError is returned by the REACT loop when no final answer was
// produced within the iteration budget. Contents holds the conversation as it
// stood when the loop gave up.
type MaxIterationsError struct {
	Agent      string
	Iterations int
	Contents   []Content
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("agent %q: %s (%d)", e.Agent, ErrMaxIterationsExceeded, e.Iterations)
}

func (e *MaxIterationsError) Is(target error) bool { return target == ErrMaxIterationsExceeded }

// StructuredOutputError reports a model response that could not be decoded
// into, or validated against, the requested schema.
type StructuredOutputError struct {
	Raw string
	Err error
}

func (e *StructuredOutputError) Error() string {
	return fmt.Sprintf("%s: %v", ErrStructuredOutput, e.Err)
}

func (e *StructuredOutputError) Is(target error) bool { return target == ErrStructuredOutput }

func (e *StructuredOutputError) Unwrap() error { return e.Err }
