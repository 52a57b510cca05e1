package core

import "context"

// Result is the outcome of one agent invocation. Structured is set when an
// output schema was requested; Text always carries the raw model answer.
type Result struct {
	Text       string `json:"text"`
	Structured any    `json:"structured,omitempty"`
	RunID      string `json:"run_id,omitempty"`
}

// Value returns the structured value when present, else the text.
func (r *Result) Value() any {
	if r.Structured != nil {
		return r.Structured
	}
	return r.Text
}

// Invocable is the uniform call surface of an agent as seen by other agents
// (child agents, workflow members).
type Invocable interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the accepted arguments.
	Parameters() map[string]any
	Invoke(ctx context.Context, args map[string]any) (*Result, error)
}
