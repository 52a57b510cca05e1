package model

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/internal/util"
)

// DecodeStructured parses a model answer as JSON and validates it against
// schema. Code fences around the JSON are tolerated. Any failure to decode
// or validate yields a *core.StructuredOutputError.
func DecodeStructured(text string, schema map[string]any) (any, error) {
	raw := util.StripCodeFences(text)

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, &core.StructuredOutputError{Raw: text, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if len(schema) == 0 {
		return v, nil
	}

	compiled, err := util.CompileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("output schema: %w", err)
	}
	if err := compiled.Validate(v); err != nil {
		return nil, &core.StructuredOutputError{Raw: text, Err: err}
	}
	return v, nil
}
