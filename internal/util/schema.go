package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	invjs "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaFor derives an inline JSON schema (no $defs references) from a Go
// value using its json and jsonschema struct tags.
func SchemaFor(v any) map[string]any {
	r := &invjs.Reflector{DoNotReference: true, ExpandedStruct: true}
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return ObjectSchema(nil)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return ObjectSchema(nil)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// ObjectSchema builds a minimal object schema.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// CompileSchema compiles a JSON schema given as a decoded map.
func CompileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// Normalize round-trips v through JSON so it only holds the types produced
// by encoding/json (map[string]any, []any, float64, string, bool, nil).
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks v against a compiled schema after normalization.
func Validate(schema *jsonschema.Schema, v any) error {
	n, err := Normalize(v)
	if err != nil {
		return err
	}
	return schema.Validate(n)
}

// codeFenceRe matches markdown code fences wrapping JSON.
var codeFenceRe = regexp.MustCompile(`(?si)^` + "```" + `(?:json)?\s*(.*?)\s*` + "```" + `$`)

// StripCodeFences removes markdown code fences if the model wrapped its output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}
