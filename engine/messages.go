package engine

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/internal/util"
)

// BuildContents renders the initial conversation of an invocation: the
// system prompt (when set) followed by the user message produced from the
// user prompt template. Both are Go templates over args. A template that
// fails to render falls back to the raw system prompt and to the argument
// values joined in key order, respectively.
func BuildContents(cfg core.AgentConfig, args map[string]any) []core.Content {
	var contents []core.Content

	if cfg.SystemPrompt != "" {
		system, err := util.RenderTemplate(cfg.SystemPrompt, args)
		if err != nil {
			system = cfg.SystemPrompt
		}
		contents = append(contents, core.NewTextContent(core.RoleSystem, system))
	}

	tmpl := cfg.UserPromptTemplate
	if tmpl == "" {
		tmpl = core.DefaultUserPromptTemplate
	}
	user, err := util.RenderTemplate(tmpl, args)
	if err != nil || strings.TrimSpace(user) == "" {
		user = joinArgs(args)
	}
	return append(contents, core.NewTextContent(core.RoleUser, user))
}

func joinArgs(args map[string]any) string {
	keys := slices.Sorted(maps.Keys(args))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprint(args[k]))
	}
	return strings.Join(parts, " ")
}
