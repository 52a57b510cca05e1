package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/hupe1980/agentkit/tracing"
)

var (
	okStyle     = color.New(color.FgGreen).SprintFunc()
	errorStyle  = color.New(color.FgRed).SprintFunc()
	warnStyle   = color.New(color.FgYellow).SprintFunc()
	headerStyle = color.New(color.FgCyan, color.Bold).SprintFunc()
	dimStyle    = color.New(color.FgHiBlack).SprintFunc()
)

var kindStyles = map[tracing.Kind]func(a ...any) string{
	tracing.KindAgent: color.New(color.FgCyan).SprintFunc(),
	tracing.KindModel: color.New(color.FgMagenta).SprintFunc(),
	tracing.KindTool:  color.New(color.FgBlue).SprintFunc(),
}

// renderTree prints one line per run, indented by depth.
func renderTree(tree *tracing.Tree) string {
	var sb strings.Builder
	sb.WriteString(headerStyle("Trace "+tree.Run.TraceID) + "\n")
	tree.Walk(func(n *tracing.Tree, depth int) {
		status := okStyle("✓")
		if n.Run.Error != "" {
			status = errorStyle("✗")
		} else if !n.Run.Closed() {
			status = warnStyle("…")
		}
		kind := string(n.Run.Kind)
		if style, ok := kindStyles[n.Run.Kind]; ok {
			kind = style(kind)
		}
		fmt.Fprintf(&sb, "%s%s %s %s %s\n",
			strings.Repeat("  ", depth+1), status, kind, n.Run.Name,
			dimStyle(fmt.Sprintf("%dms", n.Run.Duration().Milliseconds())))
		if n.Run.Error != "" {
			fmt.Fprintf(&sb, "%s  %s\n", strings.Repeat("  ", depth+1), errorStyle(n.Run.Error))
		}
	})
	return sb.String()
}
