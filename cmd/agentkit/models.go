package main

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentkit/config"
	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/provider"
)

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Print the effective capability to model routing table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := config.LoadSettings()
			if err != nil {
				return err
			}
			// Routing only: no logs, span export or trace store.
			s.LogLevel = "error"
			s.TraceExporter = "none"
			s.TraceDB = ""

			var files []string
			if p := configPath(cmd, s); p != "" {
				files = append(files, p)
			}
			kit, err := newKit(cmd.Context(), s, files)
			if err != nil {
				return err
			}
			defer func() { _ = kit.Shutdown(context.WithoutCancel(cmd.Context())) }()

			printRoutes(cmd.OutOrStdout(), kit.ModelMappings())
			return nil
		},
	}
}

func printRoutes(w io.Writer, routes map[core.Capability]string) {
	caps := make([]core.Capability, 0, len(routes))
	for c := range routes {
		caps = append(caps, c)
	}
	slices.Sort(caps)

	fmt.Fprintln(w, headerStyle("Capability routes"))
	for _, c := range caps {
		prov, name := provider.ParseIdentifier(routes[c])
		fmt.Fprintf(w, "  %-10s %s %s\n", c, routes[c], dimStyle("("+prov+" / "+name+")"))
	}
}
