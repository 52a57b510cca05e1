package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentkit"
	"github.com/hupe1980/agentkit/config"
	"github.com/hupe1980/agentkit/core"
)

func runCmd() *cobra.Command {
	var (
		agent     string
		input     string
		modelID   string
		showTrace bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Invoke an agent once and print its answer",
		Example: `  agentkit run -c agents.yaml --agent researcher --input "Go generics"
  agentkit run -c agents.yaml --agent writer --input hi --model anthropic:claude-3-5-haiku-latest --trace`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := config.LoadSettings()
			if err != nil {
				return err
			}
			var files []string
			if p := configPath(cmd, s); p != "" {
				files = append(files, p)
			}

			kit, err := newKit(ctx, s, files)
			if err != nil {
				return err
			}
			defer func() { _ = kit.Shutdown(context.WithoutCancel(ctx)) }()

			res, err := kit.InvokeSync(ctx, agent, map[string]any{"input": input}, func(o *agentkit.InvokeOptions) {
				if modelID != "" {
					o.Overrides.Model = core.Ptr(modelID)
				}
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Structured != nil {
				data, err := json.MarshalIndent(res.Structured, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			} else {
				fmt.Fprintln(out, res.Text)
			}

			if showTrace && res.RunID != "" {
				tree, err := kit.GetTrace(res.RunID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, renderTree(tree))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&agent, "agent", "a", "", "agent name")
	cmd.Flags().StringVarP(&input, "input", "i", "", "input text")
	cmd.Flags().StringVarP(&modelID, "model", "m", "", "model identifier override (provider:model)")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "print the trace tree")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}
