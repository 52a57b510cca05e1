// Package main provides the agentkit CLI: run agents from a YAML document,
// validate documents and inspect model routing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle("error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentkit",
		Short: "Run declaratively configured LLM agents",
		Long: `agentkit runs agents described in a YAML document.

Process settings are read from AGENTKIT_* environment variables
(AGENTKIT_API_KEYS, AGENTKIT_MODEL_ROUTES, AGENTKIT_TRACE_DB, ...).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML agent document (defaults to AGENTKIT_CONFIG_FILE)")

	rootCmd.AddCommand(runCmd(), validateCmd(), modelsCmd())
	return rootCmd
}
