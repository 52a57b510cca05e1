package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentkit/config"
	"github.com/hupe1980/agentkit/core"
)

var errInvalidDocument = errors.New("document has validation errors")

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check an agent document and print validator findings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := config.LoadSettings()
			if err != nil {
				return err
			}
			path := configPath(cmd, s)
			if path == "" {
				return errors.New("no config file given (use --config)")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			return validateDocument(cmd.OutOrStdout(), data)
		},
	}
}

// validateDocument decodes without ParseDocument's rejection so every
// finding of every agent is reported.
func validateDocument(w io.Writer, data []byte) error {
	var doc config.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	var failed bool
	seen := map[string]bool{}
	for _, cfg := range doc.Agents {
		report := core.Validate(cfg)
		issues := report.Issues
		if seen[cfg.Name] {
			issues = append(issues, core.Issue{Severity: core.SeverityError, Field: "name", Message: "duplicate agent name"})
		}
		seen[cfg.Name] = true
		if err := core.ValidateWorkflow(cfg); err != nil {
			issues = append(issues, core.Issue{Severity: core.SeverityError, Field: "workflow_config", Message: err.Error()})
		}

		if len(issues) == 0 {
			fmt.Fprintf(w, "%s %s\n", okStyle("✓"), cfg.Name)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", headerStyle("•"), cfg.Name)
		for _, is := range issues {
			line := fmt.Sprintf("  %s %s: %s", is.Severity, is.Field, is.Message)
			if is.Severity == core.SeverityError {
				failed = true
				fmt.Fprintln(w, errorStyle(line))
			} else {
				fmt.Fprintln(w, warnStyle(line))
			}
		}
	}

	fmt.Fprintf(w, "%d agent(s) checked\n", len(doc.Agents))
	if failed {
		return errInvalidDocument
	}
	return nil
}
