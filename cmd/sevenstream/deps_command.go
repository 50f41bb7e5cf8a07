package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sevenstream/internal/deps"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

const statusLabelWidth = 12

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check that a 7-Zip binary is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.Check(cmd.Context(), deps.Requirements(cfg))
			if asJSON {
				if err := writeJSON(cmd, statuses); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := isTerminal(out)
				for _, status := range statuses {
					fmt.Fprintln(out, renderDependencyLine(status, colorize))
				}
			}
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("required binary %q not available: %s", missing[0].Command, missing[0].Detail)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print dependency status as JSON")
	return cmd
}

func renderDependencyLine(status deps.Status, colorize bool) string {
	label, color := "OK", ansiGreen
	message := status.Path
	if status.Version != "" {
		message = fmt.Sprintf("%s (7-Zip %s)", status.Path, status.Version)
	}
	switch {
	case !status.Available && status.Optional:
		label, color, message = "SKIP", ansiYellow, status.Detail
	case !status.Available:
		label, color, message = "MISSING", ansiRed, status.Detail
	case status.Detail != "":
		label, color = "WARN", ansiYellow
		message = status.Path + ": " + status.Detail
	}
	line := fmt.Sprintf("  %-*s [%s] %s", statusLabelWidth, status.Name+":", label, message)
	if colorize {
		return color + line + ansiReset
	}
	return line
}
