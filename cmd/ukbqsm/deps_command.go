package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ukbqsm/internal/deps"
	"ukbqsm/internal/preflight"
	"ukbqsm/internal/services"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Report external tool availability and directory preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			statuses := preflight.CheckSystemDeps(cfg)
			checks := preflight.RunAll(cfg)

			lines := renderSectionHeader("Dependencies", colorize)
			lines = append(lines, dependencyLines(statuses, colorize)...)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Preflight", colorize)...)
			lines = append(lines, preflightLines(checks, colorize)...)
			fmt.Fprintln(out, strings.Join(lines, "\n"))

			if !strict {
				return nil
			}
			var problems []string
			for _, s := range deps.Missing(statuses) {
				problems = append(problems, s.Name)
			}
			for _, r := range preflight.Failed(checks) {
				problems = append(problems, r.Name)
			}
			if len(problems) > 0 {
				return services.Wrap(services.ErrValidation, "deps", "check", "failed: "+strings.Join(problems, ", "), nil)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when a required tool is missing or a preflight check fails")
	return cmd
}
