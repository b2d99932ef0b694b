package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ukbqsm/internal/config"
	"ukbqsm/internal/idp"
)

func newIDPCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idp",
		Short: "Inspect the imaging-derived phenotype table",
	}
	cmd.AddCommand(newIDPSummaryCommand(ctx))
	return cmd
}

func newIDPSummaryCommand(ctx *commandContext) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize every IDP column across the cohort",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(file)
			if path == "" {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				path = cfg.Paths.IDPFile
			} else {
				expanded, err := config.ExpandPath(path)
				if err != nil {
					return err
				}
				path = expanded
			}
			table, err := idp.ReadTable(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			table, dups := table.Latest()
			fmt.Fprintf(out, "%s: %d rows, %d measures\n", path, len(table.Rows), len(table.Columns))
			if len(dups) > 0 {
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderStatusLine("Reruns", statusWarn,
					fmt.Sprintf("%d %s with repeated rows; using the latest: %s", len(dups), plural(len(dups), "subject session", "subject sessions"), strings.Join(dups, ", ")),
					colorize))
			}
			summaries := idp.Summarize(table)
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{
					s.Column,
					strconv.Itoa(s.Count),
					strconv.Itoa(s.Missing),
					formatStat(s.Mean),
					formatStat(s.StdDev),
					formatStat(s.Median),
					formatStat(s.Min),
					formatStat(s.Max),
				})
			}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
			fmt.Fprintln(out, renderTable([]string{"Measure", "N", "Missing", "Mean", "SD", "Median", "Min", "Max"}, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "IDP CSV file (defaults to paths.idp_file)")
	return cmd
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}
