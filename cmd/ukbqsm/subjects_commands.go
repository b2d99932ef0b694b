package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ukbqsm/internal/config"
	"ukbqsm/internal/reconcile"
	"ukbqsm/internal/report"
	"ukbqsm/internal/subjects"
)

func newSubjectsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "Reconcile and combine subject lists",
	}
	cmd.AddCommand(newSubjectsReconcileCommand(ctx))
	cmd.AddCommand(newSubjectsVerifyCommand(ctx))
	cmd.AddCommand(newSubjectsExtractCommand())
	cmd.AddCommand(newSetOpCommand("intersect", "Print subjects present in both lists", subjects.Intersect))
	cmd.AddCommand(newSetOpCommand("complement", "Print subjects in the first list but not the second", subjects.Complement))
	cmd.AddCommand(newSetOpCommand("union", "Print subjects present in either list", subjects.Union))
	return cmd
}

func newSubjectsReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Scan the configured fields and write every list and summary.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			result, err := reconcile.Run(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			if err := result.Verify(result.ListsDir); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.Render(result.Entries))
			fmt.Fprintf(out, "Lists written to %s (run %s)\n", result.ListsDir, result.RunID)
			return nil
		},
	}
}

func newSubjectsVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every list file against the counts in summary.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			summary, err := reconcile.VerifySummary(cfg.Paths.ListsDir)
			if err != nil {
				var drift *reconcile.DriftError
				if errors.As(err, &drift) {
					fmt.Fprintln(cmd.OutOrStdout(), renderStatusLine("Summary", statusError, drift.Error(), shouldColorize(cmd.OutOrStdout())))
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Summary verified: %d lists match run %s\n", len(summary.Entries), summary.RunID)
			return nil
		},
	}
}

func newSubjectsExtractCommand() *cobra.Command {
	var dirs []string
	var prefix string
	var opts subjects.ArchiveOptions

	cmd := &cobra.Command{
		Use:         "extract",
		Short:       "Print the subject IDs found in ad-hoc directories",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(dirs) == 0 {
				return errors.New("at least one --dir is required")
			}
			expanded := make([]string, 0, len(dirs))
			for _, dir := range dirs {
				path, err := config.ExpandPath(strings.TrimSpace(dir))
				if err != nil {
					return err
				}
				expanded = append(expanded, path)
			}
			var (
				list subjects.List
				err  error
			)
			if strings.TrimSpace(prefix) != "" {
				list, err = subjects.ExtractPrefixedAll(expanded, prefix)
			} else {
				list, err = subjects.ExtractArchives(expanded, opts)
			}
			if err != nil {
				return err
			}
			return writeList(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().StringArrayVarP(&dirs, "dir", "d", nil, "Directory to scan (repeatable)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Read <prefix><eid> entries from a flat directory instead of archives")
	cmd.Flags().StringVar(&opts.Extension, "extension", subjects.DefaultExtension, "Archive file extension")
	cmd.Flags().StringVar(&opts.Delimiter, "delimiter", subjects.DefaultDelimiter, "Separator between the subject ID and the rest of the file name")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", subjects.DefaultMaxDepth, "Directory levels to walk below each root")
	return cmd
}

func newSetOpCommand(name, short string, op func(a, b subjects.List) subjects.List) *cobra.Command {
	return &cobra.Command{
		Use:         name + " A B",
		Short:       short,
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			lists := make([]subjects.List, 0, 2)
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				list, err := subjects.ReadList(path)
				if err != nil {
					return err
				}
				lists = append(lists, list)
			}
			return writeList(cmd.OutOrStdout(), op(lists[0], lists[1]))
		},
	}
}

func writeList(out io.Writer, list subjects.List) error {
	for _, id := range list {
		if _, err := fmt.Fprintln(out, id); err != nil {
			return err
		}
	}
	return nil
}
