package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ukbqsm/internal/config"
	"ukbqsm/internal/idp"
	"ukbqsm/internal/ledger"
	"ukbqsm/internal/pipeline"
	"ukbqsm/internal/preflight"
	"ukbqsm/internal/services"
	"ukbqsm/internal/subjects"
)

const defaultSession = 2

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Process subjects through registration and QSM measurement",
	}
	cmd.AddCommand(newPipelineRunCommand(ctx))
	cmd.AddCommand(newPipelineBatchCommand(ctx))
	cmd.AddCommand(newPipelineHistoryCommand(ctx))
	return cmd
}

type pipelineFlags struct {
	noCorrection bool
	transform    string
	threads      int
	dataDir      string
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCorrection, "no-correction", false, "Skip homogeneity correction of the magnitude image")
	cmd.Flags().StringVar(&f.transform, "transform", "", "Registration transform: affine or deformable")
	cmd.Flags().IntVar(&f.threads, "threads", 0, "ANTs thread count (0 keeps the configured value)")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "Directory holding the MNI template and SN masks")
}

func (f *pipelineFlags) overrides() pipeline.Overrides {
	return pipeline.Overrides{
		NoCorrection: f.noCorrection,
		Transform:    f.transform,
		Threads:      f.threads,
		DataDir:      f.dataDir,
	}
}

// pipelineConfig applies the invocation flags and runs the preflight checks
// a subject run depends on.
func (c *commandContext) pipelineConfig(flags *pipelineFlags) (*config.Config, error) {
	base, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	cfg, err := flags.overrides().Apply(base)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "overrides", "", err)
	}
	if failed := preflight.Failed(preflight.ForPipeline(cfg)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, r := range failed {
			details = append(details, fmt.Sprintf("%s (%s)", r.Name, r.Detail))
		}
		return nil, services.Wrap(services.ErrValidation, "pipeline", "preflight",
			"checks failed: "+strings.Join(details, "; "), nil)
	}
	return cfg, nil
}

func (c *commandContext) newRunner(cmd *cobra.Command, cfg *config.Config, store *ledger.Store) (*pipeline.Runner, error) {
	logger, err := c.logger(cmd)
	if err != nil {
		return nil, err
	}
	opts := []pipeline.Option{pipeline.WithLedger(store), pipeline.WithLogger(logger)}
	if c.executor != nil {
		opts = append(opts, pipeline.WithExecutor(c.executor))
	}
	return pipeline.New(cfg, opts...)
}

func newPipelineRunCommand(ctx *commandContext) *cobra.Command {
	var subject string
	var session int
	var flags pipelineFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one subject session and append its IDP row",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(subject) == "" {
				return errors.New("--subject is required")
			}
			cfg, err := ctx.pipelineConfig(&flags)
			if err != nil {
				return err
			}
			return ctx.withLedger(func(store *ledger.Store) error {
				runner, err := ctx.newRunner(cmd, cfg, store)
				if err != nil {
					return err
				}
				result, err := runner.Run(cmd.Context(), strings.TrimSpace(subject), session)
				if err != nil {
					return err
				}
				printRunResult(cmd, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject EID")
	cmd.Flags().IntVar(&session, "session", defaultSession, "Imaging session (instance) number")
	flags.register(cmd)
	return cmd
}

func printRunResult(cmd *cobra.Command, result pipeline.Result) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	a := result.Artifacts
	fmt.Fprintln(out, renderStatusLine("Subject", statusOK, fmt.Sprintf("%s session %d", a.Subject, a.Session), colorize))
	fmt.Fprintln(out, renderStatusLine("Run", statusInfo, result.RunID, colorize))
	fmt.Fprintln(out, renderStatusLine("Steps", statusInfo, fmt.Sprintf("%d completed, %d skipped", len(result.Completed), len(result.Skipped)), colorize))
	if len(result.Skipped) > 0 {
		fmt.Fprintln(out, renderStatusLine("Skipped", statusWarn, strings.Join(result.Skipped, ", "), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, result.Duration.Round(time.Second).String(), colorize))
	fmt.Fprintln(out, renderStatusLine("IDP file", statusInfo, a.IDPFile, colorize))

	rows := make([][]string, 0, len(result.Row.Columns))
	for i, column := range result.Row.Columns {
		rows = append(rows, []string{column, idp.FormatValue(result.Row.Values[i])})
	}
	fmt.Fprintln(out, renderTable([]string{"Measurement", "Median"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func newPipelineBatchCommand(ctx *commandContext) *cobra.Command {
	var listPath string
	var session int
	var force bool
	var flags pipelineFlags

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process every subject of a list file, stopping at the first failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(listPath) == "" {
				return errors.New("--list is required")
			}
			path, err := config.ExpandPath(listPath)
			if err != nil {
				return err
			}
			list, err := subjects.ReadList(path)
			if err != nil {
				return services.Wrap(services.ErrValidation, "pipeline", "read list", "", err)
			}
			cfg, err := ctx.pipelineConfig(&flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			return ctx.withLedger(func(store *ledger.Store) error {
				runner, err := ctx.newRunner(cmd, cfg, store)
				if err != nil {
					return err
				}
				result, err := runner.Batch(cmd.Context(), list, session, pipeline.BatchOptions{
					Force: force,
					OnResult: func(subject string, r pipeline.Result, runErr error) {
						if runErr != nil {
							fmt.Fprintln(out, renderStatusLine(subject, statusError, runErr.Error(), colorize))
							return
						}
						fmt.Fprintln(out, renderStatusLine(subject, statusOK, r.Duration.Round(time.Second).String(), colorize))
					},
				})
				for _, subject := range result.Skipped {
					fmt.Fprintln(out, renderStatusLine(subject, statusInfo, "already completed", colorize))
				}
				fmt.Fprintf(out, "Processed %d, skipped %d of %d subjects\n", len(result.Processed), len(result.Skipped), list.Len())
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&listPath, "list", "l", "", "Subject list file (one sorted EID per line)")
	cmd.Flags().IntVar(&session, "session", defaultSession, "Imaging session (instance) number")
	cmd.Flags().BoolVar(&force, "force", false, "Reprocess subjects the ledger already marks completed")
	flags.register(cmd)
	return cmd
}

func newPipelineHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var markInterrupted bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withLedger(func(store *ledger.Store) error {
				if markInterrupted {
					n, err := store.Interrupted(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Marked %d running %s as interrupted\n", n, plural(int(n), "run", "runs"))
				}
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No pipeline runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Subject", "Session", "Status", "Step", "Duration", "Error"},
					historyRows(runs, time.Now()),
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 shows all)")
	cmd.Flags().BoolVar(&markInterrupted, "mark-interrupted", false, "Mark runs left in the running state as failed")
	return cmd
}

func historyRows(runs []*ledger.Run, now time.Time) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		message := run.ErrorMessage
		if run.ErrorKind != "" {
			message = run.ErrorKind + ": " + message
		}
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			run.Subject,
			strconv.Itoa(run.Session),
			string(run.Status),
			run.Step,
			run.Duration(now).Round(time.Second).String(),
			truncate(message, 60),
		})
	}
	return rows
}

func truncate(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}
