package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"ukbqsm/internal/config"
	"ukbqsm/internal/fileutil"
	"ukbqsm/internal/idp"
	"ukbqsm/internal/ledger"
	"ukbqsm/internal/logging"
	"ukbqsm/internal/services"
	"ukbqsm/internal/services/toolexec"
)

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor routes every tool invocation through exec.
func WithExecutor(exec toolexec.Executor) Option {
	return func(r *Runner) { r.exec = exec }
}

// WithLedger records runs in store.
func WithLedger(store *ledger.Store) Option {
	return func(r *Runner) { r.ledger = store }
}

// WithLogger sets the parent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runner executes the per-subject pipeline.
type Runner struct {
	cfg    *config.Config
	exec   toolexec.Executor
	tools  Tools
	ledger *ledger.Store
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Runner for cfg.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "configuration required", nil)
	}
	r := &Runner{cfg: cfg, logger: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "pipeline")
	exec := r.exec
	if exec == nil {
		exec = toolexec.CommandExecutor{}
	}
	tools, err := NewTools(cfg, tracingExecutor{next: exec, logger: r.logger})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "build tool clients", err)
	}
	r.tools = tools
	return r, nil
}

// Result describes one subject session run.
type Result struct {
	RunID     string
	Artifacts Artifacts
	Row       idp.Row
	Completed []string
	Skipped   []string
	Duration  time.Duration
}

// Run processes subject and session. Steps run in order and the first
// failure aborts the run.
func (r *Runner) Run(ctx context.Context, subject string, session int) (Result, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithSubject(ctx, subject)
	ctx = services.WithSession(ctx, session)
	logger := logging.WithContext(ctx, r.logger)

	artifacts, err := NewArtifacts(r.cfg, subject, session)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "pipeline", "resolve artifacts", "", err)
	}
	result := Result{RunID: runID, Artifacts: artifacts}

	if err := os.MkdirAll(artifacts.MaskDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "pipeline", "prepare", "create work directory", err)
	}
	lock, err := fileutil.TryLock(artifacts.LockPath)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "pipeline", "lock",
			fmt.Sprintf("subject %s session %d is already being processed", subject, session), err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release subject lock", logging.Error(err))
		}
	}()

	if err := os.Remove(artifacts.Marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return result, services.Wrap(services.ErrConfiguration, "pipeline", "prepare", "clear completion marker", err)
	}

	var run *ledger.Run
	if r.ledger != nil {
		run, err = r.ledger.Start(ctx, runID, artifacts.Subject, session)
		if err != nil {
			return result, services.Wrap(services.ErrConfiguration, "pipeline", "ledger", "record run start", err)
		}
	}

	st := &state{
		artifacts: artifacts,
		tools:     r.tools,
		erode:     r.cfg.Pipeline.ErodeRegions,
		threads:   r.cfg.Pipeline.Threads,
		sigmaMM:   r.cfg.Pipeline.HomogeneitySigmaMM,
		logger:    logger,
	}

	started := r.now()
	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("work_dir", artifacts.WorkDir),
	)

	for _, s := range buildSteps() {
		if err := r.runStep(ctx, st, run, s, &result); err != nil {
			result.Duration = r.now().Sub(started)
			r.recordFailure(run, s.name, err, logger)
			return result, err
		}
	}

	result.Row = st.measurements.Row(artifacts.Subject, session)
	result.Duration = r.now().Sub(started)
	if err := writeMarker(artifacts.Marker, runID, r.now()); err != nil {
		r.recordFailure(run, "complete", err, logger)
		return result, services.Wrap(services.ErrConfiguration, "pipeline", "complete", "write completion marker", err)
	}
	if run != nil {
		if err := r.ledger.Complete(ctx, run); err != nil {
			logger.Warn("failed to record run completion", logging.Error(err))
		}
	}
	logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Duration("duration", result.Duration),
		logging.Strings("skipped", result.Skipped),
		logging.String("idp_file", artifacts.IDPFile),
	)
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, st *state, run *ledger.Run, s step, result *Result) error {
	stepCtx := services.WithStep(ctx, s.name)
	logger := logging.WithContext(stepCtx, r.logger)
	st.logger = logger

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pipeline cancelled before %s: %w", s.name, err)
	}
	if s.skip != nil {
		if reason := s.skip(st); reason != "" {
			logger.Info("step skipped",
				logging.String(logging.FieldEventType, "step_skip"),
				logging.String("reason", reason),
			)
			result.Skipped = append(result.Skipped, s.name)
			return nil
		}
	}
	if run != nil {
		if err := r.ledger.MarkStep(ctx, run, s.name); err != nil {
			logger.Warn("failed to record step", logging.Error(err))
		}
	}

	begin := r.now()
	logger.Info("step started", logging.String(logging.FieldEventType, "step_start"))
	if err := s.run(stepCtx, st); err != nil {
		return classifyStepError(ctx, s.name, err)
	}
	logger.Info("step completed",
		logging.String(logging.FieldEventType, "step_complete"),
		logging.Duration("duration", r.now().Sub(begin)),
	)
	result.Completed = append(result.Completed, s.name)
	return nil
}

// classifyStepError keeps errors already tagged with a service marker and
// tags everything else as an external tool failure of the step.
func classifyStepError(ctx context.Context, stepName string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = errors.Join(err, ctxErr)
	}
	for _, marker := range []error{services.ErrValidation, services.ErrConfiguration, services.ErrNotFound, services.ErrExternalTool} {
		if errors.Is(err, marker) {
			return err
		}
	}
	return services.Wrap(services.ErrExternalTool, "pipeline", stepName, "", err)
}

func (r *Runner) recordFailure(run *ledger.Run, stepName string, err error, logger *slog.Logger) {
	logging.ErrorWithContext(logger, "pipeline failed", "pipeline_failure",
		logging.Step(stepName),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "fix the failing step and rerun this subject"),
	)
	if run == nil {
		return
	}
	// The run context may already be cancelled.
	if ferr := r.ledger.Fail(context.Background(), run, stepName, err); ferr != nil {
		logger.Warn("failed to record run failure", logging.Error(ferr))
	}
}

// writeMarker records a finished session so reconciliation counts the
// subject as processed.
func writeMarker(path, runID string, at time.Time) error {
	data := fmt.Sprintf("run_id=%s\ncompleted_at=%s\n", runID, at.UTC().Format(time.RFC3339))
	return fileutil.WriteFileAtomic(path, []byte(data), 0o644)
}
