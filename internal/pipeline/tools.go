package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"ukbqsm/internal/config"
	"ukbqsm/internal/logging"
	"ukbqsm/internal/services/ants"
	"ukbqsm/internal/services/freesurfer"
	"ukbqsm/internal/services/fsl"
	"ukbqsm/internal/services/mritools"
	"ukbqsm/internal/services/toolexec"
)

// Tools bundles the external tool clients used by the steps.
type Tools struct {
	ANTs       *ants.Client
	FSL        *fsl.Client
	FreeSurfer *freesurfer.Client
	MRITools   *mritools.Client
}

// NewTools builds clients for the configured binaries. A nil exec uses the
// default subprocess executor.
func NewTools(cfg *config.Config, exec toolexec.Executor) (Tools, error) {
	t := cfg.Tools
	antsClient, err := ants.New(t.ANTsRegistration, t.ANTsApply, ants.WithExecutor(exec))
	if err != nil {
		return Tools{}, fmt.Errorf("ants client: %w", err)
	}
	fslClient, err := fsl.New(t.FSLMaths, t.FSLStats, fsl.WithExecutor(exec))
	if err != nil {
		return Tools{}, fmt.Errorf("fsl client: %w", err)
	}
	fsClient, err := freesurfer.New(t.MRIConvert, t.MRIBinarize, freesurfer.WithExecutor(exec))
	if err != nil {
		return Tools{}, fmt.Errorf("freesurfer client: %w", err)
	}
	juliaClient, err := mritools.New(t.Julia, mritools.WithExecutor(exec))
	if err != nil {
		return Tools{}, fmt.Errorf("mritools client: %w", err)
	}
	return Tools{ANTs: antsClient, FSL: fslClient, FreeSurfer: fsClient, MRITools: juliaClient}, nil
}

// tracingExecutor logs every tool invocation at debug level with the
// subject, session and step carried by ctx.
type tracingExecutor struct {
	next   toolexec.Executor
	logger *slog.Logger
}

func (t tracingExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	logging.WithContext(ctx, t.logger).Debug("running tool", logging.Command(binary, args))
	return t.next.Run(ctx, binary, args, onOutput)
}

func (t tracingExecutor) Output(ctx context.Context, binary string, args []string) (string, error) {
	logging.WithContext(ctx, t.logger).Debug("running tool for output", logging.Command(binary, args))
	return t.next.Output(ctx, binary, args)
}
