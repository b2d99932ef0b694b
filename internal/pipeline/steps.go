package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"ukbqsm/internal/fileutil"
	"ukbqsm/internal/idp"
	"ukbqsm/internal/logging"
	"ukbqsm/internal/services"
	"ukbqsm/internal/services/ants"
	"ukbqsm/internal/services/fsl"
)

// Step names in execution order.
const (
	StepCheckInputs     = "check-inputs"
	StepCorrect         = "correct"
	StepConvertAseg     = "convert-aseg"
	StepRegisterMag     = "register-mag"
	StepWarpQSMT1       = "warp-qsm-t1"
	StepRegisterMNI     = "register-mni"
	StepWarpQSMMNI      = "warp-qsm-mni"
	StepVentricles      = "ventricles"
	StepRegions         = "regions"
	StepSubstantiaNigra = "substantia-nigra"
	StepWhiteMatter     = "white-matter"
	StepWriteIDP        = "write-idp"
)

// StepNames returns every step in execution order.
func StepNames() []string {
	steps := buildSteps()
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.name)
	}
	return out
}

// state is the mutable context shared by steps within one run.
type state struct {
	artifacts    Artifacts
	tools        Tools
	erode        bool
	threads      int
	sigmaMM      float64
	regions      []Region
	customTable  bool
	hasLesions   bool
	measurements *Measurements
	logger       *slog.Logger
}

func (s *state) toolOutput(line string) {
	s.logger.Debug("tool output", logging.String("line", line))
}

type step struct {
	name string
	// skip reports a reason to skip the step, or "" to run it.
	skip func(*state) string
	run  func(context.Context, *state) error
}

func buildSteps() []step {
	return []step{
		{name: StepCheckInputs, run: checkInputs},
		{name: StepCorrect, skip: skipCorrection, run: correctMagnitude},
		{name: StepConvertAseg, run: convertAseg},
		{name: StepRegisterMag, run: registerMagnitude},
		{name: StepWarpQSMT1, run: warpQSMToT1},
		{name: StepRegisterMNI, run: registerMNI},
		{name: StepWarpQSMMNI, run: warpQSMToMNI},
		{name: StepVentricles, run: measureVentricles},
		{name: StepRegions, run: measureRegions},
		{name: StepSubstantiaNigra, run: measureSubstantiaNigra},
		{name: StepWhiteMatter, skip: skipWhiteMatter, run: measureWhiteMatter},
		{name: StepWriteIDP, run: writeIDP},
	}
}

func checkInputs(_ context.Context, s *state) error {
	a := s.artifacts
	var missing []string
	for _, path := range a.RequiredInputs() {
		if !fileutil.NonEmpty(path) {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "pipeline", StepCheckInputs,
			fmt.Sprintf("missing required inputs %v", missing), nil)
	}

	regions, custom, err := LoadRegions(a.RegionsTable)
	if err != nil {
		return services.Wrap(services.ErrValidation, "pipeline", StepCheckInputs, "load region table", err)
	}
	m, err := newMeasurements(regions)
	if err != nil {
		return services.Wrap(services.ErrValidation, "pipeline", StepCheckInputs, "region columns", err)
	}
	s.regions = regions
	s.customTable = custom
	s.measurements = m
	s.hasLesions = fileutil.NonEmpty(a.Lesions)

	s.logger.Info("inputs verified",
		logging.Int("regions", len(regions)),
		logging.Bool("custom_region_table", custom),
		logging.Bool("lesions", s.hasLesions),
		logging.String("transform", string(a.Transform)),
	)
	return nil
}

func skipCorrection(s *state) string {
	if !s.artifacts.Correction {
		return "homogeneity correction disabled"
	}
	return ""
}

func correctMagnitude(ctx context.Context, s *state) error {
	a := s.artifacts
	return s.tools.MRITools.MakeHomogeneous(ctx, a.Magnitude, a.CorrectedMagnitude, s.sigmaMM, s.toolOutput)
}

func convertAseg(ctx context.Context, s *state) error {
	a := s.artifacts
	return s.tools.FreeSurfer.Convert(ctx, a.Segmentation, a.Aseg, a.T1)
}

func registerMagnitude(ctx context.Context, s *state) error {
	a := s.artifacts
	_, err := s.tools.ANTs.Register(ctx, ants.Registration{
		Fixed:     a.T1,
		Moving:    a.RegistrationMoving(),
		Prefix:    a.MagToT1.Prefix,
		Transform: a.Transform,
		Threads:   s.threads,
	}, s.toolOutput)
	return err
}

func warpQSMToT1(ctx context.Context, s *state) error {
	a := s.artifacts
	return s.tools.ANTs.ApplyTransforms(ctx, ants.Apply{
		Input:         a.QSM,
		Reference:     a.T1,
		Output:        a.QSMInT1,
		Interpolation: ants.InterpolationLinear,
		Transforms:    a.MagToT1.ForwardTransforms(a.Transform),
	}, s.toolOutput)
}

func registerMNI(ctx context.Context, s *state) error {
	a := s.artifacts
	_, err := s.tools.ANTs.Register(ctx, ants.Registration{
		Fixed:     a.MNITemplate,
		Moving:    a.T1,
		Prefix:    a.T1ToMNI.Prefix,
		Transform: a.Transform,
		Threads:   s.threads,
	}, s.toolOutput)
	return err
}

func warpQSMToMNI(ctx context.Context, s *state) error {
	a := s.artifacts
	return s.tools.ANTs.ApplyTransforms(ctx, ants.Apply{
		Input:         a.QSMInT1,
		Reference:     a.MNITemplate,
		Output:        a.QSMInMNI,
		Interpolation: ants.InterpolationLinear,
		Transforms:    a.T1ToMNI.ForwardTransforms(a.Transform),
	}, s.toolOutput)
}

func measureVentricles(ctx context.Context, s *state) error {
	a := s.artifacts
	if err := s.tools.FreeSurfer.Ventricles(ctx, a.Aseg, a.Ventricles); err != nil {
		return err
	}
	return s.median(ctx, ColumnVentricles, a.QSMInT1, a.Ventricles, false)
}

func measureRegions(ctx context.Context, s *state) error {
	a := s.artifacts
	for _, r := range s.regions {
		mask := a.RegionMask(r.Name)
		if err := s.tools.FSL.ThresholdMask(ctx, fsl.Threshold{
			Input:  a.Aseg,
			Lower:  r.Lower,
			Upper:  r.Upper,
			Erode:  r.ShouldErode(s.erode),
			Output: mask,
		}); err != nil {
			return fmt.Errorf("region %s: %w", r.Name, err)
		}
		if err := s.median(ctx, r.Name, a.QSMInT1, mask, false); err != nil {
			return fmt.Errorf("region %s: %w", r.Name, err)
		}
	}
	return nil
}

func measureSubstantiaNigra(ctx context.Context, s *state) error {
	a := s.artifacts
	if err := s.median(ctx, ColumnSNLeft, a.QSMInMNI, a.SNLeft, true); err != nil {
		return err
	}
	return s.median(ctx, ColumnSNRight, a.QSMInMNI, a.SNRight, true)
}

func skipWhiteMatter(s *state) string {
	if !s.hasLesions {
		return "no lesion mask"
	}
	return ""
}

func measureWhiteMatter(ctx context.Context, s *state) error {
	a := s.artifacts
	f := s.tools.FSL

	if err := f.BinarizeAt(ctx, a.Lesions, 1, a.WMHMask); err != nil {
		return err
	}
	if err := s.median(ctx, ColumnWMH, a.QSMInT1, a.WMHMask, false); err != nil {
		return err
	}

	if err := f.BinarizeAt(ctx, a.Aseg, 2, a.WMLeft); err != nil {
		return err
	}
	if err := f.BinarizeAt(ctx, a.Aseg, 41, a.WMRight); err != nil {
		return err
	}
	if err := f.AddMasks(ctx, a.WMLeft, a.WMRight, a.WMMask); err != nil {
		return err
	}
	if err := s.median(ctx, ColumnWM, a.QSMInT1, a.WMMask, false); err != nil {
		return err
	}

	if err := f.Binarize(ctx, a.Lesions, a.LesionsBinary); err != nil {
		return err
	}
	if err := f.SubtractMask(ctx, a.WMMask, a.LesionsBinary, a.WMNoLesionMask); err != nil {
		return err
	}
	if err := s.median(ctx, ColumnWMNoLesions, a.QSMInT1, a.WMNoLesionMask, false); err != nil {
		return err
	}

	m := s.measurements
	wmh := m.Get(ColumnWMH)
	if err := m.Set(ColumnDiffWM, m.Get(ColumnWM)-wmh); err != nil {
		return err
	}
	return m.Set(ColumnDiffWMNoLesions, m.Get(ColumnWMNoLesions)-wmh)
}

func writeIDP(_ context.Context, s *state) error {
	a := s.artifacts
	if err := idp.AppendRow(a.IDPFile, s.measurements.Row(a.Subject, a.Session)); err != nil {
		return services.Wrap(services.ErrValidation, "pipeline", StepWriteIDP, "append idp row", err)
	}
	return nil
}

func (s *state) median(ctx context.Context, column, image, mask string, positiveOnly bool) error {
	v, err := s.tools.FSL.Median(ctx, image, mask, positiveOnly)
	if err != nil {
		return err
	}
	s.logger.Debug("measurement recorded",
		logging.String("column", column),
		logging.Float64("median", v),
	)
	return s.measurements.Set(column, v)
}
