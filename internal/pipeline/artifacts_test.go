package pipeline_test

import (
	"path/filepath"
	"testing"

	"ukbqsm/internal/config"
	"ukbqsm/internal/pipeline"
	"ukbqsm/internal/services/ants"
	"ukbqsm/internal/testsupport"
)

func TestNewArtifactsLayout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	a, err := pipeline.NewArtifacts(cfg, "1000011", 2)
	if err != nil {
		t.Fatalf("NewArtifacts: %v", err)
	}

	work := filepath.Join(cfg.Paths.WorkDir, "sub-1000011", "ses-2")
	in := filepath.Join(cfg.Paths.InputDir, "1000011_2")
	checks := map[string][2]string{
		"work dir":   {a.WorkDir, work},
		"lock":       {a.LockPath, filepath.Join(work, pipeline.LockFileName)},
		"marker":     {a.Marker, filepath.Join(work, config.CompletionMarker)},
		"t1":         {a.T1, filepath.Join(in, "T1.nii.gz")},
		"aseg input": {a.Segmentation, filepath.Join(in, "aseg.mgz")},
		"mni":        {a.MNITemplate, filepath.Join(cfg.Paths.DataDir, "MNI152_T1_1mm.nii.gz")},
		"warped":     {a.MagToT1.Warped, filepath.Join(work, "mag2T1_Warped.nii.gz")},
		"affine":     {a.T1ToMNI.Affine, filepath.Join(work, "T12MNI_0GenericAffine.mat")},
		"region":     {a.RegionMask("Left-Thalamus-Proper"), filepath.Join(work, "masks", "region_left-thalamus-proper.nii.gz")},
		"lesions":    {a.Lesions, filepath.Join(in, "lesions.nii.gz")},
		"regions":    {a.RegionsTable, filepath.Join(cfg.Paths.DataDir, "regions.yaml")},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %q, want %q", name, c[0], c[1])
		}
	}
	if a.Transform != ants.TransformSyN {
		t.Fatalf("default transform = %q", a.Transform)
	}
	if a.RegistrationMoving() != a.CorrectedMagnitude {
		t.Fatal("correction enabled: registration should use corrected magnitude")
	}
}

func TestNewArtifactsRejectsBadSubject(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	for _, subject := range []string{"", "../etc", "a b"} {
		if _, err := pipeline.NewArtifacts(cfg, subject, 2); err == nil {
			t.Fatalf("expected error for subject %q", subject)
		}
	}
	if _, err := pipeline.NewArtifacts(cfg, "1000011", -1); err == nil {
		t.Fatal("expected error for negative session")
	}
}

func TestOverridesApply(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dataDir := t.TempDir()

	out, err := pipeline.Overrides{NoCorrection: true, Transform: "AFFINE", Threads: 12, DataDir: dataDir}.Apply(cfg)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Pipeline.Correction || out.Pipeline.Transform != config.TransformAffine || out.Pipeline.Threads != 12 || out.Paths.DataDir != dataDir {
		t.Fatalf("overrides not applied: %+v", out.Pipeline)
	}
	if !cfg.Pipeline.Correction || cfg.Pipeline.Transform != config.TransformDeformable {
		t.Fatal("source config was modified")
	}
	if _, err := (pipeline.Overrides{Transform: "rigid"}).Apply(cfg); err == nil {
		t.Fatal("expected invalid transform error")
	}
}
