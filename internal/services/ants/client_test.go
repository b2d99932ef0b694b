package ants_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"ukbqsm/internal/services/ants"
)

type stubExecutor struct {
	err     error
	calls   int
	binary  string
	args    [][]string
	outputs []string
}

func (s *stubExecutor) Run(_ context.Context, binary string, args []string, onOutput func(string)) error {
	s.calls++
	s.binary = binary
	s.args = append(s.args, append([]string(nil), args...))
	for _, path := range s.outputs {
		if err := os.WriteFile(path, []byte("nii"), 0o644); err != nil {
			return err
		}
	}
	if onOutput != nil {
		onOutput("done")
	}
	return s.err
}

func (s *stubExecutor) Output(context.Context, string, []string) (string, error) {
	return "", errors.New("not used")
}

func TestRegisterBuildsArgsAndChecksOutput(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "mag2T1_")
	exec := &stubExecutor{outputs: []string{prefix + "Warped.nii.gz"}}
	client, err := ants.New("antsRegistrationSyNQuick.sh", "antsApplyTransforms", ants.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := client.Register(context.Background(), ants.Registration{
		Fixed: "T1.nii.gz", Moving: "mag.nii.gz", Prefix: prefix,
		Transform: ants.TransformAffine, Threads: 6,
	}, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	want := []string{"-d", "3", "-f", "T1.nii.gz", "-m", "mag.nii.gz", "-o", prefix, "-t", "a", "-n", "6"}
	if !slices.Equal(exec.args[0], want) {
		t.Fatalf("args = %v, want %v", exec.args[0], want)
	}
	if exec.binary != "antsRegistrationSyNQuick.sh" {
		t.Fatalf("unexpected binary %q", exec.binary)
	}
	if out.Affine != prefix+"0GenericAffine.mat" || out.Warp != prefix+"1Warp.nii.gz" {
		t.Fatalf("unexpected outputs: %+v", out)
	}
}

func TestRegisterFailsWithoutWarpedImage(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "mag2T1_")
	client, _ := ants.New("reg", "apply", ants.WithExecutor(&stubExecutor{}))
	_, err := client.Register(context.Background(), ants.Registration{Fixed: "f", Moving: "m", Prefix: prefix}, nil)
	if err == nil || !strings.Contains(err.Error(), "no warped image") {
		t.Fatalf("expected missing output error, got %v", err)
	}
}

func TestRegisterPropagatesExecutorError(t *testing.T) {
	client, _ := ants.New("reg", "apply", ants.WithExecutor(&stubExecutor{err: errors.New("boom")}))
	_, err := client.Register(context.Background(), ants.Registration{Fixed: "f", Moving: "m", Prefix: "p_"}, nil)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected executor error, got %v", err)
	}
}

func TestForwardTransformsOrder(t *testing.T) {
	out := ants.OutputsFor("x_")
	if got := out.ForwardTransforms(ants.TransformSyN); !slices.Equal(got, []string{"x_1Warp.nii.gz", "x_0GenericAffine.mat"}) {
		t.Fatalf("deformable transforms = %v", got)
	}
	if got := out.ForwardTransforms(ants.TransformAffine); !slices.Equal(got, []string{"x_0GenericAffine.mat"}) {
		t.Fatalf("affine transforms = %v", got)
	}
}

func TestApplyTransforms(t *testing.T) {
	output := filepath.Join(t.TempDir(), "qsm_T1.nii.gz")
	exec := &stubExecutor{outputs: []string{output}}
	client, _ := ants.New("reg", "antsApplyTransforms", ants.WithExecutor(exec))

	err := client.ApplyTransforms(context.Background(), ants.Apply{
		Input: "QSM.nii.gz", Reference: "T1.nii.gz", Output: output,
		Transforms: []string{"w.nii.gz", "a.mat"},
	}, nil)
	if err != nil {
		t.Fatalf("ApplyTransforms: %v", err)
	}
	want := []string{"-d", "3", "-i", "QSM.nii.gz", "-r", "T1.nii.gz", "-o", output, "-n", "Linear", "-t", "w.nii.gz", "-t", "a.mat"}
	if !slices.Equal(exec.args[0], want) {
		t.Fatalf("args = %v, want %v", exec.args[0], want)
	}

	if err := client.ApplyTransforms(context.Background(), ants.Apply{Input: "a", Reference: "b", Output: "c"}, nil); err == nil {
		t.Fatal("expected error without transforms")
	}
}
