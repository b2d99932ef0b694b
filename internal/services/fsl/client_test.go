package fsl_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"ukbqsm/internal/services/fsl"
)

type stubExecutor struct {
	args   [][]string
	output string
	err    error
}

func (s *stubExecutor) Run(_ context.Context, _ string, args []string, _ func(string)) error {
	s.args = append(s.args, append([]string(nil), args...))
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(args[len(args)-1], []byte("mask"), 0o644)
}

func (s *stubExecutor) Output(_ context.Context, _ string, args []string) (string, error) {
	s.args = append(s.args, append([]string(nil), args...))
	return s.output, s.err
}

func newClient(t *testing.T, exec *stubExecutor) *fsl.Client {
	t.Helper()
	client, err := fsl.New("fslmaths", "fslstats", fsl.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestThresholdMaskArgs(t *testing.T) {
	exec := &stubExecutor{}
	client := newClient(t, exec)
	out := filepath.Join(t.TempDir(), "Left-Thalamus.nii.gz")

	if err := client.ThresholdMask(context.Background(), fsl.Threshold{Input: "aseg.nii.gz", Lower: 10, Upper: 10, Erode: true, Output: out}); err != nil {
		t.Fatalf("ThresholdMask: %v", err)
	}
	want := []string{"aseg.nii.gz", "-thr", "10", "-uthr", "10", "-bin", "-kernel", "2D", "-ero", out}
	if !slices.Equal(exec.args[0], want) {
		t.Fatalf("args = %v, want %v", exec.args[0], want)
	}

	if got := fsl.ThresholdArgs(fsl.Threshold{Input: "a", Lower: 2, Upper: 2, Output: "o"}); slices.Contains(got, "-ero") {
		t.Fatalf("erosion should be omitted: %v", got)
	}
}

func TestThresholdMaskRejectsInvertedRange(t *testing.T) {
	client := newClient(t, &stubExecutor{})
	if err := client.ThresholdMask(context.Background(), fsl.Threshold{Input: "a", Lower: 5, Upper: 4, Output: "o"}); err == nil {
		t.Fatal("expected error for lower > upper")
	}
}

func TestSubtractMaskArgs(t *testing.T) {
	exec := &stubExecutor{}
	client := newClient(t, exec)
	out := filepath.Join(t.TempDir(), "wm_no_lesions.nii.gz")
	if err := client.SubtractMask(context.Background(), "wm.nii.gz", "lesions.nii.gz", out); err != nil {
		t.Fatalf("SubtractMask: %v", err)
	}
	want := []string{"wm.nii.gz", "-sub", "lesions.nii.gz", "-thr", "0", "-bin", out}
	if !slices.Equal(exec.args[0], want) {
		t.Fatalf("args = %v, want %v", exec.args[0], want)
	}
}

func TestMedian(t *testing.T) {
	exec := &stubExecutor{output: "1532 1532.000000 0.012500 \n"}
	client := newClient(t, exec)

	got, err := client.Median(context.Background(), "qsm_MNI.nii.gz", "SN_left.nii.gz", true)
	if err != nil {
		t.Fatalf("Median: %v", err)
	}
	if got != 0.0125 {
		t.Fatalf("median = %v, want 0.0125", got)
	}
	want := []string{"qsm_MNI.nii.gz", "-k", "SN_left.nii.gz", "-l", "0", "-V", "-P", "50"}
	if !slices.Equal(exec.args[0], want) {
		t.Fatalf("args = %v, want %v", exec.args[0], want)
	}
}

func TestMedianEmptyMaskIsNaN(t *testing.T) {
	client := newClient(t, &stubExecutor{output: "0 0.000000 0.000000"})
	got, err := client.Median(context.Background(), "img", "mask", false)
	if err != nil {
		t.Fatalf("Median: %v", err)
	}
	if !math.IsNaN(got) {
		t.Fatalf("expected NaN, got %v", got)
	}
}

func TestParseStatsRejectsGarbage(t *testing.T) {
	for _, out := range []string{"", "12", "x 1 2", "1 2 y"} {
		if _, err := fsl.ParseStats(out); !errors.Is(err, fsl.ErrUnexpectedOutput) {
			t.Fatalf("ParseStats(%q) error = %v", out, err)
		}
	}
}

func TestBinarizeAtArgs(t *testing.T) {
	exec := &stubExecutor{}
	client := newClient(t, exec)
	out := filepath.Join(t.TempDir(), "wmh.nii.gz")
	if err := client.BinarizeAt(context.Background(), "lesions.nii.gz", 1, out); err != nil {
		t.Fatalf("BinarizeAt: %v", err)
	}
	want := []string{"lesions.nii.gz", "-thr", "1", "-uthr", "1", "-bin", out}
	if !slices.Equal(exec.args[0], want) {
		t.Fatalf("args = %v, want %v", exec.args[0], want)
	}
}
