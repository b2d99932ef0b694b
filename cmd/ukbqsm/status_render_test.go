package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"ukbqsm/internal/deps"
	"ukbqsm/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("fslstats", statusError, "not found", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "fslstats:", "[ERROR] not found")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("fslstats", statusOK, "Ready", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "fslmaths", Available: false, Detail: `binary "fslmaths" not found`},
		{Name: "mri_convert", Available: true, Command: "mri_convert"},
		{Name: "Julia", Available: false, Optional: true},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[ERROR] 1 required dependency missing") {
		t.Fatalf("expected summary line first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], `[ERROR] binary "fslmaths" not found`) {
		t.Fatalf("expected error detail in second line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (command: mri_convert)") {
		t.Fatalf("expected ready detail in third line, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "[WARN] not available") {
		t.Fatalf("expected warn detail in fourth line, got %q", lines[3])
	}
	if !strings.Contains(lines[4], "Missing dependencies:") || !strings.Contains(lines[4], "fslmaths, Julia") {
		t.Fatalf("expected missing dependencies summary, got %q", lines[4])
	}
}

func TestDependencyLinesAllReady(t *testing.T) {
	lines := dependencyLines([]deps.Status{{Name: "fslstats", Available: true}}, false)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	if !strings.Contains(lines[0], "[OK] All dependencies available") || !strings.Contains(lines[1], "[OK] Ready") {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestPreflightLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "Work directory", Passed: true, Detail: "writable"},
		{Name: "MNI template", Passed: false, Detail: "missing"},
	}, false)
	if !strings.Contains(lines[0], "[OK] writable") || !strings.Contains(lines[1], "[ERROR] missing") {
		t.Fatalf("unexpected preflight lines %v", lines)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader(" Preflight ", false)
	if lines[0] != "== Preflight ==" || lines[1] != strings.Repeat("-", len(lines[0])) {
		t.Fatalf("unexpected header %v", lines)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"List", "Count"}, [][]string{{"core"}, {"todo", "3"}}, []columnAlignment{alignLeft, alignRight})
	requireContains(t, out, "core")
	requireContains(t, out, "3")
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
