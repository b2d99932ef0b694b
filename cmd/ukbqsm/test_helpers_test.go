package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ukbqsm/internal/config"
	"ukbqsm/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	testsupport.MkdirAll(t, homeDir)
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "ukbqsm", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string, opts ...contextOption) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(opts...)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	testsupport.MkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeReferences places the MNI template and SN masks in the data dir.
func (e *cliTestEnv) writeReferences(t *testing.T) {
	t.Helper()
	ref := e.cfg.Pipeline.Reference
	for _, name := range []string{ref.MNITemplate, ref.SNLeft, ref.SNRight} {
		testsupport.WriteFile(t, filepath.Join(e.cfg.Paths.DataDir, name), 16)
	}
}

func (e *cliTestEnv) writeInputs(t *testing.T, subject string, session int) {
	t.Helper()
	dir := e.cfg.SubjectInputDir(subject, session)
	in := e.cfg.Pipeline.Inputs
	for _, name := range []string{in.T1, in.Magnitude, in.QSM, in.Segmentation} {
		testsupport.WriteFile(t, filepath.Join(dir, name), 16)
	}
}

func (e *cliTestEnv) writeList(t *testing.T, name string, ids ...string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, name)
	content := ""
	if len(ids) > 0 {
		content = strings.Join(ids, "\n") + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write list %s: %v", name, err)
	}
	return path
}

// fakeTools records tool calls, creates every output file they name, and
// answers fslstats with a fixed voxel count and median.
func fakeTools() *testsupport.RecordingExecutor {
	return &testsupport.RecordingExecutor{
		Hook: testsupport.WriteProducedFiles,
		OutputFunc: func(call testsupport.Call) (string, error) {
			return fmt.Sprintf("%d %d.000000 %g\n", 50, 50, 0.0125), nil
		},
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
