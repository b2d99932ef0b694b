package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"ukbqsm/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The default field set points at <base>/bulk/<code> and the processed field
// at the work directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths = config.Paths{
		BulkRoot:   filepath.Join(base, "bulk"),
		ListsDir:   filepath.Join(base, "lists"),
		InputDir:   filepath.Join(base, "inputs"),
		WorkDir:    filepath.Join(base, "work"),
		DataDir:    filepath.Join(base, "data"),
		LogDir:     filepath.Join(base, "logs"),
		IDPFile:    filepath.Join(base, "work", "qsm_idps.csv"),
		LedgerPath: filepath.Join(base, "ledger.db"),
	}
	for i := range cfgVal.Fields {
		f := &cfgVal.Fields[i]
		if f.Flat() {
			f.Dirs = []string{cfgVal.Paths.WorkDir}
			continue
		}
		f.Dirs = []string{filepath.Join(cfgVal.Paths.BulkRoot, f.Code)}
		f.Extension = ".zip"
		f.Delimiter = "_"
		f.MaxDepth = 2
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithTransform sets the registration transform.
func WithTransform(transform string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Transform = transform
	}
}

// WithoutCorrection disables homogeneity correction.
func WithoutCorrection() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Correction = false
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, every configured tool is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			tools := b.cfg.Tools
			names = []string{
				tools.ANTsRegistration, tools.ANTsApply,
				tools.FSLMaths, tools.FSLStats,
				tools.MRIConvert, tools.MRIBinarize,
				tools.Julia,
			}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ListsDir)
}
