package preflight

import (
	"fmt"
	"path/filepath"
	"strings"

	"ukbqsm/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every directory and reference-data check for cfg.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{CheckDirectoryAccess("Lists directory", cfg.Paths.ListsDir)}
	results = append(results, ForPipeline(cfg)...)
	for _, f := range cfg.Fields {
		for i, dir := range f.Dirs {
			name := fmt.Sprintf("Field %s", f.Name)
			if len(f.Dirs) > 1 {
				name = fmt.Sprintf("Field %s [%d]", f.Name, i+1)
			}
			results = append(results, CheckDirectoryReadable(name, dir))
		}
	}
	return results
}

// ForPipeline runs the checks a per-subject run depends on.
func ForPipeline(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	ref := cfg.Pipeline.Reference
	data := cfg.Paths.DataDir
	return []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryReadable("Input directory", cfg.Paths.InputDir),
		CheckDirectoryReadable("Data directory", data),
		CheckFileReadable("MNI template", filepath.Join(data, ref.MNITemplate)),
		CheckFileReadable("SN left mask", filepath.Join(data, ref.SNLeft)),
		CheckFileReadable("SN right mask", filepath.Join(data, ref.SNRight)),
	}
}

// Failed returns the failed results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Summary joins failed result names for error messages.
func Summary(results []Result) string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}
