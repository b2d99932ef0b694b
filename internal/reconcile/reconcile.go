package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ukbqsm/internal/config"
	"ukbqsm/internal/fileutil"
	"ukbqsm/internal/logging"
	"ukbqsm/internal/report"
	"ukbqsm/internal/services"
	"ukbqsm/internal/subjects"
)

// LockFileName is the lock taken inside the lists directory.
const LockFileName = ".reconcile.lock"

// Result describes a completed reconciliation.
type Result struct {
	RunID       string
	GeneratedAt time.Time
	ListsDir    string
	Entries     []report.Entry
	Lists       map[string]subjects.List
}

// Count returns the reported count for a list.
func (r Result) Count(name string) (int, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.Count, true
		}
	}
	return 0, false
}

// Summary returns the report form of the result.
func (r Result) Summary() report.Summary {
	return report.Summary{RunID: r.RunID, GeneratedAt: r.GeneratedAt, Entries: r.Entries}
}

// ListPath returns the file holding list name inside listsDir.
func ListPath(listsDir, name string) string {
	return filepath.Join(listsDir, name+".txt")
}

// Run performs a reconciliation using cfg.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Result, error) {
	if cfg == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "reconcile", "load", "configuration required", nil)
	}
	graph, err := cfg.SetGraph()
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "reconcile", "build graph", "", err)
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "reconcile"))

	listsDir := cfg.Paths.ListsDir
	if err := os.MkdirAll(listsDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "reconcile", "prepare", "create lists directory", err)
	}
	lock, err := fileutil.TryLock(filepath.Join(listsDir, LockFileName))
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "reconcile", "lock", "another reconciliation is running", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("failed to release reconcile lock", logging.Error(err))
		}
	}()

	result := Result{
		RunID:    runID,
		ListsDir: listsDir,
		Lists:    make(map[string]subjects.List, len(cfg.Fields)+len(cfg.Derived)),
	}

	// Every list is computed before any file is replaced so a failed run
	// leaves the previous lists and summary consistent.
	fields := make(map[string]subjects.List, len(cfg.Fields))
	for _, field := range cfg.Fields {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		list, err := ExtractField(field, log)
		if err != nil {
			return Result{}, services.Wrap(services.ErrValidation, "reconcile", "extract "+field.Name, "", err)
		}
		fields[field.Name] = list
		result.Lists[field.Name] = list
		result.Entries = append(result.Entries, report.Entry{
			Name:       field.Name,
			Kind:       report.KindField,
			Definition: fieldDefinition(field),
			Count:      list.Len(),
		})
		log.Info("field list extracted",
			logging.String("list", field.Name),
			logging.Int("count", list.Len()),
			logging.Strings("dirs", field.Dirs),
		)
	}

	derived, err := graph.Evaluate(fields)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "reconcile", "evaluate graph", "", err)
	}
	for _, node := range graph.Nodes() {
		list := derived[node.Name]
		result.Lists[node.Name] = list
		result.Entries = append(result.Entries, report.Entry{
			Name:       node.Name,
			Kind:       report.KindDerived,
			Definition: node.Definition(),
			Count:      list.Len(),
		})
		log.Info("derived list computed",
			logging.String("list", node.Name),
			logging.String("definition", node.Definition()),
			logging.Int("count", list.Len()),
		)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	for _, e := range result.Entries {
		if err := subjects.WriteList(ListPath(listsDir, e.Name), result.Lists[e.Name]); err != nil {
			return Result{}, services.Wrap(services.ErrValidation, "reconcile", "write "+e.Name, "", err)
		}
	}

	result.GeneratedAt = time.Now().UTC().Truncate(time.Second)
	summaryPath := filepath.Join(listsDir, report.FileName)
	if err := report.Write(summaryPath, result.Summary()); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "reconcile", "write summary", "", err)
	}
	log.Info("reconciliation complete",
		logging.String("summary", summaryPath),
		logging.Int("lists", len(result.Entries)),
	)
	return result, nil
}

// ExtractField scans the directories of one configured field.
func ExtractField(field config.Field, logger *slog.Logger) (subjects.List, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	for _, dir := range field.Dirs {
		ok, err := fileutil.Exists(dir)
		switch {
		case err != nil:
			logger.Warn("field directory not accessible",
				logging.String("list", field.Name),
				logging.String("dir", dir),
				logging.Error(err),
			)
		case !ok:
			logger.Debug("field directory missing; contributes no subjects",
				logging.String("list", field.Name),
				logging.String("dir", dir),
			)
		}
	}
	if field.Flat() {
		return subjects.ExtractMarked(field.Dirs, field.Prefix, field.Marker)
	}
	return subjects.ExtractArchives(field.Dirs, field.ArchiveOptions())
}

func fieldDefinition(field config.Field) string {
	if field.Flat() {
		if field.Marker != "" {
			return field.Prefix + "* entries with " + field.Marker
		}
		return field.Prefix + "* entries"
	}
	if field.Code != "" {
		return "field " + field.Code
	}
	return "*" + field.Extension + " in " + strings.Join(baseNames(field.Dirs), ", ")
}

func baseNames(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, filepath.Base(p))
	}
	return out
}

// Verify re-reads every list file and checks it against the reported counts.
func (r Result) Verify(listsDir string) error {
	return verifyEntries(listsDir, r.Entries)
}

// VerifySummary reads the summary in listsDir and checks every list file
// against it.
func VerifySummary(listsDir string) (report.Summary, error) {
	summary, err := report.Read(filepath.Join(listsDir, report.FileName))
	if err != nil {
		return report.Summary{}, services.Wrap(services.ErrNotFound, "verify", "read summary", "", err)
	}
	if err := verifyEntries(listsDir, summary.Entries); err != nil {
		return summary, err
	}
	return summary, nil
}

// DriftError lists lists whose files disagree with the report.
type DriftError struct {
	Problems []string
}

func (e *DriftError) Error() string {
	return "subject lists drifted from summary: " + strings.Join(e.Problems, "; ")
}

func (e *DriftError) Unwrap() error { return services.ErrValidation }

func verifyEntries(listsDir string, entries []report.Entry) error {
	var problems []string
	for _, e := range entries {
		path := ListPath(listsDir, e.Name)
		list, err := subjects.ReadList(path)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", e.Name, err))
			continue
		}
		if list.Len() != e.Count {
			problems = append(problems, fmt.Sprintf("%s: file has %d ids, summary reports %d", e.Name, list.Len(), e.Count))
		}
	}
	if len(problems) > 0 {
		return &DriftError{Problems: problems}
	}
	return nil
}
