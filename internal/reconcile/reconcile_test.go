package reconcile_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ukbqsm/internal/config"
	"ukbqsm/internal/fileutil"
	"ukbqsm/internal/logging"
	"ukbqsm/internal/reconcile"
	"ukbqsm/internal/report"
	"ukbqsm/internal/services"
	"ukbqsm/internal/subjects"
	"ukbqsm/internal/testsupport"
)

func seedBulk(t *testing.T, cfg *config.Config) {
	t.Helper()
	bulk := cfg.Paths.BulkRoot
	testsupport.WriteArchives(t, filepath.Join(bulk, "20252"), "20252", "1000011", "1000023", "1000045", "1000099")
	testsupport.WriteArchives(t, filepath.Join(bulk, "20251"), "20251", "1000011", "1000023", "1000045", "1000099")
	testsupport.WriteArchives(t, filepath.Join(bulk, "20253"), "20253", "1000011", "1000023")
	testsupport.WriteArchives(t, filepath.Join(bulk, "20263"), "20263", "1000011", "1000023", "1000099")
	for _, id := range []string{"1000011", "1000077"} {
		testsupport.WriteFile(t, cfg.SubjectCompletionMarker(id, 2), 8)
	}
	// An unfinished session leaves a work directory without a marker.
	testsupport.MkdirAll(t, filepath.Join(cfg.SubjectWorkDir("1000023", 2), "masks"))
}

func TestRunWritesListsAndSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	seedBulk(t, cfg)

	result, err := reconcile.Run(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RunID == "" {
		t.Fatal("expected run id")
	}

	want := map[string]subjects.List{
		"t1":          {"1000011", "1000023", "1000045", "1000099"},
		"flair":       {"1000011", "1000023"},
		"processed":   {"1000011", "1000077"},
		"core":        {"1000011", "1000023"},
		"todo":        {"1000023"},
		"stale":       {"1000077"},
		"t1_swi_aseg": {"1000011", "1000023", "1000099"},
		"no_flair":    {"1000099"},
	}
	for name, list := range want {
		got, err := subjects.ReadList(reconcile.ListPath(cfg.Paths.ListsDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !got.Equal(list) {
			t.Fatalf("%s = %v, want %v", name, got, list)
		}
		if n, ok := result.Count(name); !ok || n != list.Len() {
			t.Fatalf("result count for %s = %d, want %d", name, n, list.Len())
		}
	}

	if err := result.Verify(cfg.Paths.ListsDir); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	summary, err := reconcile.VerifySummary(cfg.Paths.ListsDir)
	if err != nil {
		t.Fatalf("VerifySummary: %v", err)
	}
	if summary.RunID != result.RunID {
		t.Fatalf("summary run id %q, want %q", summary.RunID, result.RunID)
	}
	if len(summary.Entries) != len(cfg.Fields)+len(cfg.Derived) {
		t.Fatalf("summary has %d entries", len(summary.Entries))
	}
	if summary.Entries[0].Kind != report.KindField {
		t.Fatalf("expected fields first, got %+v", summary.Entries[0])
	}
}

func TestFailedRunLeavesPreviousListsIntact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	seedBulk(t, cfg)
	first, err := reconcile.Run(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	testsupport.WriteArchives(t, filepath.Join(cfg.Paths.BulkRoot, "20252"), "20252", "1000123")
	flair := filepath.Join(cfg.Paths.BulkRoot, "20253")
	if err := os.RemoveAll(flair); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, flair, 8)

	if _, err := reconcile.Run(context.Background(), cfg, logging.NewNop()); err == nil {
		t.Fatal("expected run to fail when a field directory is a file")
	}
	summary, err := reconcile.VerifySummary(cfg.Paths.ListsDir)
	if err != nil {
		t.Fatalf("VerifySummary after failed run: %v", err)
	}
	if summary.RunID != first.RunID {
		t.Fatalf("summary run id %q, want previous %q", summary.RunID, first.RunID)
	}
	t1, err := subjects.ReadList(reconcile.ListPath(cfg.Paths.ListsDir, "t1"))
	if err != nil {
		t.Fatalf("read t1: %v", err)
	}
	if t1.Contains("1000123") {
		t.Fatalf("t1 list was rewritten by the failed run: %v", t1)
	}
}

func TestUnfinishedWorkDirStaysTodo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	seedBulk(t, cfg)

	result, err := reconcile.Run(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Lists["processed"].Contains("1000023") {
		t.Fatalf("unfinished subject counted as processed: %v", result.Lists["processed"])
	}
	if !result.Lists["todo"].Contains("1000023") {
		t.Fatalf("unfinished subject dropped from todo: %v", result.Lists["todo"])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	seedBulk(t, cfg)

	first, err := reconcile.Run(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := reconcile.Run(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatal("expected fresh run id per run")
	}
	for name, list := range first.Lists {
		if !second.Lists[name].Equal(list) {
			t.Fatalf("%s changed between runs", name)
		}
	}
}

func TestRunWithMissingDirectoriesWritesEmptyLists(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	result, err := reconcile.Run(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, e := range result.Entries {
		if e.Count != 0 {
			t.Fatalf("expected empty %s, got %d", e.Name, e.Count)
		}
		data, err := os.ReadFile(reconcile.ListPath(cfg.Paths.ListsDir, e.Name))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name, err)
		}
		if len(data) != 0 {
			t.Fatalf("expected empty file for %s, got %q", e.Name, data)
		}
	}
}

func TestRunFailsWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	lock, err := fileutil.TryLock(filepath.Join(cfg.Paths.ListsDir, reconcile.LockFileName))
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	defer lock.Unlock()

	_, err = reconcile.Run(context.Background(), cfg, logging.NewNop())
	if !errors.Is(err, fileutil.ErrLocked) {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestVerifyDetectsDrift(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	seedBulk(t, cfg)
	if _, err := reconcile.Run(context.Background(), cfg, logging.NewNop()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	core := reconcile.ListPath(cfg.Paths.ListsDir, "core")
	if err := os.WriteFile(core, []byte("1000011\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := reconcile.VerifySummary(cfg.Paths.ListsDir)
	var drift *reconcile.DriftError
	if !errors.As(err, &drift) {
		t.Fatalf("expected DriftError, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected drift to classify as validation, got %v", err)
	}
	if !strings.Contains(err.Error(), "core") {
		t.Fatalf("expected drift to name core, got %v", err)
	}
}
