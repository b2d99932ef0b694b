package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"ukbqsm/internal/ledger"
	"ukbqsm/internal/services"
	"ukbqsm/internal/testsupport"
)

func TestStartCompleteLifecycle(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()

	run, err := store.Start(ctx, "run-1", "1000011", 2)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.ID == 0 || run.Status != ledger.StatusRunning {
		t.Fatalf("unexpected run: %#v", run)
	}
	if err := store.MarkStep(ctx, run, "register-mag"); err != nil {
		t.Fatalf("MarkStep: %v", err)
	}
	done, err := store.Completed(ctx, "1000011", 2)
	if err != nil || done {
		t.Fatalf("Completed before finish = %v, %v", done, err)
	}
	if err := store.Complete(ctx, run); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	latest, err := store.Latest(ctx, "1000011", 2)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest == nil || latest.Status != ledger.StatusCompleted || latest.Step != "register-mag" {
		t.Fatalf("unexpected latest: %#v", latest)
	}
	if latest.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}
	done, err = store.Completed(ctx, "1000011", 2)
	if err != nil || !done {
		t.Fatalf("Completed after finish = %v, %v", done, err)
	}
	if done, _ := store.Completed(ctx, "1000011", 3); done {
		t.Fatal("other session should not be completed")
	}
}

func TestFailRecordsKindAndMessage(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()

	run, err := store.Start(ctx, "run-2", "1000023", 2)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cause := services.Wrap(services.ErrExternalTool, "pipeline", "register-mag", "antsRegistrationSyNQuick.sh failed", errors.New("exit 1"))
	if err := store.Fail(ctx, run, "register-mag", cause); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	latest, err := store.Latest(ctx, "1000023", 2)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Status != ledger.StatusFailed || latest.ErrorKind != "external_tool" {
		t.Fatalf("unexpected failed run: %#v", latest)
	}
	if latest.ErrorMessage != cause.Error() {
		t.Fatalf("error message = %q, want %q", latest.ErrorMessage, cause.Error())
	}
}

func TestLatestMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	run, err := store.Latest(context.Background(), "9999999", 2)
	if err != nil || run != nil {
		t.Fatalf("Latest = %#v, %v; want nil, nil", run, err)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Start(ctx, "run-"+id, "1000011", 2); err != nil {
			t.Fatalf("Start %s: %v", id, err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-c" || runs[1].RunID != "run-b" {
		t.Fatalf("unexpected runs: %v", runs)
	}
	all, err := store.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("List all = %d, %v", len(all), err)
	}
}

func TestInterruptedFailsRunningRows(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := store.Start(ctx, "run-x", "1000045", 2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	n, err := store.Interrupted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Interrupted = %d, %v", n, err)
	}
	latest, _ := store.Latest(ctx, "1000045", 2)
	if latest.Status != ledger.StatusFailed || latest.ErrorKind != "interrupted" {
		t.Fatalf("unexpected run: %#v", latest)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := ledger.Open(path); !errors.Is(err, ledger.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestRunDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	finish := start.Add(90 * time.Second)
	run := ledger.Run{StartedAt: start, FinishedAt: &finish}
	if got := run.Duration(start.Add(time.Hour)); got != 90*time.Second {
		t.Fatalf("Duration = %v", got)
	}
	running := ledger.Run{StartedAt: start}
	if got := running.Duration(start.Add(time.Minute)); got != time.Minute {
		t.Fatalf("running Duration = %v", got)
	}
}

func TestMarkStepUnknownRun(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	err := store.MarkStep(context.Background(), &ledger.Run{ID: 42}, "x")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
