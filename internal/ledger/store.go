package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ukbqsm/internal/services"
)

const runColumns = "id, run_id, subject, session, status, step, error_kind, error_message, started_at, updated_at, finished_at"

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("ledger path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Start records a new running entry for subject and session.
func (s *Store) Start(ctx context.Context, runID, subject string, session int) (*Run, error) {
	runID = strings.TrimSpace(runID)
	subject = strings.TrimSpace(subject)
	if runID == "" || subject == "" {
		return nil, errors.New("run id and subject are required")
	}
	timestamp := s.now().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, subject, session, status, started_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, subject, session, StatusRunning, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a run by row identifier. A missing row returns nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// MarkStep records the step a running entry has reached.
func (s *Store) MarkStep(ctx context.Context, run *Run, step string) error {
	if run == nil {
		return errors.New("run is nil")
	}
	now := s.now()
	if err := s.exec(ctx, `UPDATE runs SET step = ?, updated_at = ? WHERE id = ?`,
		nullableString(step), now.Format(time.RFC3339Nano), run.ID); err != nil {
		return fmt.Errorf("mark step: %w", err)
	}
	run.Step = step
	run.UpdatedAt = now
	return nil
}

// Complete marks the run as finished successfully.
func (s *Store) Complete(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	now := s.now()
	stamp := now.Format(time.RFC3339Nano)
	if err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_kind = NULL, error_message = NULL, updated_at = ?, finished_at = ? WHERE id = ?`,
		StatusCompleted, stamp, stamp, run.ID); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	run.Status = StatusCompleted
	run.UpdatedAt = now
	run.FinishedAt = &now
	return nil
}

// Fail marks the run as failed at step with the cause classified by kind.
func (s *Store) Fail(ctx context.Context, run *Run, step string, cause error) error {
	if run == nil {
		return errors.New("run is nil")
	}
	message := ""
	if cause != nil {
		message = strings.TrimSpace(cause.Error())
	}
	kind := services.ErrorKind(cause)
	now := s.now()
	stamp := now.Format(time.RFC3339Nano)
	if err := s.exec(ctx,
		`UPDATE runs SET status = ?, step = ?, error_kind = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		StatusFailed, nullableString(step), nullableString(kind), nullableString(message), stamp, stamp, run.ID); err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	run.Status = StatusFailed
	run.Step = step
	run.ErrorKind = kind
	run.ErrorMessage = message
	run.UpdatedAt = now
	run.FinishedAt = &now
	return nil
}

// Latest returns the most recent run for subject and session, or nil.
func (s *Store) Latest(ctx context.Context, subject string, session int) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE subject = ? AND session = ? ORDER BY id DESC LIMIT 1`,
		strings.TrimSpace(subject), session)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// Completed reports whether any run for subject and session completed.
func (s *Store) Completed(ctx context.Context, subject string, session int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM runs WHERE subject = ? AND session = ? AND status = ?`,
		strings.TrimSpace(subject), session, StatusCompleted,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count completed runs: %w", err)
	}
	return count > 0, nil
}

// List returns the most recent runs, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Interrupted marks runs still recorded as running as failed. It is used
// after a crash or kill left rows behind.
func (s *Store) Interrupted(ctx context.Context) (int64, error) {
	stamp := s.now().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_kind = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE status = ?`,
		StatusFailed, "interrupted", "run did not finish", stamp, stamp, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return services.ErrNotFound
	}
	return nil
}
