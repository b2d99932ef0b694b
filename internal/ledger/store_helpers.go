package ledger

import (
	"database/sql"
	"time"
)

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id          int64
		runID       string
		subject     string
		session     int
		statusStr   string
		step        sql.NullString
		errorKind   sql.NullString
		errorMsg    sql.NullString
		startedRaw  string
		updatedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id, &runID, &subject, &session, &statusStr,
		&step, &errorKind, &errorMsg,
		&startedRaw, &updatedRaw, &finishedRaw,
	); err != nil {
		return nil, err
	}

	status, ok := ParseStatus(statusStr)
	if !ok {
		status = Status(statusStr)
	}
	run := &Run{
		ID:           id,
		RunID:        runID,
		Subject:      subject,
		Session:      session,
		Status:       status,
		Step:         step.String,
		ErrorKind:    errorKind.String,
		ErrorMessage: errorMsg.String,
		StartedAt:    parseTime(startedRaw),
		UpdatedAt:    parseTime(updatedRaw),
	}
	if finishedRaw.Valid {
		finished := parseTime(finishedRaw.String)
		run.FinishedAt = &finished
	}
	return run, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
