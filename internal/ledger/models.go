package ledger

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusRunning:
		return StatusRunning, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	default:
		return "", false
	}
}

// Run is one recorded pipeline invocation for a subject session.
type Run struct {
	ID           int64
	RunID        string
	Subject      string
	Session      int
	Status       Status
	Step         string
	ErrorKind    string
	ErrorMessage string
	StartedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   *time.Time
}

// Duration returns the elapsed time of the run. Running runs are measured
// against now.
func (r Run) Duration(now time.Time) time.Duration {
	end := now
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	if end.Before(r.StartedAt) {
		return 0
	}
	return end.Sub(r.StartedAt)
}
