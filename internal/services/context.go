package services

import "context"

type contextKey string

const (
	subjectKey contextKey = "subject"
	sessionKey contextKey = "session"
	stepKey    contextKey = "step"
	runIDKey   contextKey = "run_id"
)

// WithSubject annotates context with the cohort subject identifier.
func WithSubject(ctx context.Context, subject string) context.Context {
	if subject == "" {
		return ctx
	}
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext extracts the subject identifier if present.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(subjectKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSession annotates context with the imaging session (UKB instance).
func WithSession(ctx context.Context, session int) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext extracts the session if present.
func SessionFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(sessionKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithStep annotates context with the pipeline step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stepKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with a correlation identifier for one invocation.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
