package logging

import (
	"context"
	"log/slog"

	"ukbqsm/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSubject is the structured logging key for cohort subject identifiers.
	FieldSubject = "subject"
	// FieldSession is the structured logging key for imaging sessions.
	FieldSession = "session"
	// FieldStep is the structured logging key for pipeline step names.
	FieldStep = "step"
	// FieldRunID is the structured logging key for run correlation identifiers.
	FieldRunID = "run_id"
	// FieldEventType classifies notable events for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries an operator-facing next step.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if subject, ok := services.SubjectFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSubject, subject))
	}
	if session, ok := services.SessionFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldSession, session))
	}
	if step, ok := services.StepFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStep, step))
	}
	if rid, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
