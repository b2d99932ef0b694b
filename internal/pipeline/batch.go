package pipeline

import (
	"context"
	"fmt"

	"ukbqsm/internal/logging"
	"ukbqsm/internal/subjects"
)

// BatchOptions controls batch processing.
type BatchOptions struct {
	// Force reprocesses sessions the ledger already marks completed.
	Force bool
	// OnResult, when set, is called after every processed subject.
	OnResult func(subject string, result Result, err error)
}

// BatchResult summarizes a batch.
type BatchResult struct {
	Processed []string
	Skipped   []string
	Failed    string
}

// Batch runs every subject in list sequentially for session. It stops at
// the first failing subject.
func (r *Runner) Batch(ctx context.Context, list subjects.List, session int, opts BatchOptions) (BatchResult, error) {
	var out BatchResult
	if err := list.Validate(); err != nil {
		return out, fmt.Errorf("batch list: %w", err)
	}
	logger := r.logger.With(logging.Args(
		logging.Session(session),
		logging.Int("subjects", list.Len()),
		logging.Bool("force", opts.Force),
	)...)
	logger.Info("batch started", logging.String(logging.FieldEventType, "batch_start"))

	for _, subject := range list {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("batch cancelled before %s: %w", subject, err)
		}
		if !opts.Force && r.ledger != nil {
			done, err := r.ledger.Completed(ctx, subject, session)
			if err != nil {
				return out, fmt.Errorf("check ledger for %s: %w", subject, err)
			}
			if done {
				logger.Info("subject already completed",
					logging.Subject(subject),
					logging.String(logging.FieldEventType, "batch_skip"),
				)
				out.Skipped = append(out.Skipped, subject)
				continue
			}
		}

		result, err := r.Run(ctx, subject, session)
		if opts.OnResult != nil {
			opts.OnResult(subject, result, err)
		}
		if err != nil {
			out.Failed = subject
			return out, fmt.Errorf("subject %s: %w", subject, err)
		}
		out.Processed = append(out.Processed, subject)
	}

	logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("processed", len(out.Processed)),
		logging.Int("skipped", len(out.Skipped)),
	)
	return out, nil
}
