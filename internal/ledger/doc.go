// Package ledger records per-subject pipeline runs in SQLite.
//
// Every pipeline invocation inserts a run row, advances its step as the
// pipeline progresses, and finishes as completed or failed. Batch mode reads
// the ledger to skip subject sessions that already completed. The schema is
// embedded and versioned; a mismatching database must be deleted rather than
// migrated.
package ledger
