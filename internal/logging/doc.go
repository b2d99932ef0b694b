// Package logging assembles structured slog loggers and formatting helpers used
// across ukbqsm.
//
// It owns the console and JSON handlers, level parsing and the optional
// JSON log file that mirrors console output at debug level. Context-aware
// helpers tag lines with the subject, session, pipeline step and run ID
// carried by the context. A no-op logger is provided for tests and wiring
// code that cannot fail.
package logging
