// Package main hosts the ukbqsm CLI entrypoint and command graph.
//
// The Cobra command tree covers subject-list reconciliation, per-subject QSM
// processing, the run ledger, IDP summaries, dependency checks and
// configuration scaffolding. It centralizes configuration resolution and
// logger construction so subcommands only translate flags into calls on the
// internal packages.
//
// Keep this package lean: new behaviour belongs in an internal package first
// and is then surfaced here through a command or flag.
package main
