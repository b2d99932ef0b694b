// Package pipeline runs the per-subject QSM processing chain.
//
// A run resolves every artifact path up front (Artifacts), then executes a
// fixed sequence of steps that shell out to ANTs, FSL, FreeSurfer and
// MriResearchTools. Steps are fail-fast: the first tool error aborts the run
// and later tools are never invoked. Each measurement is stored under its own
// column name, and the final step appends one row to the cohort IDP table.
//
// Runs hold a flock on the subject work directory and, when a ledger is
// attached, record their progress so batch mode can skip finished sessions.
package pipeline
