// Package services defines shared utilities consumed by the pipeline steps and
// the external tool clients.
//
// Key responsibilities:
//   - Context helpers that stamp subject identifiers, sessions, step names, and
//     run identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (missing input, external tool failure, configuration) for the run
//     ledger and the CLI.
//
// Tool clients live in subpackages (ants, fsl, freesurfer, mritools) and share
// the command runner in toolexec.
package services
