// Package config loads, normalizes, and validates ukbqsm configuration data.
//
// It supplies repository defaults (the standard field set and reconciliation
// chain included), expands user paths with tilde shortcuts, reads TOML files,
// and honours environment overrides such as UKBQSM_WORK_DIR and
// UKBQSM_FIELD_<NAME>_DIRS. Validation builds the derived-set graph so a bad
// [[derived]] table fails at load time rather than mid-run.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
