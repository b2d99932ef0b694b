// Package reconcile runs one subject-list reconciliation: it scans every
// configured field, evaluates the derived-set graph, then writes the field
// lists, the derived lists and finally the summary report.
//
// Runs against the same lists directory are serialized with an exclusive
// file lock. Nothing is written until every list has been computed, and
// every file is replaced atomically, so a failed run leaves the previous
// lists and summary intact.
package reconcile
