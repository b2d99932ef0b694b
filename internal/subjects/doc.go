// Package subjects extracts cohort subject identifiers from bulk-data
// directories and performs set algebra over sorted identifier lists.
//
// A List is always sorted ascending and duplicate-free. Every constructor in
// this package enforces that invariant, and ReadList rejects files that
// violate it instead of silently producing wrong intersections. Intersect and
// Complement are single-pass merges over two lists, the same shape as comm(1).
//
// Directory scanning never treats a missing directory as an error: an absent
// field directory simply contributes no subjects.
package subjects
