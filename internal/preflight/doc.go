// Package preflight provides readiness checks for the filesystem paths and
// reference data the workflow depends on.
//
// The CLI "deps" command prints RunAll alongside tool availability. The
// pipeline commands run ForPipeline first so a missing reference image or
// unwritable work directory fails before any tool is started.
package preflight
