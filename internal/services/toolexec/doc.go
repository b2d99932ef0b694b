// Package toolexec runs external image-processing binaries as blocking
// subprocesses.
//
// The Executor interface is the seam every tool client depends on so tests
// can record invocations without ANTs, FSL, FreeSurfer, or Julia installed.
package toolexec
