// Package filesystem provides filesystem implementations for distman.
//
// This package contains implementations of the types.FS interface,
// including the standard OS filesystem and an afero adapter used by
// tests, plus the copy helpers shared by the version store and the
// transform pipeline.
package filesystem
