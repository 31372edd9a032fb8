// Package types defines the core value types shared across distman:
// manifest targets, resolved source/destination mappings, publish
// results, and the filesystem interface used by all I/O components.
package types
