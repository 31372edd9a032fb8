// Package store manages the append-only version store beside each
// destination root: versioned copies live under a versions/
// subdirectory and a stable symlink points at the active one.
//
// Layout for a destination root /deploy/prod/bin/tool:
//
//	/deploy/prod/bin/tool -> versions/tool.3.00c0ffe
//	/deploy/prod/bin/versions/tool.0.83aa912
//	/deploy/prod/bin/versions/tool.1.11f00d2
//	/deploy/prod/bin/versions/tool.3.00c0ffe
//
// Versions are monotonically increasing integers; the short id suffix
// is a content fingerprint for human disambiguation only. Only the
// stable link is ever mutated, and only via an atomic rename.
package store
