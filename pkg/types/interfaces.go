package types

import (
	"io/fs"
)

// FS is the filesystem interface required for distman operations
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)

	// Symlink operations
	Symlink(oldname, newname string) error
	Readlink(name string) (string, error)

	// Other operations
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error

	// Lstat reports on the link itself, not its target.
	// For testing, implementations may fall back to Stat.
	Lstat(name string) (fs.FileInfo, error)
}

// Chmodder is an optional FS extension for implementations that can
// change file modes. The OS filesystem supports it; in-memory test
// filesystems may not.
type Chmodder interface {
	Chmod(name string, mode fs.FileMode) error
}
