package filesystem

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arthur-debert/distman/pkg/types"
)

// ignorable are file name patterns that are never distributed: editor
// droppings, VCS metadata, caches.
var ignorable = []string{
	"*~",
	".git*",
	".env",
	".venv",
	"*.bup",
	"*.swp",
	"*.temp*",
	"*.tmp",
	"venv*",
	"MANIFEST*",
	"__pycache__",
	"Thumbs.db",
	".DS_Store",
}

// IsIgnorable reports whether a path should be excluded from copying
// and comparison. Hidden dot files are always ignorable.
func IsIgnorable(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, pattern := range ignorable {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Walk returns the relative paths of all non-ignorable files under
// root, sorted for determinism. Symlinked entries are listed but not
// followed.
func Walk(fsys types.FS, root string) ([]string, error) {
	var files []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if IsIgnorable(path) {
				continue
			}
			if entry.IsDir() {
				if err := walk(path); err != nil {
					return err
				}
				continue
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// CopyFile copies a single file preserving its permission bits.
func CopyFile(fsys types.FS, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	data, err := fsys.ReadFile(src)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := fsys.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return err
	}
	// WriteFile perm is ignored when dst already exists; enforce it.
	if ch, ok := fsys.(types.Chmodder); ok {
		return ch.Chmod(dst, info.Mode().Perm())
	}
	return nil
}

// CopyTree recursively copies a directory, preserving permissions and
// skipping ignorable entries. Symlinks are recreated as links unless
// followSymlinks is set, in which case their targets are copied.
func CopyTree(fsys types.FS, src, dst string, followSymlinks bool) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}
	entries, err := fsys.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if IsIgnorable(srcPath) {
			continue
		}
		linfo, err := fsys.Lstat(srcPath)
		if err != nil {
			return err
		}
		switch {
		case linfo.Mode()&os.ModeSymlink != 0 && !followSymlinks:
			target, err := fsys.Readlink(srcPath)
			if err != nil {
				return err
			}
			if err := fsys.Symlink(target, dstPath); err != nil {
				return err
			}
		case linfo.IsDir():
			if err := CopyTree(fsys, srcPath, dstPath, followSymlinks); err != nil {
				return err
			}
		default:
			if err := CopyFile(fsys, srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// CopyAny copies a file or a directory tree.
func CopyAny(fsys types.FS, src, dst string, followSymlinks bool) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return CopyTree(fsys, src, dst, followSymlinks)
	}
	return CopyFile(fsys, src, dst)
}

// IsDir reports whether path exists and is a directory.
func IsDir(fsys types.FS, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && info.IsDir()
}

// Exists reports whether path exists, without following a final
// symlink.
func Exists(fsys types.FS, path string) bool {
	_, err := fsys.Lstat(path)
	return err == nil
}
