package engine

import (
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/filesystem"
	"github.com/arthur-debert/distman/pkg/types"
)

// Signature computes a source modification fingerprint for change
// detection. Two computations over identical content must agree;
// differing content should disagree with overwhelming probability.
// The returned string is "<strategy>:<hex>" so records written by one
// strategy never compare equal under another.
type Signature interface {
	Name() string
	Compute(fsys types.FS, path string) (string, error)
}

// SizeMtime fingerprints sources by file size and modification time.
// It never reads file contents, so it is cheap on large trees, at the
// cost of re-publishing when a file is touched without changing.
type SizeMtime struct{}

func (SizeMtime) Name() string { return "mtime" }

func (s SizeMtime) Compute(fsys types.FS, path string) (string, error) {
	digest := xxhash.New()
	err := eachSourceFile(fsys, path, func(rel string, abs string) error {
		info, err := fsys.Stat(abs)
		if err != nil {
			return err
		}
		fmt.Fprintf(digest, "%s|%d|%d\n", rel, info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot fingerprint %s", path)
	}
	return fmt.Sprintf("%s:%016x", s.Name(), digest.Sum64()), nil
}

// ContentHash fingerprints sources by hashing file contents. Immune to
// mtime churn (fresh checkouts, touch), but reads every byte.
type ContentHash struct{}

func (ContentHash) Name() string { return "xxh64" }

func (c ContentHash) Compute(fsys types.FS, path string) (string, error) {
	digest := xxhash.New()
	err := eachSourceFile(fsys, path, func(rel string, abs string) error {
		data, err := fsys.ReadFile(abs)
		if err != nil {
			return err
		}
		fmt.Fprintf(digest, "%s|", rel)
		if _, err := digest.Write(data); err != nil {
			return err
		}
		_, err = digest.Write([]byte{'\n'})
		return err
	})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot fingerprint %s", path)
	}
	return fmt.Sprintf("%s:%016x", c.Name(), digest.Sum64()), nil
}

// eachSourceFile visits path's files in deterministic order: the file
// itself, or for a directory every non-ignorable file sorted by
// relative path.
func eachSourceFile(fsys types.FS, path string, visit func(rel, abs string) error) error {
	if !filesystem.IsDir(fsys, path) {
		return visit(filepath.Base(path), path)
	}
	files, err := filesystem.Walk(fsys, path)
	if err != nil {
		return err
	}
	for _, rel := range files {
		if err := visit(rel, filepath.Join(path, rel)); err != nil {
			return err
		}
	}
	return nil
}

// ShortIDLen is the length of the fingerprint fragment embedded in
// version entry names.
const ShortIDLen = 7

// ShortID derives the human-facing version fingerprint from a full
// signature string.
func ShortID(signature string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(signature))[:ShortIDLen]
}
