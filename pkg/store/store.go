package store

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/filesystem"
	"github.com/arthur-debert/distman/pkg/logging"
	"github.com/arthur-debert/distman/pkg/types"
)

// DirVersions is the name of the versions subdirectory beside each
// stable link.
const DirVersions = "versions"

// MinShortIDLen is the minimum prefix length accepted when selecting a
// version by short id.
const MinShortIDLen = 4

// Options configures a Store.
type Options struct {
	// FollowSymlinks dereferences symlinked sources while copying
	// instead of preserving them as links.
	FollowSymlinks bool
}

// Store publishes versioned copies under destination roots and
// repoints their stable links.
type Store struct {
	fs   types.FS
	opts Options
}

// New creates a version store over the given filesystem.
func New(fsys types.FS, opts Options) *Store {
	return &Store{fs: fsys, opts: opts}
}

// Entry is one stored version of a destination root.
type Entry struct {
	// Name is the entry's file name inside the versions directory,
	// <basename>.<version>.<shortid>.
	Name    string
	Version int
	ShortID string
}

// VersionsDir returns the versions directory for a destination root.
func (s *Store) VersionsDir(dest string) string {
	return filepath.Join(filepath.Dir(dest), DirVersions)
}

// EntryPath returns the absolute path of an entry for a destination
// root.
func (s *Store) EntryPath(dest string, e Entry) string {
	return filepath.Join(s.VersionsDir(dest), e.Name)
}

// Entries lists the stored versions for a destination root, sorted by
// version number. Foreign files in the versions directory that do not
// match the <basename>.<version>[.<shortid>] pattern are ignored
// rather than treated as errors.
func (s *Store) Entries(dest string) ([]Entry, error) {
	dir := s.VersionsDir(dest)
	base := filepath.Base(dest)

	items, err := s.fs.ReadDir(dir)
	if err != nil {
		// No versions directory means no versions yet.
		return nil, nil
	}

	var entries []Entry
	for _, item := range items {
		e, ok := parseEntryName(base, item.Name())
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })
	return entries, nil
}

// parseEntryName parses <base>.<version>[.<shortid>[...]] entry names.
// A trailing "-" suffix on the short id (e.g. a forced marker) is
// trimmed.
func parseEntryName(base, name string) (Entry, bool) {
	if !strings.HasPrefix(name, base+".") {
		return Entry{}, false
	}
	rest := name[len(base)+1:]
	verStr, tail, _ := strings.Cut(rest, ".")
	version, err := strconv.Atoi(verStr)
	if err != nil || version < 0 {
		return Entry{}, false
	}
	shortID, _, _ := strings.Cut(tail, ".")
	shortID, _, _ = strings.Cut(shortID, "-")
	return Entry{Name: name, Version: version, ShortID: shortID}, true
}

// NextVersion returns the version number the next publish will use:
// one past the highest stored version, or zero for a fresh root.
func (s *Store) NextVersion(dest string) (int, error) {
	entries, err := s.Entries(dest)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[len(entries)-1].Version + 1, nil
}

// Current returns the entry the stable link points at, or nil when the
// link is missing or does not point into the versions directory.
func (s *Store) Current(dest string) (*Entry, error) {
	target, err := s.fs.Readlink(dest)
	if err != nil {
		return nil, nil
	}
	name := filepath.Base(target)
	e, ok := parseEntryName(filepath.Base(dest), name)
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// LinkHealthy reports whether the stable link exists and its target
// resolves.
func (s *Store) LinkHealthy(dest string) bool {
	if _, err := s.fs.Readlink(dest); err != nil {
		return false
	}
	_, err := s.fs.Stat(dest)
	return err == nil
}

// Publish copies staged content into the versions directory as the
// given version and atomically repoints the stable link. The staged
// tree is left untouched.
func (s *Store) Publish(staged, dest string, version int, shortID string) (types.PublishResult, error) {
	log := logging.GetLogger("store")

	if err := s.fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return types.PublishResult{}, errors.Wrapf(err, errors.ErrDestUnwritable,
			"cannot create destination directory for %s", dest)
	}
	versionsDir := s.VersionsDir(dest)
	if err := s.fs.MkdirAll(versionsDir, 0755); err != nil {
		return types.PublishResult{}, errors.Wrapf(err, errors.ErrDestUnwritable,
			"cannot create versions directory %s", versionsDir)
	}

	name := fmt.Sprintf("%s.%d", filepath.Base(dest), version)
	if shortID != "" {
		name += "." + shortID
	}
	entryPath := filepath.Join(versionsDir, name)

	if err := filesystem.CopyAny(s.fs, staged, entryPath, s.opts.FollowSymlinks); err != nil {
		return types.PublishResult{}, errors.Wrapf(err, errors.ErrCopy,
			"failed to copy %s to %s", staged, entryPath)
	}

	if err := s.Link(dest, name); err != nil {
		return types.PublishResult{}, err
	}

	log.Info().Str("dest", dest).Int("version", version).Str("entry", name).Msg("published")
	return types.PublishResult{Version: version, Path: entryPath}, nil
}

// Link atomically repoints the stable link at a versions-directory
// entry. A temporary link is created first and renamed over the old
// one in a single filesystem rename, so the link is always either the
// old or the new target, never missing or partial.
func (s *Store) Link(dest, entryName string) error {
	relTarget := DirVersions + "/" + entryName
	tmp := fmt.Sprintf("%s.tmp.%s", dest, strconv.FormatInt(time.Now().UnixNano(), 36))

	if err := s.fs.Symlink(relTarget, tmp); err != nil {
		return errors.Wrapf(err, errors.ErrSymlinkCreate,
			"failed to create symlink %s => %s", dest, relTarget)
	}
	if err := s.fs.Rename(tmp, dest); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.Wrapf(err, errors.ErrSymlinkCreate,
			"failed to activate symlink %s => %s", dest, relTarget)
	}
	return nil
}

// LinkLatest repoints the stable link at the newest stored version.
func (s *Store) LinkLatest(dest string) (*Entry, error) {
	entries, err := s.Entries(dest)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.Newf(errors.ErrVersionNotFound, "no versions stored for %s", dest)
	}
	latest := entries[len(entries)-1]
	if err := s.Link(dest, latest.Name); err != nil {
		return nil, err
	}
	return &latest, nil
}

// LinkVersion repoints the stable link at an exact version number. A
// negative number selects relative to the newest version: -1 is one
// version back.
func (s *Store) LinkVersion(dest string, version int) (*Entry, error) {
	entries, err := s.Entries(dest)
	if err != nil {
		return nil, err
	}
	if version < 0 {
		idx := len(entries) - 1 + version
		if idx < 0 {
			return nil, errors.Newf(errors.ErrVersionNotFound,
				"requested %d versions back but only %d previous versions exist for %s",
				-version, len(entries)-1, dest)
		}
		version = entries[idx].Version
	}
	for _, e := range entries {
		if e.Version == version {
			if err := s.Link(dest, e.Name); err != nil {
				return nil, err
			}
			return &e, nil
		}
	}
	return nil, errors.Newf(errors.ErrVersionNotFound, "version %d not found for %s", version, dest)
}

// LinkShortID repoints the stable link at the version whose short id
// matches the given prefix, case-insensitively. The shorter of the two
// strings must prefix the longer one.
func (s *Store) LinkShortID(dest, prefix string) (*Entry, error) {
	if len(prefix) < MinShortIDLen {
		return nil, errors.Newf(errors.ErrInvalidInput,
			"short ids must be at least %d characters", MinShortIDLen)
	}
	entries, err := s.Entries(dest)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if shortIDsEqual(e.ShortID, prefix) {
			if err := s.Link(dest, e.Name); err != nil {
				return nil, err
			}
			e := e
			return &e, nil
		}
	}
	return nil, errors.Newf(errors.ErrVersionNotFound, "short id %q not found for %s", prefix, dest)
}

// shortIDsEqual compares two fingerprints regardless of length or
// case.
func shortIDsEqual(a, b string) bool {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	if len(a) > len(b) {
		return strings.HasPrefix(a, b)
	}
	return strings.HasPrefix(b, a)
}

// Delete removes a destination root's stable link and every stored
// version. The versions directory itself is removed when it ends up
// empty.
func (s *Store) Delete(dest string) error {
	log := logging.GetLogger("store")

	entries, err := s.Entries(dest)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(dest); err == nil {
		log.Info().Str("path", dest).Msg("deleted stable link")
	}
	for _, e := range entries {
		path := s.EntryPath(dest, e)
		if err := s.fs.RemoveAll(path); err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to remove %s", path)
		}
		log.Info().Str("path", path).Msg("deleted version")
	}
	// Best effort: drop the versions dir when nothing foreign remains.
	if remaining, err := s.fs.ReadDir(s.VersionsDir(dest)); err == nil && len(remaining) == 0 {
		_ = s.fs.Remove(s.VersionsDir(dest))
	}
	return nil
}
