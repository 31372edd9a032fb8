// Package distinfo reads and writes the hidden metadata sidecar that
// records the provenance of the currently linked version at a
// destination root. The record is the sole source of truth for change
// detection: if the recorded source and signature match what would be
// published now, the target is unchanged.
package distinfo

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/logging"
	"github.com/arthur-debert/distman/pkg/types"
)

// Ext is the sidecar file extension.
const Ext = ".dist"

// Record is the persisted dist-info metadata for one destination root.
type Record struct {
	// Source is the absolute resolved source path that was published.
	Source string

	// Version is the published version number.
	Version int

	// Timestamp is the publish time.
	Timestamp time.Time

	// Author is the manifest author or the invoking user.
	Author string

	// Signature is the source modification signature captured at
	// publish time, in the form "<strategy>:<hex>".
	Signature string
}

// Path returns the sidecar location for a destination root: a hidden
// dot file sibling to the stable link, never inside the versions
// directory, so it always reflects the currently-linked version.
func Path(dest string) string {
	dir, base := filepath.Split(dest)
	return filepath.Join(dir, "."+base+Ext)
}

// Write persists the record for dest.
func Write(fsys types.FS, dest string, rec Record) error {
	log := logging.GetLogger("distinfo")
	path := Path(dest)

	var b strings.Builder
	fmt.Fprintf(&b, "source: %s\n", rec.Source)
	fmt.Fprintf(&b, "version: %d\n", rec.Version)
	fmt.Fprintf(&b, "timestamp: %s\n", rec.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "author: %s\n", rec.Author)
	fmt.Fprintf(&b, "signature: %s\n", rec.Signature)

	log.Debug().Str("path", path).Int("version", rec.Version).Msg("writing dist info")
	if err := fsys.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write dist info %s", path)
	}
	return nil
}

// Read loads the record for dest. A missing or malformed file returns
// nil, which callers treat as "no prior version" and therefore a
// forced publish; it never fails the run.
func Read(fsys types.FS, dest string) *Record {
	log := logging.GetLogger("distinfo")
	path := Path(dest)

	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil
	}

	rec := &Record{}
	seen := 0
	for _, line := range strings.Split(string(data), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "source":
			rec.Source = value
			seen++
		case "version":
			n, err := strconv.Atoi(value)
			if err != nil {
				log.Warn().Str("path", path).Str("version", value).Msg("malformed dist info version")
				return nil
			}
			rec.Version = n
			seen++
		case "timestamp":
			ts, err := time.Parse(time.RFC3339, value)
			if err != nil {
				log.Warn().Str("path", path).Str("timestamp", value).Msg("malformed dist info timestamp")
				return nil
			}
			rec.Timestamp = ts
			seen++
		case "author":
			rec.Author = value
		case "signature":
			rec.Signature = value
		}
	}
	if seen < 3 || rec.Source == "" {
		log.Warn().Str("path", path).Msg("incomplete dist info record")
		return nil
	}
	return rec
}

// Remove deletes the sidecar for dest. Missing files are not an error.
func Remove(fsys types.FS, dest string) error {
	path := Path(dest)
	if err := fsys.Remove(path); err != nil {
		if _, statErr := fsys.Lstat(path); statErr != nil {
			return nil
		}
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to remove dist info %s", path)
	}
	return nil
}
