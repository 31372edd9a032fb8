package resolver

import (
	"path"
	"path/filepath"

	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/logging"
	"github.com/arthur-debert/distman/pkg/types"
)

// Resolver expands targets against a fixed environment and manifest
// directory. It performs no writes; the only filesystem access is
// wildcard enumeration.
type Resolver struct {
	fs      types.FS
	baseDir string
	env     map[string]string
}

// New creates a Resolver. env is the fully resolved, immutable
// environment map; baseDir is the manifest directory that relative
// sources are resolved against.
func New(fsys types.FS, baseDir string, env map[string]string) *Resolver {
	return &Resolver{fs: fsys, baseDir: baseDir, env: env}
}

// Validate checks a target's template consistency without touching the
// filesystem: destination variables must resolve and %N tokens must
// not exceed the source's wildcard group count. Errors are
// configuration errors, fatal to the whole run.
func (r *Resolver) Validate(t types.Target) error {
	dest, err := ExpandVars(t.Destination, r.env)
	if err != nil {
		return wrapTarget(err, t.Name)
	}
	groups := CountGroups(t.Source)
	maxTok := MaxCaptureToken(dest)
	if groups == 0 && maxTok > 0 {
		return errors.Newf(errors.ErrConfigInvalid,
			"target %q: destination references %%%d but source %q has no wildcards",
			t.Name, maxTok, t.Source)
	}
	if maxTok > groups {
		return errors.Newf(errors.ErrCaptureOutOfRange,
			"target %q: destination references %%%d but source %q has only %d wildcard groups",
			t.Name, maxTok, t.Source, groups)
	}
	if groups > 0 && maxTok < groups {
		log := logging.GetLogger("resolver")
		log.Warn().
			Str("target", t.Name).
			Int("groups", groups).
			Int("referenced", maxTok).
			Msg("destination references fewer capture tokens than wildcard groups; matches may collide")
	}
	return nil
}

// Resolve expands one target into its concrete mappings. A wildcard
// source yields one mapping per match (possibly none); a plain source
// yields exactly one mapping without checking existence, which is the
// engine's concern.
func (r *Resolver) Resolve(t types.Target) ([]types.ResolvedMapping, error) {
	if err := r.Validate(t); err != nil {
		return nil, err
	}
	dest, err := ExpandVars(t.Destination, r.env)
	if err != nil {
		return nil, wrapTarget(err, t.Name)
	}

	if !HasWildcards(t.Source) {
		return []types.ResolvedMapping{{
			Source:      path.Clean(t.Source),
			Destination: filepath.Clean(dest),
		}}, nil
	}

	globMatches, err := Glob(r.fs, r.baseDir, t.Source)
	if err != nil {
		return nil, wrapTarget(err, t.Name)
	}
	mappings := make([]types.ResolvedMapping, 0, len(globMatches))
	for _, m := range globMatches {
		concrete, err := SubstituteCaptures(dest, m.Captures)
		if err != nil {
			return nil, wrapTarget(err, t.Name)
		}
		mappings = append(mappings, types.ResolvedMapping{
			Source:      m.Path,
			Destination: filepath.Clean(concrete),
			Captures:    m.Captures,
		})
	}
	return mappings, nil
}

func wrapTarget(err error, name string) error {
	var derr *errors.DistError
	if e, ok := err.(*errors.DistError); ok {
		derr = e
	} else {
		derr = errors.Wrap(err, errors.ErrTemplateInvalid, "template resolution failed")
	}
	return derr.WithDetail("target", name)
}
