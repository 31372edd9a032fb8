package types

import (
	"sort"
)

// CurrentManifestVersion is the newest manifest schema version this
// build understands. Older manifests load with a warning; newer ones
// are rejected.
const CurrentManifestVersion = 1

// StepSpec describes one named pipeline step as declared in the
// manifest. Exactly one of Script or Func must be set.
type StepSpec struct {
	// Script holds one or more shell command templates. Multiple
	// commands run joined with " && ". Templates may reference
	// {input} and {output} placeholders.
	Script []string `koanf:"script"`

	// Func names a transform registered in the step registry.
	Func string `koanf:"func"`

	// Options is passed to function steps verbatim.
	Options map[string]string `koanf:"options"`
}

// Target is one named distribution unit from the manifest. Targets are
// read-only once loaded.
type Target struct {
	// Name is the target's key in the manifest, unique per manifest.
	Name string `koanf:"-"`

	// Source is a path relative to the manifest directory. It may
	// contain glob wildcards (*, ?, [...]).
	Source string `koanf:"source"`

	// Destination is a path template. It may contain ${VAR} or {VAR}
	// environment tokens and positional %N wildcard-capture tokens.
	Destination string `koanf:"destination"`

	// Pipeline is an ordered list of step names. When set it replaces
	// the global pipeline for this target entirely.
	Pipeline []string `koanf:"pipeline"`
}

// Manifest is the already-parsed dist file consumed by the engine.
type Manifest struct {
	Author   string              `koanf:"author"`
	Version  int                 `koanf:"version"`
	Env      map[string]string   `koanf:"env"`
	Pipeline map[string]StepSpec `koanf:"pipeline"`
	Targets  map[string]Target   `koanf:"targets"`
}

// TargetNames returns the manifest's target names in lexicographic
// order. Targets are independent, so a stable order is all that
// matters for reproducible runs.
func (m *Manifest) TargetNames() []string {
	names := make([]string, 0, len(m.Targets))
	for name := range m.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GlobalStepNames returns the names of the globally declared pipeline
// steps in lexicographic order. This is the default execution order
// for targets that do not declare their own pipeline list.
func (m *Manifest) GlobalStepNames() []string {
	names := make([]string, 0, len(m.Pipeline))
	for name := range m.Pipeline {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StepsFor resolves the ordered step names that apply to a target:
// the target's own list when declared, otherwise the global default.
// A target-declared list replaces the global pipeline, it does not
// append to it.
func (m *Manifest) StepsFor(t Target) []string {
	if t.Pipeline != nil {
		return t.Pipeline
	}
	return m.GlobalStepNames()
}

// ResolvedMapping is one concrete (source, destination) pair produced
// by expanding a target's wildcards and destination template.
type ResolvedMapping struct {
	// Source is the concrete source path, relative to the manifest
	// directory.
	Source string

	// Destination is the absolute destination root: the location of
	// the stable link.
	Destination string

	// Captures holds the wildcard group substrings matched in Source,
	// in positional order (%1 first).
	Captures []string
}
