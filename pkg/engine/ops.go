package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/arthur-debert/distman/pkg/distinfo"
	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/logging"
	"github.com/arthur-debert/distman/pkg/resolver"
	"github.com/arthur-debert/distman/pkg/store"
	"github.com/arthur-debert/distman/pkg/types"
)

// TargetStatus describes the stored state of one resolved destination
// for display.
type TargetStatus struct {
	Target      string
	Source      string
	Destination string

	// Current is the entry the stable link points at, nil when the
	// link is missing or foreign.
	Current *store.Entry

	// Entries lists every stored version, oldest first.
	Entries []store.Entry

	// Record is the dist info sidecar, nil when absent.
	Record *distinfo.Record
}

// Selector picks an existing version for Pin: by exact number, by
// negative offset from the newest, or by short id prefix.
type Selector struct {
	Version *int
	ShortID string
}

func (s Selector) String() string {
	if s.Version != nil {
		return fmt.Sprintf("version %d", *s.Version)
	}
	return fmt.Sprintf("short id %s", s.ShortID)
}

// resolveMappings expands the selected targets into concrete mappings,
// keyed for display.
func (e *Engine) resolveMappings(m *types.Manifest, baseDir string) ([]resolvedTarget, error) {
	env, err := e.environment(m)
	if err != nil {
		return nil, err
	}
	targets, err := e.selectTargets(m)
	if err != nil {
		return nil, err
	}
	res := resolver.New(e.fs, baseDir, env)

	var out []resolvedTarget
	for _, t := range targets {
		mappings, err := res.Resolve(t)
		if err != nil {
			return nil, err
		}
		for _, mapping := range mappings {
			label := t.Name
			if len(mappings) > 1 {
				label = fmt.Sprintf("%s (%s)", t.Name, mapping.Source)
			}
			out = append(out, resolvedTarget{label: label, mapping: mapping})
		}
	}
	return out, nil
}

type resolvedTarget struct {
	label   string
	mapping types.ResolvedMapping
}

// Show reports the stored versions and current link for each selected
// target. Read-only.
func (e *Engine) Show(m *types.Manifest, baseDir string) ([]TargetStatus, error) {
	resolved, err := e.resolveMappings(m, baseDir)
	if err != nil {
		return nil, err
	}
	statuses := make([]TargetStatus, 0, len(resolved))
	for _, rt := range resolved {
		dest := rt.mapping.Destination
		entries, err := e.store.Entries(dest)
		if err != nil {
			return nil, err
		}
		current, err := e.store.Current(dest)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, TargetStatus{
			Target:      rt.label,
			Source:      rt.mapping.Source,
			Destination: dest,
			Current:     current,
			Entries:     entries,
			Record:      distinfo.Read(e.fs, dest),
		})
	}
	return statuses, nil
}

// Reset repoints each selected target's stable link at its newest
// stored version without publishing anything.
func (e *Engine) Reset(ctx context.Context, m *types.Manifest, baseDir string) (*types.RunSummary, error) {
	return e.relink(ctx, m, baseDir, "reset", func(dest string) (*store.Entry, error) {
		return e.store.LinkLatest(dest)
	})
}

// Pin repoints each selected target's stable link at the version the
// selector names. A negative version counts back from the newest.
func (e *Engine) Pin(ctx context.Context, m *types.Manifest, baseDir string, sel Selector) (*types.RunSummary, error) {
	if sel.Version == nil && sel.ShortID == "" {
		return nil, errors.New(errors.ErrInvalidInput, "pin requires a version number or short id")
	}
	return e.relink(ctx, m, baseDir, sel.String(), func(dest string) (*store.Entry, error) {
		if sel.Version != nil {
			return e.store.LinkVersion(dest, *sel.Version)
		}
		return e.store.LinkShortID(dest, sel.ShortID)
	})
}

// relink applies a link-repointing operation per resolved destination
// and refreshes each sidecar's version field so a later run's change
// detection still works from the recorded source signature.
func (e *Engine) relink(ctx context.Context, m *types.Manifest, baseDir, what string,
	link func(dest string) (*store.Entry, error)) (*types.RunSummary, error) {

	log := logging.GetLogger("engine")
	resolved, err := e.resolveMappings(m, baseDir)
	if err != nil {
		return nil, err
	}

	summary := &types.RunSummary{}
	for _, rt := range resolved {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		dest := rt.mapping.Destination

		if e.opts.DryRun {
			summary.Add(types.TargetResult{Target: rt.label, State: types.StatePublished,
				Message: fmt.Sprintf("would repoint %s to %s", filepath.Base(dest), what)})
			continue
		}

		entry, err := link(dest)
		if err != nil {
			summary.Add(types.TargetResult{Target: rt.label, State: types.StateFailed,
				Message: err.Error(), Err: err})
			continue
		}
		if record := distinfo.Read(e.fs, dest); record != nil && record.Version != entry.Version {
			record.Version = entry.Version
			if err := distinfo.Write(e.fs, dest, *record); err != nil {
				log.Warn().Err(err).Str("dest", dest).Msg("failed to refresh dist info")
			}
		}
		log.Info().Str("target", rt.label).Int("version", entry.Version).Msg("repointed link")
		summary.Add(types.TargetResult{Target: rt.label, State: types.StatePublished,
			Version: entry.Version,
			Message: fmt.Sprintf("repointed to version %d", entry.Version)})
	}
	return summary, nil
}

// Delete removes each selected target's stable link, stored versions,
// and dist info sidecar.
func (e *Engine) Delete(ctx context.Context, m *types.Manifest, baseDir string) (*types.RunSummary, error) {
	log := logging.GetLogger("engine")
	resolved, err := e.resolveMappings(m, baseDir)
	if err != nil {
		return nil, err
	}

	summary := &types.RunSummary{}
	for _, rt := range resolved {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		dest := rt.mapping.Destination

		if e.opts.DryRun {
			summary.Add(types.TargetResult{Target: rt.label, State: types.StateSkipped,
				Message: fmt.Sprintf("would delete %s and its versions", dest)})
			continue
		}

		if err := e.store.Delete(dest); err != nil {
			summary.Add(types.TargetResult{Target: rt.label, State: types.StateFailed,
				Message: err.Error(), Err: err})
			continue
		}
		if err := distinfo.Remove(e.fs, dest); err != nil {
			log.Warn().Err(err).Str("dest", dest).Msg("failed to remove dist info")
		}
		log.Info().Str("target", rt.label).Str("dest", dest).Msg("deleted")
		summary.Add(types.TargetResult{Target: rt.label, State: types.StatePublished,
			Message: fmt.Sprintf("deleted %s", dest)})
	}
	return summary, nil
}
