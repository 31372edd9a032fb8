// Package engine orchestrates a distribution run: it expands manifest
// targets, decides per destination whether a new version is needed,
// runs the transform pipeline, publishes through the version store,
// and records dist info. Targets are independent; one failure never
// touches another target's outcome.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/distman/pkg/distinfo"
	"github.com/arthur-debert/distman/pkg/environ"
	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/filesystem"
	"github.com/arthur-debert/distman/pkg/logging"
	"github.com/arthur-debert/distman/pkg/pipeline"
	"github.com/arthur-debert/distman/pkg/resolver"
	"github.com/arthur-debert/distman/pkg/store"
	"github.com/arthur-debert/distman/pkg/types"
)

// EnvIgnoreMissing is the environment variable that turns missing
// sources into skips instead of failures.
const EnvIgnoreMissing = "IGNORE_MISSING"

// Options configures an Engine for one or more runs.
type Options struct {
	// DryRun reports what each target would do without writing.
	DryRun bool

	// Force publishes a new version even when change detection says
	// the linked version is current.
	Force bool

	// IgnoreMissing skips targets whose source does not exist instead
	// of failing them. The IGNORE_MISSING environment variable enables
	// the same behavior.
	IgnoreMissing bool

	// FollowSymlinks dereferences symlinked sources while copying.
	FollowSymlinks bool

	// Targets restricts the run to the named targets. Empty means all.
	Targets []string

	// BuildDir is where pipeline steps stage intermediate output.
	// Defaults to a distman directory under the system temp dir.
	BuildDir string

	// Parallel is the number of targets processed concurrently.
	// Values below 2 mean sequential. Mappings sharing a destination
	// root are serialized regardless, version allocation is
	// read-then-increment.
	Parallel int

	// Signature is the change-detection strategy. Defaults to
	// SizeMtime.
	Signature Signature

	// Author overrides the recorded author. Defaults to the manifest
	// author, then the invoking user.
	Author string

	// Env replaces the layered environment entirely when set. Used by
	// tests; normal runs leave it nil and get defaults + manifest env
	// + process env.
	Env map[string]string
}

// Engine runs the distribution state machine over manifest targets.
type Engine struct {
	fs   types.FS
	reg  *pipeline.Registry
	opts Options

	store *store.Store

	// locks serializes mappings that share a destination root.
	locks sync.Map
}

// New creates an engine. The registry supplies function pipeline
// steps; pass an empty registry when only script steps are used.
func New(fsys types.FS, reg *pipeline.Registry, opts Options) *Engine {
	if opts.Signature == nil {
		opts.Signature = SizeMtime{}
	}
	if opts.BuildDir == "" {
		opts.BuildDir = filepath.Join(os.TempDir(), "distman-build")
	}
	return &Engine{
		fs:    fsys,
		reg:   reg,
		opts:  opts,
		store: store.New(fsys, store.Options{FollowSymlinks: opts.FollowSymlinks}),
	}
}

// environment returns the variable map for a run.
func (e *Engine) environment(m *types.Manifest) (map[string]string, error) {
	if e.opts.Env != nil {
		return e.opts.Env, nil
	}
	return environ.Build(m.Env)
}

// selectTargets returns the targets the run covers, in stable order.
// Requesting an unknown target name is an input error.
func (e *Engine) selectTargets(m *types.Manifest) ([]types.Target, error) {
	names := e.opts.Targets
	if len(names) == 0 {
		names = m.TargetNames()
	}
	targets := make([]types.Target, 0, len(names))
	for _, name := range names {
		t, ok := m.Targets[name]
		if !ok {
			return nil, errors.Newf(errors.ErrInvalidInput, "no such target: %s", name)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Dist runs the full distribution state machine. Configuration errors
// surface before any filesystem mutation; per-target errors land in
// the summary instead.
func (e *Engine) Dist(ctx context.Context, m *types.Manifest, baseDir string) (*types.RunSummary, error) {
	log := logging.GetLogger("engine")

	env, err := e.environment(m)
	if err != nil {
		return nil, err
	}
	targets, err := e.selectTargets(m)
	if err != nil {
		return nil, err
	}
	res := resolver.New(e.fs, baseDir, env)

	// Validate every target before touching anything: a malformed
	// template aborts the whole run with no partial state.
	for _, t := range targets {
		if err := res.Validate(t); err != nil {
			return nil, err
		}
		if _, err := pipeline.ResolveSteps(m.StepsFor(t), m.Pipeline); err != nil {
			return nil, err
		}
	}

	if e.opts.DryRun {
		log.Info().Msg("dry run: no changes will be made")
	}

	ignoreMissing := e.opts.IgnoreMissing || isTruthy(env[EnvIgnoreMissing])
	summary := &types.RunSummary{}

	if e.opts.Parallel > 1 {
		return summary, e.distParallel(ctx, m, res, targets, baseDir, ignoreMissing, summary)
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		for _, result := range e.processTarget(ctx, m, res, t, baseDir, ignoreMissing) {
			summary.Add(result)
		}
	}
	return summary, nil
}

func (e *Engine) distParallel(ctx context.Context, m *types.Manifest, res *resolver.Resolver,
	targets []types.Target, baseDir string, ignoreMissing bool, summary *types.RunSummary) error {

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallel)
	var mu sync.Mutex

	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results := e.processTarget(ctx, m, res, t, baseDir, ignoreMissing)
			mu.Lock()
			defer mu.Unlock()
			for _, r := range results {
				summary.Add(r)
			}
			return nil
		})
	}
	return g.Wait()
}

// processTarget resolves one target and runs each resulting mapping
// through the state machine. A wildcard target yields one result per
// match.
func (e *Engine) processTarget(ctx context.Context, m *types.Manifest, res *resolver.Resolver,
	t types.Target, baseDir string, ignoreMissing bool) []types.TargetResult {

	log := logging.GetLogger("engine")
	log.Debug().Str("target", t.Name).Msg("resolving")

	mappings, err := res.Resolve(t)
	if err != nil {
		return []types.TargetResult{{
			Target: t.Name, State: types.StateFailed,
			Message: err.Error(), Err: err,
		}}
	}
	if len(mappings) == 0 {
		return []types.TargetResult{{
			Target: t.Name, State: types.StateSkipped,
			Message: fmt.Sprintf("no matches for %s", t.Source),
		}}
	}

	results := make([]types.TargetResult, 0, len(mappings))
	for _, mapping := range mappings {
		label := t.Name
		if len(mappings) > 1 {
			label = fmt.Sprintf("%s (%s)", t.Name, mapping.Source)
		}
		results = append(results, e.processMapping(ctx, m, t, label, mapping, baseDir, ignoreMissing))
	}
	return results
}

// processMapping runs one concrete source/destination pair through
// change detection, the pipeline, and publish.
func (e *Engine) processMapping(ctx context.Context, m *types.Manifest, t types.Target,
	label string, mapping types.ResolvedMapping, baseDir string, ignoreMissing bool) types.TargetResult {

	log := logging.GetLogger("engine")
	dest := mapping.Destination

	source := mapping.Source
	if !filepath.IsAbs(source) {
		source = filepath.Join(baseDir, source)
	}

	if !filesystem.Exists(e.fs, source) {
		if ignoreMissing {
			log.Warn().Str("target", label).Str("source", source).Msg("source missing, skipping")
			return types.TargetResult{Target: label, State: types.StateSkipped,
				Message: fmt.Sprintf("source missing: %s", mapping.Source)}
		}
		err := errors.Newf(errors.ErrSourceMissing, "source does not exist: %s", source)
		return types.TargetResult{Target: label, State: types.StateFailed,
			Message: err.Error(), Err: err}
	}

	// Two mappings publishing under one destination root race on
	// version allocation; serialize them.
	unlock := e.lockRoot(filepath.Dir(dest))
	defer unlock()

	signature, err := e.opts.Signature.Compute(e.fs, source)
	if err != nil {
		return types.TargetResult{Target: label, State: types.StateFailed,
			Message: err.Error(), Err: err}
	}

	record := distinfo.Read(e.fs, dest)
	unchanged := record != nil &&
		record.Source == source &&
		record.Signature == signature &&
		!e.opts.Force

	if unchanged {
		return e.finishUnchanged(label, dest, record)
	}

	nextVersion, err := e.store.NextVersion(dest)
	if err != nil {
		return types.TargetResult{Target: label, State: types.StateFailed,
			Message: err.Error(), Err: err}
	}

	if e.opts.DryRun {
		return types.TargetResult{Target: label, State: types.StatePublished, Version: nextVersion,
			Message: fmt.Sprintf("would publish as version %d", nextVersion)}
	}

	steps, err := pipeline.ResolveSteps(m.StepsFor(t), m.Pipeline)
	if err != nil {
		return types.TargetResult{Target: label, State: types.StateFailed,
			Message: err.Error(), Err: err}
	}
	pipe := pipeline.New(e.fs, e.reg, e.opts.BuildDir)

	// Each mapping stages under its own key so wildcard matches of the
	// same target never share a work area.
	stageKey := filepath.Join(t.Name, filepath.Base(dest))

	log.Debug().Str("target", label).Int("steps", len(steps)).Msg("transforming")
	staged, err := pipe.Run(ctx, stageKey, steps, source)
	if err != nil {
		return types.TargetResult{Target: label, State: types.StateFailed,
			Message: err.Error(), Err: err}
	}

	result, err := e.store.Publish(staged, dest, nextVersion, ShortID(signature))
	if err != nil {
		return types.TargetResult{Target: label, State: types.StateFailed,
			Message: err.Error(), Err: err}
	}

	if err := distinfo.Write(e.fs, dest, distinfo.Record{
		Source:    source,
		Version:   result.Version,
		Timestamp: time.Now(),
		Author:    e.author(m),
		Signature: signature,
	}); err != nil {
		// The publish itself succeeded; a failed sidecar write only
		// costs an extra publish next run.
		log.Warn().Err(err).Str("target", label).Msg("failed to write dist info")
	}

	log.Info().Str("target", label).Int("version", result.Version).Str("dest", dest).Msg("published")
	return types.TargetResult{Target: label, State: types.StatePublished, Version: result.Version,
		Message: fmt.Sprintf("published version %d", result.Version)}
}

// finishUnchanged handles the unchanged branch, repairing a missing or
// dangling stable link by relinking the latest stored version.
func (e *Engine) finishUnchanged(label, dest string, record *distinfo.Record) types.TargetResult {
	log := logging.GetLogger("engine")

	if e.store.LinkHealthy(dest) {
		return types.TargetResult{Target: label, State: types.StateUnchanged,
			Version: record.Version, Message: "unchanged"}
	}

	if e.opts.DryRun {
		return types.TargetResult{Target: label, State: types.StateUnchanged,
			Version: record.Version, Message: "would repair broken link"}
	}
	entry, err := e.store.LinkLatest(dest)
	if err != nil {
		return types.TargetResult{Target: label, State: types.StateFailed,
			Message: err.Error(), Err: err}
	}
	log.Info().Str("target", label).Str("dest", dest).Int("version", entry.Version).
		Msg("repaired broken link")
	return types.TargetResult{Target: label, State: types.StateUnchanged,
		Version: entry.Version, Message: fmt.Sprintf("repaired link to version %d", entry.Version)}
}

func (e *Engine) author(m *types.Manifest) string {
	if e.opts.Author != "" {
		return e.opts.Author
	}
	if m.Author != "" {
		return m.Author
	}
	return environ.Author()
}

func (e *Engine) lockRoot(root string) func() {
	v, _ := e.locks.LoadOrStore(root, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
