// Package pipeline runs ordered transform steps against staged content
// before it is published to the version store. Steps are either
// external commands (with {input}/{output} placeholders) or functions
// looked up in a registry. A failing step aborts the target's
// distribution; nothing is published.
package pipeline

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/filesystem"
	"github.com/arthur-debert/distman/pkg/logging"
	"github.com/arthur-debert/distman/pkg/types"
)

// Step is one named, resolved pipeline step.
type Step struct {
	Name string
	Spec types.StepSpec
}

// Pipeline executes steps in declared order, each step's output
// becoming the next step's input.
type Pipeline struct {
	fs       types.FS
	registry *Registry
	buildDir string
}

// New creates a pipeline that stages intermediate outputs under
// buildDir.
func New(fsys types.FS, registry *Registry, buildDir string) *Pipeline {
	return &Pipeline{fs: fsys, registry: registry, buildDir: buildDir}
}

// ValidateSpecs checks the structure of declared steps: each must have
// exactly one of script or func, and options only make sense for
// function steps. Violations are configuration errors.
func ValidateSpecs(specs map[string]types.StepSpec) error {
	for name, spec := range specs {
		hasScript := len(spec.Script) > 0
		hasFunc := spec.Func != ""
		switch {
		case hasScript && hasFunc:
			return errors.Newf(errors.ErrPipelineInvalid,
				"step %q declares both script and func", name)
		case !hasScript && !hasFunc:
			return errors.Newf(errors.ErrPipelineInvalid,
				"step %q must declare script or func", name)
		case hasScript && len(spec.Options) > 0:
			return errors.Newf(errors.ErrPipelineInvalid,
				"step %q: options are only valid for func steps", name)
		}
	}
	return nil
}

// ResolveSteps maps a target's ordered step names onto the declared
// specs. An unknown name is a configuration error.
func ResolveSteps(names []string, specs map[string]types.StepSpec) ([]Step, error) {
	steps := make([]Step, 0, len(names))
	for _, name := range names {
		spec, ok := specs[name]
		if !ok {
			return nil, errors.Newf(errors.ErrPipelineInvalid,
				"pipeline references undeclared step %q", name)
		}
		steps = append(steps, Step{Name: name, Spec: spec})
	}
	return steps, nil
}

// Run executes the steps strictly in order against input and returns
// the final staged output path. With no steps, input is returned
// unchanged. Each step's staged copy lives under
// <buildDir>/<target>/<step>/.
func (p *Pipeline) Run(ctx context.Context, target string, steps []Step, input string) (string, error) {
	log := logging.GetLogger("pipeline")
	current := input

	for _, step := range steps {
		log.Info().Str("target", target).Str("step", step.Name).Msg("running step")

		output, err := p.stage(target, step.Name, current)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrPipelineStep,
				"step %q: failed to stage input", step.Name).WithDetail("step", step.Name)
		}

		switch {
		case len(step.Spec.Script) > 0:
			if err := p.runScript(ctx, step, current, output); err != nil {
				return "", err
			}
			current = output
		default:
			fn, err := p.registry.Lookup(step.Spec.Func)
			if err != nil {
				return "", err
			}
			result, err := fn(p.fs, current, output, step.Spec.Options)
			if err != nil {
				return "", errors.Wrapf(err, errors.ErrPipelineStep,
					"step %q failed", step.Name).WithDetail("step", step.Name)
			}
			current = result
		}
	}
	return current, nil
}

// stage copies the current content into the step's work area so the
// step can mutate it freely without touching the previous stage.
func (p *Pipeline) stage(target, stepName, current string) (string, error) {
	var output string
	if filesystem.IsDir(p.fs, current) {
		output = filepath.Join(p.buildDir, target, stepName)
	} else {
		output = filepath.Join(p.buildDir, target, stepName, filepath.Base(current))
	}
	if err := p.fs.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return "", err
	}
	if err := filesystem.CopyAny(p.fs, current, output, false); err != nil {
		return "", err
	}
	return output, nil
}

// runScript executes an external command step synchronously. Multiple
// commands join with " && "; a non-zero exit aborts the target.
func (p *Pipeline) runScript(ctx context.Context, step Step, input, output string) error {
	log := logging.GetLogger("pipeline")

	script := strings.Join(step.Spec.Script, " && ")
	script = strings.ReplaceAll(script, "{input}", shellQuote(input))
	script = strings.ReplaceAll(script, "{output}", shellQuote(output))

	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	out, err := cmd.CombinedOutput()
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		log.Error().Str("step", step.Name).Int("exitCode", exitCode).
			Str("output", strings.TrimSpace(string(out))).Msg("step command failed")
		return errors.Wrapf(err, errors.ErrPipelineStep,
			"step %q exited with status %d", step.Name, exitCode).
			WithDetail("step", step.Name).
			WithDetail("exitCode", exitCode)
	}
	log.Debug().Str("step", step.Name).Str("script", script).Msg("step command completed")
	return nil
}

// shellQuote wraps a path in single quotes for sh -c, escaping
// embedded quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
