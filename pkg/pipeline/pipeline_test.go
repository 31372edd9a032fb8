package pipeline_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/filesystem"
	"github.com/arthur-debert/distman/pkg/pipeline"
	"github.com/arthur-debert/distman/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPipeline(t *testing.T) (*pipeline.Pipeline, *pipeline.Registry, types.FS, string) {
	t.Helper()
	fs := filesystem.NewOS()
	dir := t.TempDir()
	reg := pipeline.NewRegistry()
	return pipeline.New(fs, reg, filepath.Join(dir, "build")), reg, fs, dir
}

func TestValidateSpecs(t *testing.T) {
	tests := []struct {
		name  string
		specs map[string]types.StepSpec
		ok    bool
	}{
		{"script_ok", map[string]types.StepSpec{"a": {Script: []string{"true"}}}, true},
		{"func_ok", map[string]types.StepSpec{"a": {Func: "upper"}}, true},
		{"func_options_ok", map[string]types.StepSpec{"a": {Func: "chmod", Options: map[string]string{"mode": "755"}}}, true},
		{"both", map[string]types.StepSpec{"a": {Script: []string{"true"}, Func: "upper"}}, false},
		{"neither", map[string]types.StepSpec{"a": {}}, false},
		{"script_with_options", map[string]types.StepSpec{"a": {Script: []string{"true"}, Options: map[string]string{"x": "y"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pipeline.ValidateSpecs(tt.specs)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.IsErrorCode(err, errors.ErrPipelineInvalid))
			}
		})
	}
}

func TestResolveStepsUnknownName(t *testing.T) {
	_, err := pipeline.ResolveSteps([]string{"nope"}, map[string]types.StepSpec{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPipelineInvalid))
}

func TestRunNoStepsReturnsInput(t *testing.T) {
	p, _, fs, dir := setupPipeline(t)
	input := filepath.Join(dir, "in.txt")
	require.NoError(t, fs.WriteFile(input, []byte("x"), 0644))

	out, err := p.Run(context.Background(), "t", nil, input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestRunScriptStep(t *testing.T) {
	p, _, fs, dir := setupPipeline(t)
	input := filepath.Join(dir, "in.txt")
	require.NoError(t, fs.WriteFile(input, []byte("hello"), 0644))

	steps := []pipeline.Step{{
		Name: "annotate",
		Spec: types.StepSpec{Script: []string{"cat {input} > {output}", "printf ' world' >> {output}"}},
	}}
	out, err := p.Run(context.Background(), "t", steps, input)
	require.NoError(t, err)

	data, err := fs.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	// input was staged, not mutated
	data, err = fs.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestRunFuncStep(t *testing.T) {
	p, reg, fs, dir := setupPipeline(t)
	reg.Register("upper", func(fsys types.FS, input, output string, _ map[string]string) (string, error) {
		data, err := fsys.ReadFile(input)
		if err != nil {
			return "", err
		}
		if err := fsys.WriteFile(output, []byte(strings.ToUpper(string(data))), 0644); err != nil {
			return "", err
		}
		return output, nil
	})

	input := filepath.Join(dir, "in.txt")
	require.NoError(t, fs.WriteFile(input, []byte("hello world"), 0644))

	steps := []pipeline.Step{{Name: "upper", Spec: types.StepSpec{Func: "upper"}}}
	out, err := p.Run(context.Background(), "t", steps, input)
	require.NoError(t, err)

	data, err := fs.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "HELLO WORLD", string(data))
}

func TestRunStepsInOrderAndChained(t *testing.T) {
	p, _, fs, dir := setupPipeline(t)
	input := filepath.Join(dir, "in.txt")
	require.NoError(t, fs.WriteFile(input, []byte("start"), 0644))

	steps := []pipeline.Step{
		{Name: "one", Spec: types.StepSpec{Script: []string{"cat {input} > {output}", "printf '+one' >> {output}"}}},
		{Name: "two", Spec: types.StepSpec{Script: []string{"cat {input} > {output}", "printf '+two' >> {output}"}}},
	}
	out, err := p.Run(context.Background(), "t", steps, input)
	require.NoError(t, err)

	data, err := fs.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "start+one+two", string(data))
}

func TestFailingStepAbortsBeforeLaterSteps(t *testing.T) {
	p, _, fs, dir := setupPipeline(t)
	input := filepath.Join(dir, "in.txt")
	require.NoError(t, fs.WriteFile(input, []byte("x"), 0644))
	marker := filepath.Join(dir, "ran-step-3")

	steps := []pipeline.Step{
		{Name: "one", Spec: types.StepSpec{Script: []string{"cat {input} > {output}"}}},
		{Name: "two", Spec: types.StepSpec{Script: []string{"exit 3"}}},
		{Name: "three", Spec: types.StepSpec{Script: []string{"touch " + marker}}},
	}
	_, err := p.Run(context.Background(), "t", steps, input)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPipelineStep))

	var derr *errors.DistError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 3, derr.Details["exitCode"])
	assert.Equal(t, "two", derr.Details["step"])

	_, statErr := fs.Lstat(marker)
	assert.Error(t, statErr, "step three must not run after step two fails")
}

func TestRunFuncStepNotRegistered(t *testing.T) {
	p, _, fs, dir := setupPipeline(t)
	input := filepath.Join(dir, "in.txt")
	require.NoError(t, fs.WriteFile(input, []byte("x"), 0644))

	steps := []pipeline.Step{{Name: "mystery", Spec: types.StepSpec{Func: "mystery"}}}
	_, err := p.Run(context.Background(), "t", steps, input)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrStepNotFound))
}

func TestRunDirectoryInput(t *testing.T) {
	p, _, fs, dir := setupPipeline(t)
	src := filepath.Join(dir, "pkg")
	require.NoError(t, fs.MkdirAll(src, 0755))
	require.NoError(t, fs.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0644))

	steps := []pipeline.Step{{
		Name: "stamp",
		Spec: types.StepSpec{Script: []string{"touch {output}/stamp"}},
	}}
	out, err := p.Run(context.Background(), "t", steps, src)
	require.NoError(t, err)

	_, err = fs.Lstat(filepath.Join(out, "stamp"))
	assert.NoError(t, err)
	data, err := fs.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}
