// TEST TYPE: Built-in Transform Tests
// DEPENDENCIES: Real filesystem

package transform_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/filesystem"
	"github.com/arthur-debert/distman/pkg/pipeline"
	"github.com/arthur-debert/distman/pkg/transform"
	"github.com/arthur-debert/distman/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fs types.FS, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, fs.WriteFile(path, []byte(content), 0644))
}

func TestRegisterBuiltins(t *testing.T) {
	reg := pipeline.NewRegistry()
	transform.RegisterBuiltins(reg)
	assert.Equal(t, []string{"chmod", "replace-tokens", "upper"}, reg.Names())
}

func TestUpper(t *testing.T) {
	fs := filesystem.NewOS()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	writeFile(t, fs, in, "hello")

	result, err := transform.Upper(fs, in, out, nil)
	require.NoError(t, err)
	assert.Equal(t, out, result)

	data, err := fs.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(data))
}

func TestReplaceTokensFile(t *testing.T) {
	fs := filesystem.NewOS()
	dir := t.TempDir()
	staged := filepath.Join(dir, "app.conf")
	writeFile(t, fs, staged, "root=@ROOT@ env=@ENV@")

	result, err := transform.ReplaceTokens(fs, staged, staged, map[string]string{
		"@ROOT@": "/opt/pipe",
		"@ENV@":  "prod",
	})
	require.NoError(t, err)

	data, err := fs.ReadFile(result)
	require.NoError(t, err)
	assert.Equal(t, "root=/opt/pipe env=prod", string(data))
}

func TestReplaceTokensDirectorySkipsBinary(t *testing.T) {
	fs := filesystem.NewOS()
	staged := filepath.Join(t.TempDir(), "pkg")
	writeFile(t, fs, filepath.Join(staged, "a.txt"), "x=@TOKEN@")
	writeFile(t, fs, filepath.Join(staged, "sub", "b.txt"), "y=@TOKEN@")
	binary := string([]byte{'@', 'T', 'O', 'K', 'E', 'N', '@', 0, 1, 2})
	writeFile(t, fs, filepath.Join(staged, "blob.bin"), binary)

	_, err := transform.ReplaceTokens(fs, staged, staged, map[string]string{"@TOKEN@": "v"})
	require.NoError(t, err)

	data, _ := fs.ReadFile(filepath.Join(staged, "a.txt"))
	assert.Equal(t, "x=v", string(data))
	data, _ = fs.ReadFile(filepath.Join(staged, "sub", "b.txt"))
	assert.Equal(t, "y=v", string(data))
	data, _ = fs.ReadFile(filepath.Join(staged, "blob.bin"))
	assert.Equal(t, binary, string(data), "binary files must not be rewritten")
}

func TestReplaceTokensEmptyFile(t *testing.T) {
	fs := filesystem.NewOS()
	staged := filepath.Join(t.TempDir(), "empty.txt")
	writeFile(t, fs, staged, "")

	_, err := transform.ReplaceTokens(fs, staged, staged, map[string]string{"a": "b"})
	require.NoError(t, err)
}

func TestChmod(t *testing.T) {
	fs := filesystem.NewOS()
	staged := filepath.Join(t.TempDir(), "tool.sh")
	writeFile(t, fs, staged, "#!/bin/sh\n")

	result, err := transform.Chmod(fs, staged, staged, map[string]string{"mode": "755"})
	require.NoError(t, err)

	info, err := fs.Stat(result)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestChmodErrors(t *testing.T) {
	fs := filesystem.NewOS()
	staged := filepath.Join(t.TempDir(), "tool.sh")
	writeFile(t, fs, staged, "x")

	_, err := transform.Chmod(fs, staged, staged, nil)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPipelineInvalid))

	_, err = transform.Chmod(fs, staged, staged, map[string]string{"mode": "9zz"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrPipelineInvalid))
}
