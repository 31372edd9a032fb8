// Package transform provides the built-in pipeline step functions:
// in-process transforms that manifests can reference by name instead
// of shelling out. The CLI registers them at startup.
package transform

import (
	"bytes"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/filesystem"
	"github.com/arthur-debert/distman/pkg/logging"
	"github.com/arthur-debert/distman/pkg/pipeline"
	"github.com/arthur-debert/distman/pkg/types"
)

// RegisterBuiltins adds every built-in transform to the registry.
func RegisterBuiltins(reg *pipeline.Registry) {
	reg.Register("upper", Upper)
	reg.Register("replace-tokens", ReplaceTokens)
	reg.Register("chmod", Chmod)
}

// Upper uppercases the staged file's contents. Mostly useful as a
// visible smoke test that a pipeline actually ran.
func Upper(fsys types.FS, input, output string, _ map[string]string) (string, error) {
	data, err := fsys.ReadFile(input)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", input)
	}
	if err := fsys.WriteFile(output, bytes.ToUpper(data), 0644); err != nil {
		return "", errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", output)
	}
	return output, nil
}

// ReplaceTokens substitutes each option key with its value, literally,
// in every text file of the staged content. Binary files are left
// alone. The staged copy at output is rewritten in place.
func ReplaceTokens(fsys types.FS, input, output string, options map[string]string) (string, error) {
	if !filesystem.IsDir(fsys, output) {
		if err := replaceInFile(fsys, output, options); err != nil {
			return "", err
		}
		return output, nil
	}
	files, err := filesystem.Walk(fsys, output)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot walk %s", output)
	}
	for _, rel := range files {
		if err := replaceInFile(fsys, filepath.Join(output, rel), options); err != nil {
			return "", err
		}
	}
	return output, nil
}

func replaceInFile(fsys types.FS, path string, tokens map[string]string) error {
	log := logging.GetLogger("transform")

	data, err := fsys.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", path)
	}
	if len(data) == 0 {
		log.Warn().Str("path", path).Msg("skipping empty file")
		return nil
	}
	if isBinary(data) {
		return nil
	}
	content := string(data)
	for token, replacement := range tokens {
		content = strings.ReplaceAll(content, token, replacement)
	}
	if content == string(data) {
		return nil
	}
	if err := fsys.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", path)
	}
	return nil
}

// isBinary guesses from a NUL byte in the leading block, the same
// heuristic grep uses.
func isBinary(data []byte) bool {
	const sniffLen = 1024
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// Chmod sets the staged file's permissions from the octal "mode"
// option, e.g. mode: "755".
func Chmod(fsys types.FS, input, output string, options map[string]string) (string, error) {
	modeStr, ok := options["mode"]
	if !ok {
		return "", errors.New(errors.ErrPipelineInvalid, "chmod requires a mode option")
	}
	mode, err := strconv.ParseUint(modeStr, 8, 32)
	if err != nil {
		return "", errors.Newf(errors.ErrPipelineInvalid, "chmod: invalid octal mode %q", modeStr)
	}
	chmodder, ok := fsys.(types.Chmodder)
	if !ok {
		return "", errors.New(errors.ErrFileAccess, "filesystem does not support chmod")
	}
	if err := chmodder.Chmod(output, fs.FileMode(mode)); err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot chmod %s", output)
	}
	return output, nil
}
