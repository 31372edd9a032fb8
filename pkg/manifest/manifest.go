// Package manifest loads and validates dist files. A dist file may be
// JSON, YAML, or TOML; the parser is chosen by extension and the
// result is the same types.Manifest either way.
package manifest

import (
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"

	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/logging"
	"github.com/arthur-debert/distman/pkg/pipeline"
	"github.com/arthur-debert/distman/pkg/types"
)

// DistFileNames lists the file names Discover probes, in preference
// order.
var DistFileNames = []string{"dist.json", "dist.yaml", "dist.yml", "dist.toml"}

// rawBytesProvider feeds already-read bytes to koanf, so loading goes
// through the types.FS boundary instead of the OS directly.
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, fmt.Errorf("raw bytes provider does not support Read")
}

// Discover returns the path of the dist file in dir, probing the
// well-known names in order.
func Discover(fsys types.FS, dir string) (string, error) {
	for _, name := range DistFileNames {
		path := filepath.Join(dir, name)
		if _, err := fsys.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Newf(errors.ErrFileNotFound,
		"no dist file found in %s (tried %v)", dir, DistFileNames)
}

// Load reads, parses, and validates the dist file at path.
func Load(fsys types.FS, path string) (*types.Manifest, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "cannot read %s", path)
	}

	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: data}, parser); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "cannot parse %s", path)
	}

	var m types.Manifest
	if err := k.UnmarshalWithConf("", &m, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:     &m,
			TagName:    "koanf",
			DecodeHook: stringToSliceHook,
		},
	}); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "invalid structure in %s", path)
	}

	for name, target := range m.Targets {
		target.Name = name
		m.Targets[name] = target
	}

	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadDir discovers and loads the dist file in dir.
func LoadDir(fsys types.FS, dir string) (*types.Manifest, string, error) {
	path, err := Discover(fsys, dir)
	if err != nil {
		return nil, "", err
	}
	m, err := Load(fsys, path)
	return m, path, err
}

func parserFor(path string) (koanf.Parser, error) {
	switch filepath.Ext(path) {
	case ".json":
		return json.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	}
	return nil, errors.Newf(errors.ErrConfigLoad, "unsupported dist file format: %s", path)
}

// stringToSliceHook lets manifests write a single-command script as a
// plain string instead of a one-element list.
func stringToSliceHook(from, to reflect.Kind, data interface{}) (interface{}, error) {
	if from == reflect.String && to == reflect.Slice {
		return []string{data.(string)}, nil
	}
	return data, nil
}

// Validate checks manifest-level structure before any target runs:
// schema version, pipeline step declarations, and per-target fields.
// Every violation here is fatal, the run aborts before touching the
// filesystem.
func Validate(m *types.Manifest) error {
	log := logging.GetLogger("manifest")

	if m.Version > types.CurrentManifestVersion {
		return errors.Newf(errors.ErrManifestVersion,
			"manifest version %d is newer than supported version %d",
			m.Version, types.CurrentManifestVersion)
	}
	if m.Version < types.CurrentManifestVersion {
		log.Warn().Int("version", m.Version).
			Int("current", types.CurrentManifestVersion).
			Msg("manifest uses an older schema version")
	}

	if len(m.Targets) == 0 {
		return errors.New(errors.ErrConfigInvalid, "manifest declares no targets")
	}

	if err := pipeline.ValidateSpecs(m.Pipeline); err != nil {
		return err
	}

	for _, name := range m.TargetNames() {
		target := m.Targets[name]
		if target.Source == "" {
			return errors.Newf(errors.ErrConfigInvalid, "target %q has no source", name)
		}
		if target.Destination == "" {
			return errors.Newf(errors.ErrConfigInvalid, "target %q has no destination", name)
		}
		if _, err := pipeline.ResolveSteps(m.StepsFor(target), m.Pipeline); err != nil {
			return errors.Wrapf(err, errors.ErrPipelineInvalid, "target %q", name)
		}
	}
	return nil
}
