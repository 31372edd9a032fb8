// Package environ assembles the variable environment that path
// templates resolve against. Three layers stack through koanf, later
// layers winning: built-in defaults, the manifest's env block, and the
// process environment. Values may themselves contain {VAR} tokens;
// expansion is the resolver's job, not this package's.
package environ

import (
	"os"
	"runtime"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/arthur-debert/distman/pkg/errors"
)

// Variable names with built-in defaults.
const (
	VarEnv        = "ENV"
	VarHome       = "HOME"
	VarRoot       = "ROOT"
	VarDeployRoot = "DEPLOY_ROOT"
)

// Environment variable names shadow any path separator meaning, so an
// unused delimiter keeps koanf from splitting keys like LS_COLORS.
const delim = "\x00"

// Defaults returns the built-in layer: a prod environment rooted under
// the platform data directory.
func Defaults() map[string]string {
	root := xdg.DataHome + string(os.PathSeparator) + "pipe"
	if runtime.GOOS == "windows" {
		root = `C:\ProgramData\pipe`
	}
	return map[string]string{
		VarEnv:        "prod",
		VarHome:       os.Getenv("HOME"),
		VarRoot:       root,
		VarDeployRoot: "{ROOT}/{ENV}",
	}
}

// Build layers defaults, the manifest env block, and the process
// environment, and returns the merged string map. The process
// environment wins so operators can redirect a distribution without
// editing the manifest (ENV=dev dist ...).
func Build(manifestEnv map[string]string) (map[string]string, error) {
	k := koanf.New(delim)

	if err := k.Load(confmap.Provider(toAny(Defaults()), delim), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "loading default environment")
	}
	if len(manifestEnv) > 0 {
		if err := k.Load(confmap.Provider(toAny(manifestEnv), delim), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "loading manifest environment")
		}
	}
	if err := k.Load(env.Provider("", delim, nil), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "loading process environment")
	}

	merged := make(map[string]string)
	for _, key := range k.Keys() {
		merged[key] = k.String(key)
	}
	return merged, nil
}

func toAny(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for key, value := range m {
		out[key] = value
	}
	return out
}

// Author returns the name recorded in dist info sidecars for new
// versions.
func Author() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "unknown"
}
