package pipeline

import (
	"sort"

	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/types"
)

// Func is an in-process transform step. It receives the staged input
// path, the location it should produce output at, and the step's
// option mapping. It returns the path holding its output, which may be
// the output location or the input mutated in place.
type Func func(fsys types.FS, input, output string, options map[string]string) (string, error)

// Registry maps step function names to implementations. It is
// populated at process startup by the CLI layer; the pipeline only
// depends on lookup.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry creates an empty step registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds a named transform. Registering a name twice replaces
// the earlier implementation.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Lookup returns the transform registered under name.
func (r *Registry) Lookup(name string) (Func, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, errors.Newf(errors.ErrStepNotFound, "no transform registered as %q", name)
	}
	return fn, nil
}

// Names returns the registered transform names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
