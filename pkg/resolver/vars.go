package resolver

import (
	"regexp"
	"strings"

	"github.com/arthur-debert/distman/pkg/errors"
)

// maxExpansions bounds nested variable expansion so that cyclic
// definitions terminate.
const maxExpansions = 10

// tokenPattern matches ${NAME}, ${NAME:=default} and {NAME} forms.
var tokenPattern = regexp.MustCompile(
	`\$\{([A-Za-z_][A-Za-z0-9_]*)(:=[^}]*)?\}|\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandVars substitutes environment variable tokens in template.
// Substitution is single-pass left-to-right; values that themselves
// contain tokens are resolved on subsequent passes up to a fixed
// point. A variable that is absent from env with no default fails
// with VAR_UNRESOLVED; a cycle fails with CYCLIC_VARIABLE.
func ExpandVars(template string, env map[string]string) (string, error) {
	current := template
	for i := 0; i < maxExpansions; i++ {
		next, err := expandOnce(current, env)
		if err != nil {
			return "", err
		}
		if next == current {
			return current, nil
		}
		current = next
	}
	return "", errors.Newf(errors.ErrCyclicVariable,
		"variable expansion did not converge after %d passes: %q",
		maxExpansions, template)
}

func expandOnce(s string, env map[string]string) (string, error) {
	var firstErr error
	out := tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		if firstErr != nil {
			return tok
		}
		m := tokenPattern.FindStringSubmatch(tok)
		name := m[1]
		if name == "" {
			name = m[3]
		}
		value, ok := env[name]
		// The default form applies when the variable is absent or
		// empty in env.
		if m[2] != "" && (!ok || value == "") {
			return strings.TrimPrefix(m[2], ":=")
		}
		if !ok {
			firstErr = errors.Newf(errors.ErrVarUnresolved,
				"cannot resolve variable %q in %q", name, s)
			return tok
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
