package resolver

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/arthur-debert/distman/pkg/errors"
	"github.com/arthur-debert/distman/pkg/types"
)

// capturePattern matches positional %N tokens in destination templates.
var capturePattern = regexp.MustCompile(`%([1-9][0-9]*)`)

// Match is one filesystem entry matched by a wildcard pattern,
// together with the substrings matched by each wildcard group.
type Match struct {
	Path     string
	Captures []string
}

// HasWildcards reports whether the path contains shell-style glob
// characters.
func HasWildcards(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// CountGroups returns the number of wildcard groups in a pattern.
// Each *, ? and [...] class counts as one group.
func CountGroups(pattern string) int {
	n := 0
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*', '?':
			n++
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				continue
			}
			n++
			i += end + 1
		}
	}
	return n
}

// MaxCaptureToken returns the highest %N referenced in a template, or
// zero when none are present.
func MaxCaptureToken(template string) int {
	max := 0
	for _, m := range capturePattern.FindAllStringSubmatch(template, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > max {
			max = n
		}
	}
	return max
}

// SubstituteCaptures replaces %N tokens with the corresponding capture
// (1-based). Referencing a token beyond the capture count is a
// configuration error.
func SubstituteCaptures(template string, captures []string) (string, error) {
	var firstErr error
	out := capturePattern.ReplaceAllStringFunc(template, func(tok string) string {
		n, _ := strconv.Atoi(tok[1:])
		if n > len(captures) {
			if firstErr == nil {
				firstErr = errors.Newf(errors.ErrCaptureOutOfRange,
					"token %%%d referenced but only %d wildcard groups matched", n, len(captures))
			}
			return tok
		}
		return captures[n-1]
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Glob enumerates filesystem entries under base matching pattern,
// extracting the substring matched by each wildcard group. Results are
// sorted lexicographically by path; paths are relative to base.
func Glob(fsys types.FS, base, pattern string) ([]Match, error) {
	segments := strings.Split(path.Clean(pattern), "/")

	matches := []Match{{Path: "", Captures: nil}}
	for i, segment := range segments {
		last := i == len(segments)-1
		var next []Match
		for _, m := range matches {
			dir := path.Join(base, m.Path)
			if !HasWildcards(segment) {
				candidate := path.Join(m.Path, segment)
				full := path.Join(base, candidate)
				info, err := fsys.Lstat(full)
				if err != nil {
					continue
				}
				if !last && !info.IsDir() {
					continue
				}
				next = append(next, Match{Path: candidate, Captures: m.Captures})
				continue
			}
			re, err := segmentRegexp(segment)
			if err != nil {
				return nil, err
			}
			entries, err := fsys.ReadDir(dir)
			if err != nil {
				continue
			}
			names := make([]string, 0, len(entries))
			isDir := make(map[string]bool, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
				isDir[e.Name()] = e.IsDir()
			}
			sort.Strings(names)
			for _, name := range names {
				groups := re.FindStringSubmatch(name)
				if groups == nil {
					continue
				}
				if !last && !isDir[name] {
					continue
				}
				captures := append(append([]string(nil), m.Captures...), groups[1:]...)
				next = append(next, Match{Path: path.Join(m.Path, name), Captures: captures})
			}
		}
		matches = next
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Path < matches[j].Path })
	return matches, nil
}

// segmentRegexp translates one glob path segment into an anchored
// regexp with one capture group per wildcard group.
func segmentRegexp(segment string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		switch c {
		case '*':
			b.WriteString("([^/]*)")
		case '?':
			b.WriteString("([^/])")
		case '[':
			end := strings.IndexByte(segment[i+1:], ']')
			if end < 0 {
				b.WriteString(regexp.QuoteMeta(string(c)))
				continue
			}
			class := segment[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("([" + class + "])")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTemplateInvalid,
			"invalid wildcard segment %q", segment)
	}
	return re, nil
}
