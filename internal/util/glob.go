package util

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Match is one file found by ExpandGlobs. Base is the static directory
// prefix of the pattern that matched, so Path relative to Base is the
// file's output-relative name.
type Match struct {
	Path string
	Base string
}

// Rel returns Path relative to Base.
func (m Match) Rel() string {
	if m.Base == "" || m.Base == "." {
		return m.Path
	}
	return strings.TrimPrefix(m.Path, m.Base+"/")
}

// NormalizePattern converts a configured pattern to the slash-separated,
// root-relative form io/fs expects.
func NormalizePattern(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	neg := strings.HasPrefix(p, "!")
	p = strings.TrimPrefix(p, "!")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		p = "."
	}
	if neg {
		return "!" + p
	}
	return p
}

// SplitPatterns separates include patterns from "!"-prefixed excludes.
func SplitPatterns(patterns []string) (include, exclude []string) {
	for _, p := range patterns {
		p = NormalizePattern(p)
		if strings.HasPrefix(p, "!") {
			ex := strings.TrimPrefix(p, "!")
			exclude = append(exclude, ex)
			// "!vendor/" style excludes cover everything beneath too.
			if !strings.HasSuffix(ex, "**") {
				exclude = append(exclude, ex+"/**")
			}
			continue
		}
		include = append(include, p)
	}
	return include, exclude
}

// ExpandGlobs returns the regular files in fsys matched by patterns.
// Results follow pattern order; matches of one pattern are sorted, and a
// file matched by several patterns is reported once, at its first match.
// Patterns prefixed with "!" exclude files matched by any other pattern.
func ExpandGlobs(fsys fs.FS, patterns []string) ([]Match, error) {
	include, exclude := SplitPatterns(patterns)

	var matches []Match
	seen := make(map[string]bool)
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern: %s", pattern)
		}
		found, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", pattern, err)
		}
		sort.Strings(found)

		base, _ := doublestar.SplitPattern(pattern)
		for _, p := range found {
			if seen[p] || matchAny(exclude, p) {
				continue
			}
			info, err := fs.Stat(fsys, p)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", p, err)
			}
			if info.IsDir() {
				continue
			}
			seen[p] = true
			matches = append(matches, Match{Path: p, Base: base})
		}
	}
	return matches, nil
}

// Matcher reports whether a root-relative path is selected by a pattern list.
type Matcher struct {
	include []string
	exclude []string
}

// NewMatcher compiles patterns into a Matcher.
func NewMatcher(patterns []string) (*Matcher, error) {
	include, exclude := SplitPatterns(patterns)
	for _, p := range append(include, exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern: %s", p)
		}
	}
	return &Matcher{include: include, exclude: exclude}, nil
}

// Match reports whether name (slash or OS separated, root-relative) matches.
func (m *Matcher) Match(name string) bool {
	name = path.Clean(filepath.ToSlash(name))
	return matchAny(m.include, name) && !matchAny(m.exclude, name)
}

// Bases returns the static directory prefix of every include pattern,
// deduplicated, in pattern order. These are the directories a watcher
// must observe.
func (m *Matcher) Bases() []string {
	var bases []string
	seen := make(map[string]bool)
	for _, p := range m.include {
		base, _ := doublestar.SplitPattern(p)
		if !seen[base] {
			seen[base] = true
			bases = append(bases, base)
		}
	}
	return bases
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
