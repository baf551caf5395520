package fs

import (
	"path"
	"strings"

	"go.trai.ch/rex/internal/core/domain"
)

// matcher evaluates PathGlobs against slash-separated relative paths.
type matcher struct {
	include [][]string
	exclude [][]string
}

func newMatcher(g domain.PathGlobs) (*matcher, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	m := &matcher{}
	for _, p := range g.Include {
		segs, err := compile(p)
		if err != nil {
			return nil, err
		}
		m.include = append(m.include, segs)
	}
	for _, p := range g.Exclude {
		segs, err := compile(p)
		if err != nil {
			return nil, err
		}
		m.exclude = append(m.exclude, segs)
	}
	return m, nil
}

func compile(pattern string) ([]string, error) {
	cleaned, err := domain.CleanRelativePath(pattern)
	if err != nil {
		return nil, err
	}
	segs := domain.SplitPath(cleaned)
	for _, s := range segs {
		if s == "**" {
			continue
		}
		if _, err := path.Match(s, ""); err != nil {
			return nil, err
		}
	}
	return segs, nil
}

// Included reports whether p, or a directory containing it, is selected by an
// include and neither p nor any parent is excluded.
func (m *matcher) Included(p string) bool {
	parts := strings.Split(p, "/")
	selected := false
	for i := 1; i <= len(parts); i++ {
		if anyMatch(m.exclude, parts[:i]) {
			return false
		}
		if !selected && anyMatch(m.include, parts[:i]) {
			selected = true
		}
	}
	return selected
}

// Excluded reports whether p or one of its parent directories matches an
// exclude pattern.
func (m *matcher) Excluded(p string) bool {
	parts := strings.Split(p, "/")
	for i := 1; i <= len(parts); i++ {
		if anyMatch(m.exclude, parts[:i]) {
			return true
		}
	}
	return false
}

// underInclude reports whether p is a directory whose contents an include
// pattern could select, so the walk must descend into it.
func (m *matcher) underInclude(p string) bool {
	parts := strings.Split(p, "/")
	for _, inc := range m.include {
		if prefixMatch(inc, parts) {
			return true
		}
	}
	return false
}

// literals returns the include patterns without wildcard characters.
func (m *matcher) literals() []string {
	var out []string
	for _, inc := range m.include {
		joined := strings.Join(inc, "/")
		if !strings.ContainsAny(joined, "*?[") {
			out = append(out, joined)
		}
	}
	return out
}

func anyMatch(patterns [][]string, parts []string) bool {
	for _, p := range patterns {
		if matchSegments(p, parts) {
			return true
		}
	}
	return false
}

func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	if ok, _ := path.Match(pattern[0], parts[0]); !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}

// prefixMatch reports whether parts could be the leading directories of a path matched by pattern.
func prefixMatch(pattern, parts []string) bool {
	if len(parts) == 0 {
		return true
	}
	if len(pattern) == 0 {
		return false
	}
	if pattern[0] == "**" {
		return true
	}
	if ok, _ := path.Match(pattern[0], parts[0]); !ok {
		return false
	}
	return prefixMatch(pattern[1:], parts[1:])
}
