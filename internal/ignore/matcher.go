// Package ignore implements the gitignore-like rules of .docshardignore.
package ignore

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// FileName is the per-directory ignore file read when sharding a directory.
const FileName = ".docshardignore"

// DefaultRules are applied before user rules; user negations can re-include.
var DefaultRules = []string{
	".git/",
	"node_modules/",
	"vendor/",
	"shards/",
	"CHANGELOG.md",
}

type rule struct {
	re      *regexp.Regexp
	negated bool
	dirOnly bool
	// basename rules match any single path segment
	basename bool
}

// Matcher applies rules with "last matching rule wins" semantics.
type Matcher struct {
	rules []rule
}

func NewMatcher(userRules []string) *Matcher {
	m := &Matcher{}
	for _, line := range append(append([]string(nil), DefaultRules...), userRules...) {
		if r, ok := compile(line); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

// ShouldIgnore reports whether relPath (relative to the walk root) is excluded.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = strings.Trim(filepath.ToSlash(relPath), "/")
	relPath = strings.TrimPrefix(relPath, "./")
	if relPath == "" || relPath == "." {
		return false
	}

	ignored := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			ignored = !r.negated
		}
	}
	return ignored
}

// A rule matching an ancestor directory also covers everything below it.
func (r rule) matches(relPath string, isDir bool) bool {
	segments := strings.Split(relPath, "/")
	for i := range segments {
		last := i == len(segments)-1
		if r.dirOnly && last && !isDir {
			return false
		}
		subject := strings.Join(segments[:i+1], "/")
		if r.basename {
			subject = segments[i]
		}
		if r.re.MatchString(subject) {
			return true
		}
	}
	return false
}

func compile(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	if strings.HasPrefix(line, "!") {
		r.negated = true
		line = line[1:]
	}
	anchored := strings.HasPrefix(line, "/")
	line = strings.TrimPrefix(line, "/")
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	line = path.Clean(line)
	if line == "." || line == "" {
		return rule{}, false
	}
	r.basename = !anchored && !strings.Contains(line, "/")

	expr := globExpr(line)
	if !anchored && !r.basename {
		expr = "(?:.*/)?" + expr
	}
	r.re = regexp.MustCompile("^" + expr + "$")
	return r, true
}

func globExpr(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch ch := pattern[i]; ch {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
				if i+1 < len(pattern) && pattern[i+1] == '/' {
					b.WriteString("/?")
					i++
				}
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	return b.String()
}
