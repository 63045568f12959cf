package ignore

import "testing"

func TestMatcherDefaultsAndUserOverrides(t *testing.T) {
	m := NewMatcher([]string{
		"drafts/**",
		"!drafts/keep/plan.md",
		"*.tmp.md",
	})

	cases := []struct {
		path    string
		isDir   bool
		ignored bool
	}{
		{path: ".git/config", ignored: true},
		{path: "node_modules/pkg/README.md", ignored: true},
		{path: "shards/spec/index.json", ignored: true},
		{path: "docs/CHANGELOG.md", ignored: true},
		{path: "drafts/old/notes.md", ignored: true},
		{path: "drafts/keep/plan.md", ignored: false},
		{path: "nested/scratch.tmp.md", ignored: true},
		{path: "docs/spec.md", ignored: false},
		{path: ".", isDir: true, ignored: false},
	}

	for _, tc := range cases {
		got := m.ShouldIgnore(tc.path, tc.isDir)
		if got != tc.ignored {
			t.Fatalf("path %s: expected ignored=%v, got %v", tc.path, tc.ignored, got)
		}
	}
}

func TestMatcherNegatedDirectoryRule(t *testing.T) {
	m := NewMatcher([]string{
		"archive/",
		"!archive/current/",
	})

	if !m.ShouldIgnore("archive/2019/spec.md", false) {
		t.Fatalf("expected archive/2019/spec.md to be ignored")
	}
	if m.ShouldIgnore("archive/current/spec.md", false) {
		t.Fatalf("expected archive/current/spec.md to be included")
	}
}

func TestMatcherDirectoryRuleSkipsPlainFiles(t *testing.T) {
	m := NewMatcher([]string{"/notes/"})

	if m.ShouldIgnore("notes", false) {
		t.Fatalf("directory-only rule must not match a file named notes")
	}
	if !m.ShouldIgnore("notes", true) {
		t.Fatalf("expected notes directory to be ignored")
	}
	if m.ShouldIgnore("docs/notes/a.md", false) {
		t.Fatalf("anchored rule must not match nested notes directory")
	}
}
