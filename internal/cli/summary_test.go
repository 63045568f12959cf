package cli

import "testing"

func TestCountRewrittenOutputsSeparatesRemovals(t *testing.T) {
	before := map[string]string{
		"index.json":           "a",
		"epics/epic-1.md":      "b",
		"stories/story-1.md":   "c",
		"stories/story-old.md": "d",
	}
	after := map[string]string{
		"index.json":         "a2",
		"epics/epic-1.md":    "b",
		"stories/story-1.md": "c",
		"tasks/task-1.md":    "e",
	}

	rewritten, removed := CountRewrittenOutputs(before, after)
	if rewritten != 2 {
		t.Fatalf("expected 2 rewritten files (changed index, new task), got %d", rewritten)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed file, got %d", removed)
	}
	if rewritten > len(after) {
		t.Fatalf("rewritten count %d exceeds written files %d", rewritten, len(after))
	}

	rewritten, removed = CountRewrittenOutputs(nil, after)
	if rewritten != len(after) || removed != 0 {
		t.Fatalf("expected a first run to rewrite every file, got rewritten=%d removed=%d", rewritten, removed)
	}
}
