package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/morozRed/docshard/internal/parser"
	"github.com/morozRed/docshard/internal/shard"
)

const rankedDocument = `# Deployment Pipeline
Releases roll out through staging first.

# Caching Layer
The cache keeps hot invoices in memory. Cache misses fall back to storage.
Cache eviction is LRU.

# Glossary
Invoice: a bill.
`

func buildRanked(t *testing.T) *Index {
	t.Helper()
	session, err := shard.NewSession(shard.Options{MaxLines: 100, PreserveContext: true})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	result, err := session.Run(context.Background(), parser.Parse("design.md", []byte(rankedDocument)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return Build(result)
}

func TestSearchRanksMostSpecificShardFirst(t *testing.T) {
	index := buildRanked(t)
	hits := index.Search(Query{Text: "cache"})
	if len(hits) == 0 {
		t.Fatalf("expected hits for cache")
	}
	if hits[0].Title != "Caching Layer" {
		t.Fatalf("expected the caching shard to rank first, got %q", hits[0].Title)
	}
	if len(hits[0].Matched) != 1 || hits[0].Matched[0] != "cache" {
		t.Fatalf("expected matched terms [cache], got %v", hits[0].Matched)
	}
	for _, hit := range hits {
		if hit.Type == "epic" {
			t.Fatalf("epic %s should give way to the story holding the same text", hit.ID)
		}
		if hit.Title == "Deployment Pipeline" {
			t.Fatalf("deployment shard should not match cache")
		}
		if hit.Fuzzy {
			t.Fatalf("lexical hit %s should not be marked fuzzy", hit.ID)
		}
	}
}

func TestSearchFiltersByType(t *testing.T) {
	index := buildRanked(t)
	if hits := index.Search(Query{Text: "cache", Type: "task"}); len(hits) != 0 {
		t.Fatalf("expected no task hits in a document without tasks, got %v", hits)
	}
	for _, hit := range index.Search(Query{Text: "cache", Type: "epic"}) {
		if hit.Type != "epic" {
			t.Fatalf("expected only epic hits, got %s", hit.Type)
		}
	}
}

func TestIndexRoundTrip(t *testing.T) {
	index := buildRanked(t)
	data, err := index.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, IndexFile), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.DocumentCount != index.DocumentCount || len(loaded.Documents) != len(index.Documents) {
		t.Fatalf("expected %d documents after reload, got %d", index.DocumentCount, loaded.DocumentCount)
	}
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing index")
	}

	if err := os.WriteFile(filepath.Join(dir, IndexFile), []byte(`{"version":"search-index-v0"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for unsupported index version")
	}
}

func TestSearchTypoFallback(t *testing.T) {
	index := &Index{
		Version:       Version,
		DocumentCount: 2,
		AvgDocLength:  1,
		DocFreq:       map[string]int{"functional": 1, "billing": 1},
		Documents: []Document{
			{ID: "id-1", Title: "Functional Requirements", Type: "epic", Length: 1, Terms: map[string]int{"functional": 1}},
			{ID: "id-2", Title: "Billing", Type: "epic", Length: 1, Terms: map[string]int{"billing": 1}},
		},
	}

	hits := index.Search(Query{Text: "Funcional Requirments", Limit: 3})
	if len(hits) != 1 {
		t.Fatalf("expected one typo fallback hit, got %#v", hits)
	}
	if hits[0].ID != "id-1" || !hits[0].Fuzzy {
		t.Fatalf("expected fuzzy hit on the requirements shard, got %#v", hits[0])
	}
}

func TestSearchDeterministicOrdering(t *testing.T) {
	index := &Index{
		Version:       Version,
		DocumentCount: 2,
		AvgDocLength:  1,
		DocFreq:       map[string]int{"alpha": 2},
		Documents: []Document{
			{ID: "b", Length: 1, Terms: map[string]int{"alpha": 1}},
			{ID: "a", Length: 1, Terms: map[string]int{"alpha": 1}},
		},
	}

	hits := index.Search(Query{Text: "alpha alpha", Limit: 2})
	if len(hits) != 2 {
		t.Fatalf("expected two hits, got %d", len(hits))
	}
	if hits[0].ID != "a" || hits[1].ID != "b" {
		t.Fatalf("expected stable tie-break by id, got %#v", hits)
	}
}

func TestEditDistance(t *testing.T) {
	cases := []struct {
		from, to string
		want     int
	}{
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"requirments", "requirements", 1},
		{"naïve", "naive", 1},
	}
	for _, tc := range cases {
		if got := editDistance(tc.from, tc.to); got != tc.want {
			t.Fatalf("editDistance(%q, %q) = %d, want %d", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSearchPrefersChildOverCoveredContainer(t *testing.T) {
	index := &Index{
		Version:       Version,
		DocumentCount: 3,
		AvgDocLength:  4,
		DocFreq:       map[string]int{"cache": 2, "ttl": 2, "eviction": 1},
		Documents: []Document{
			{ID: "epic-1", Type: "epic", Length: 6, Terms: map[string]int{"cache": 3, "ttl": 1, "eviction": 2}},
			{ID: "story-1", Type: "story", Parent: "epic-1", Length: 4, Terms: map[string]int{"cache": 3, "ttl": 1}},
			{ID: "story-2", Type: "story", Parent: "epic-1", Length: 2, Terms: map[string]int{"eviction": 2}},
		},
	}

	hits := index.Search(Query{Text: "cache"})
	if len(hits) != 1 || hits[0].ID != "story-1" {
		t.Fatalf("expected only story-1 for cache, got %#v", hits)
	}

	hits = index.Search(Query{Text: "cache eviction"})
	ids := make(map[string]bool)
	for _, hit := range hits {
		ids[hit.ID] = true
	}
	if !ids["epic-1"] || !ids["story-1"] || !ids["story-2"] {
		t.Fatalf("expected the epic to stay when no single child matched both terms, got %#v", hits)
	}

	hits = index.Search(Query{Text: "cache", Type: "epic"})
	if len(hits) != 1 || hits[0].ID != "epic-1" {
		t.Fatalf("expected the epic when stories are filtered out, got %#v", hits)
	}
}
