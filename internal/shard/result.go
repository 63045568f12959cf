package shard

import (
	"github.com/morozRed/docshard/internal/graph"
	"github.com/morozRed/docshard/internal/parser"
)

// Result is the shard set produced by one run, or reloaded from disk.
type Result struct {
	Document *parser.Document
	RunID    string
	Levels   Levels
	// Epics lists epic ids in document order.
	Epics  []string
	Shards map[string]*Shard
	// Graph is only set for fresh runs; reloaded results keep the persisted
	// cross-references without recomputing them.
	Graph *graph.Graph

	order []string
}

func newResult(doc *parser.Document, levels Levels, runID string) *Result {
	return &Result{
		Document: doc,
		RunID:    runID,
		Levels:   levels,
		Shards:   make(map[string]*Shard),
	}
}

// NewLoadedResult assembles a result from persisted shards, which should be
// ordered parent-first.
func NewLoadedResult(levels Levels, runID string, epics []string, shards []*Shard) *Result {
	r := newResult(nil, levels, runID)
	r.Epics = append([]string(nil), epics...)
	for _, sh := range shards {
		r.add(sh)
	}
	return r
}

func (r *Result) add(sh *Shard) {
	r.Shards[sh.ID] = sh
	r.order = append(r.order, sh.ID)
}

// Get looks a shard up by id.
func (r *Result) Get(id string) (*Shard, bool) {
	sh, ok := r.Shards[id]
	return sh, ok
}

// All returns every shard in creation order: each epic is followed by its
// stories, each story by its tasks.
func (r *Result) All() []*Shard {
	out := make([]*Shard, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.Shards[id])
	}
	return out
}

// ByType returns the shards of one level in creation order.
func (r *Result) ByType(levelType string) []*Shard {
	out := make([]*Shard, 0)
	for _, id := range r.order {
		if sh := r.Shards[id]; sh.Type == levelType {
			out = append(out, sh)
		}
	}
	return out
}

// Children resolves the child ids of a shard.
func (r *Result) Children(id string) []*Shard {
	sh, ok := r.Shards[id]
	if !ok {
		return nil
	}
	out := make([]*Shard, 0, len(sh.Children))
	for _, childID := range sh.Children {
		if child, ok := r.Shards[childID]; ok {
			out = append(out, child)
		}
	}
	return out
}

// Ancestors returns the parent chain of a shard, nearest first.
func (r *Result) Ancestors(id string) []string {
	out := make([]string, 0, 2)
	seen := map[string]bool{id: true}
	for sh, ok := r.Shards[id]; ok && sh.Parent != ""; sh, ok = r.Shards[sh.Parent] {
		if seen[sh.Parent] {
			break
		}
		seen[sh.Parent] = true
		out = append(out, sh.Parent)
	}
	return out
}

// Leaves returns, for every epic in order, the shards whose content makes up
// the document body: stories without tasks and tasks.
func (r *Result) Leaves() []*Shard {
	out := make([]*Shard, 0)
	for _, epicID := range r.Epics {
		for _, story := range r.Children(epicID) {
			tasks := r.Children(story.ID)
			if len(tasks) == 0 {
				out = append(out, story)
				continue
			}
			out = append(out, tasks...)
		}
	}
	return out
}

// Counts returns the number of shards per level.
func (r *Result) Counts() map[string]int {
	counts := make(map[string]int, 3)
	for _, sh := range r.Shards {
		counts[sh.Type]++
	}
	return counts
}
