// Package graph detects cross-references between shards and keeps them as a
// symmetric reference graph.
package graph

import (
	"regexp"
	"sort"
	"strings"
)

// Node is one shard in the reference graph.
type Node struct {
	ID      string
	Title   string
	Content string
	// Lineage holds the ids of the node's ancestors. Edges between a node and
	// its ancestors or descendants are never recorded.
	Lineage  []string
	Edges    []string // related node ids, sorted
	PageRank float64  // importance score
}

// Graph holds the nodes of one sharding run.
type Graph struct {
	Nodes map[string]*Node
	order []string
}

// Detector carries the patterns used to find references.
type Detector struct {
	// Phrase matches a reference phrase; submatch 1 is the referenced text.
	Phrase *regexp.Regexp
	// Identifier matches identifier-style tokens such as REQ-001.
	Identifier *regexp.Regexp
}

func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// Add registers a node. Adding an id twice replaces the earlier node.
func (g *Graph) Add(id, title, content string, lineage []string) {
	if _, exists := g.Nodes[id]; !exists {
		g.order = append(g.order, id)
	}
	g.Nodes[id] = &Node{
		ID:      id,
		Title:   title,
		Content: content,
		Lineage: append([]string(nil), lineage...),
	}
}

// Detect scans every node for references to other nodes and links both ends.
// It must run after all nodes were added.
func (g *Graph) Detect(d Detector) {
	if d.Phrase != nil {
		g.detectPhrases(d.Phrase)
	}
	if d.Identifier != nil {
		g.detectIdentifiers(d.Identifier)
	}
	g.normalizeEdges()
	g.calculatePageRank(20, 0.85)
}

func (g *Graph) detectPhrases(phrase *regexp.Regexp) {
	lowerTitles := make(map[string]string, len(g.Nodes))
	for _, id := range g.order {
		if title := strings.ToLower(strings.TrimSpace(g.Nodes[id].Title)); title != "" {
			lowerTitles[id] = title
		}
	}

	for _, sourceID := range g.order {
		source := g.Nodes[sourceID]
		for _, match := range phrase.FindAllStringSubmatch(source.Content, -1) {
			if len(match) < 2 {
				continue
			}
			referenced := strings.ToLower(match[1])
			for _, targetID := range g.order {
				title, ok := lowerTitles[targetID]
				if !ok || !strings.Contains(referenced, title) {
					continue
				}
				g.link(sourceID, targetID)
			}
		}
	}
}

func (g *Graph) detectIdentifiers(identifier *regexp.Regexp) {
	tokens := make(map[string][]string, len(g.Nodes))
	postings := make(map[string][]string)
	for _, id := range g.order {
		seen := make(map[string]bool)
		for _, token := range identifier.FindAllString(g.Nodes[id].Content, -1) {
			if seen[token] {
				continue
			}
			seen[token] = true
			tokens[id] = append(tokens[id], token)
			postings[token] = append(postings[token], id)
		}
	}

	for _, sourceID := range g.order {
		for _, token := range tokens[sourceID] {
			for _, targetID := range postings[token] {
				g.link(sourceID, targetID)
			}
		}
	}
}

// link records an undirected edge unless the endpoints are the same node or
// share a line of descent.
func (g *Graph) link(a, b string) {
	if a == b {
		return
	}
	left, right := g.Nodes[a], g.Nodes[b]
	if left == nil || right == nil || contains(left.Lineage, b) || contains(right.Lineage, a) {
		return
	}
	left.Edges = append(left.Edges, b)
	right.Edges = append(right.Edges, a)
}

// Related returns the sorted ids linked to id.
func (g *Graph) Related(id string) []string {
	node, ok := g.Nodes[id]
	if !ok {
		return nil
	}
	return node.Edges
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, node := range g.Nodes {
		total += len(node.Edges)
	}
	return total / 2
}

// calculatePageRank scores nodes over the undirected reference graph
func (g *Graph) calculatePageRank(iterations int, dampingFactor float64) {
	n := float64(len(g.Nodes))
	if n == 0 {
		return
	}

	for _, node := range g.Nodes {
		node.PageRank = 1.0 / n
	}

	for i := 0; i < iterations; i++ {
		newRanks := make(map[string]float64, len(g.Nodes))
		for id, node := range g.Nodes {
			rank := (1 - dampingFactor) / n
			for _, neighborID := range node.Edges {
				if neighbor, ok := g.Nodes[neighborID]; ok && len(neighbor.Edges) > 0 {
					rank += dampingFactor * (neighbor.PageRank / float64(len(neighbor.Edges)))
				}
			}
			newRanks[id] = rank
		}
		for id, rank := range newRanks {
			g.Nodes[id].PageRank = rank
		}
	}
}

// TopNodes returns the most referenced nodes by PageRank. Nodes without
// edges are left out.
func (g *Graph) TopNodes(n int) []*Node {
	nodes := make([]*Node, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		if len(node.Edges) > 0 {
			nodes = append(nodes, node)
		}
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].PageRank == nodes[j].PageRank {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].PageRank > nodes[j].PageRank
	})

	if n > len(nodes) {
		n = len(nodes)
	}
	return nodes[:n]
}

func (g *Graph) normalizeEdges() {
	for _, node := range g.Nodes {
		node.Edges = dedupeAndSort(node.Edges)
	}
}

func dedupeAndSort(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
