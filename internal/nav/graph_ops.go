package nav

import "sort"

func CollectRelated(l *Lookup, node *IndexNode) []ShardRecord {
	return collect(l, node.Related)
}

func CollectChildren(l *Lookup, node *IndexNode) []ShardRecord {
	out := make([]ShardRecord, 0, len(node.Children))
	for _, childID := range node.Children {
		if child := l.ByID[childID]; child != nil {
			out = append(out, ShardRecordFromNode(child))
		}
	}
	return out
}

// Breadcrumb returns the ancestors of node, root first.
func Breadcrumb(l *Lookup, node *IndexNode) []ShardRecord {
	out := make([]ShardRecord, 0, 2)
	seen := map[string]bool{node.ID: true}
	for parent := l.ByID[node.Parent]; parent != nil && !seen[parent.ID]; parent = l.ByID[parent.Parent] {
		seen[parent.ID] = true
		out = append(out, ShardRecordFromNode(parent))
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func collect(l *Lookup, ids []string) []ShardRecord {
	out := make([]ShardRecord, 0, len(ids))
	for _, id := range ids {
		if node := l.ByID[id]; node != nil {
			out = append(out, ShardRecordFromNode(node))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// neighbors walks cross-references and hierarchy links alike.
func neighbors(node *IndexNode) []string {
	out := make([]string, 0, len(node.Related)+len(node.Children)+1)
	if node.Parent != "" {
		out = append(out, node.Parent)
	}
	out = append(out, node.Children...)
	return append(out, node.Related...)
}

func ShortestPath(lookup *Lookup, fromID, toID string) []string {
	if fromID == toID {
		return []string{fromID}
	}

	queue := []string{fromID}
	visited := map[string]bool{fromID: true}
	parent := map[string]string{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := lookup.ByID[current]
		if node == nil {
			continue
		}
		for _, nextID := range neighbors(node) {
			if visited[nextID] {
				continue
			}
			visited[nextID] = true
			parent[nextID] = current
			if nextID == toID {
				return ReconstructPath(parent, fromID, toID)
			}
			queue = append(queue, nextID)
		}
	}

	return nil
}

func ReconstructPath(parent map[string]string, fromID, toID string) []string {
	out := []string{toID}
	for current := toID; current != fromID; {
		prev, ok := parent[current]
		if !ok {
			return nil
		}
		out = append(out, prev)
		current = prev
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Trace lists the cross-reference hops reachable from start within depth.
func Trace(l *Lookup, start *IndexNode, depth int) []TraceHop {
	type queueItem struct {
		id    string
		depth int
	}
	queue := []queueItem{{id: start.ID, depth: 0}}
	seenDepth := map[string]int{start.ID: 0}
	hops := make([]TraceHop, 0)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= depth {
			continue
		}
		fromNode := l.ByID[current.id]
		if fromNode == nil {
			continue
		}
		for _, nextID := range fromNode.Related {
			toNode := l.ByID[nextID]
			if toNode == nil {
				continue
			}
			nextDepth := current.depth + 1
			if previous, exists := seenDepth[nextID]; exists && previous < nextDepth {
				continue
			}
			hops = append(hops, TraceHop{
				Depth: nextDepth,
				From:  ShardRecordFromNode(fromNode),
				To:    ShardRecordFromNode(toNode),
			})
			if _, exists := seenDepth[nextID]; !exists {
				seenDepth[nextID] = nextDepth
				queue = append(queue, queueItem{id: nextID, depth: nextDepth})
			}
		}
	}

	sort.Slice(hops, func(i, j int) bool {
		if hops[i].Depth != hops[j].Depth {
			return hops[i].Depth < hops[j].Depth
		}
		if hops[i].From.ID != hops[j].From.ID {
			return hops[i].From.ID < hops[j].From.ID
		}
		return hops[i].To.ID < hops[j].To.ID
	})
	return hops
}
