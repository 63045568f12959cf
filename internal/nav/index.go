// Package nav builds and queries the navigation index of a sharded document.
package nav

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/morozRed/docshard/internal/fileutil"
	"github.com/morozRed/docshard/internal/shard"
)

const (
	NavigationIndexFile = "nav-index.json"
	indexVersion        = "nav-index-v1"
	minWordLength       = 4
)

// ErrIndexMissing is returned when a document directory has no index.
var ErrIndexMissing = errors.New("navigation index missing")

// Build indexes a shard set. The result only depends on the shards, so
// building twice yields identical indices.
func Build(result *shard.Result, identifier *regexp.Regexp) *Index {
	shards := result.All()
	sort.Slice(shards, func(i, j int) bool { return shards[i].ID < shards[j].ID })

	index := &Index{
		Version:   indexVersion,
		Nodes:     make([]IndexNode, 0, len(shards)),
		ByType:    make(map[string][]string),
		ByContext: make(map[string][]string),
		Tokens:    make(map[string][]string),
	}
	if identifier != nil {
		index.IdentifierPattern = identifier.String()
	}
	if result.Document != nil {
		index.Source = result.Document.Path
	}

	for _, sh := range shards {
		index.Nodes = append(index.Nodes, IndexNode{
			ID:        sh.ID,
			Type:      sh.Type,
			Title:     sh.Title,
			File:      filepath.ToSlash(shard.FilePath(sh.Type, sh.ID)),
			LineCount: sh.LineCount,
			Parent:    sh.Parent,
			Children:  append([]string(nil), sh.Children...),
			Related:   append([]string(nil), sh.CrossReferences...),
			Context:   append([]string(nil), sh.ContextScope...),
		})
		index.ByType[sh.Type] = append(index.ByType[sh.Type], sh.ID)
		for _, tag := range fileutil.DedupeStrings(sh.ContextScope) {
			index.ByContext[tag] = append(index.ByContext[tag], sh.ID)
		}
		for _, token := range Tokenize(sh.Content, identifier) {
			index.Tokens[token] = append(index.Tokens[token], sh.ID)
		}
	}
	return index
}

// Tokenize returns the sorted distinct search tokens of text: lowercase words
// of at least four letters or digits, and identifier-shaped tokens.
func Tokenize(text string, identifier *regexp.Regexp) []string {
	tokens := make([]string, 0)
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(word)) >= minWordLength {
			tokens = append(tokens, strings.ToLower(word))
		}
	}
	if identifier != nil {
		for _, match := range identifier.FindAllString(text, -1) {
			tokens = append(tokens, strings.ToLower(match))
		}
	}
	return fileutil.DedupeSorted(tokens)
}

// Marshal renders the index as indented JSON.
func (idx *Index) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode navigation index: %w", err)
	}
	return append(data, '\n'), nil
}

// LoadLookup reads nav-index.json from a document directory.
func LoadLookup(docDir string) (*Lookup, error) {
	path := filepath.Join(docDir, NavigationIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s (run docshard generate)", ErrIndexMissing, path)
		}
		return nil, fmt.Errorf("failed to read navigation index: %w", err)
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to decode navigation index: %w", err)
	}
	return NewLookup(&index), nil
}

// NewLookup wraps an index for querying.
func NewLookup(index *Index) *Lookup {
	lookup := &Lookup{
		ByID:    make(map[string]*IndexNode, len(index.Nodes)),
		ByTitle: make(map[string][]string),
		Index:   index,
	}
	for i := range index.Nodes {
		node := &index.Nodes[i]
		lookup.ByID[node.ID] = node
		title := strings.ToLower(node.Title)
		lookup.ByTitle[title] = append(lookup.ByTitle[title], node.ID)
	}
	for title := range lookup.ByTitle {
		sort.Strings(lookup.ByTitle[title])
	}
	return lookup
}

// Get returns the node for id.
func (l *Lookup) Get(id string) (*IndexNode, bool) {
	node, ok := l.ByID[id]
	return node, ok
}

// ByType returns the nodes of one hierarchy level, sorted by id.
func (l *Lookup) ByType(levelType string) []*IndexNode {
	return l.nodes(l.Index.ByType[levelType])
}

// ByContext returns the nodes carrying a context tag, sorted by id.
func (l *Lookup) ByContext(tag string) []*IndexNode {
	return l.nodes(l.Index.ByContext[tag])
}

// Search returns the nodes containing every token of query.
func (l *Lookup) Search(query string) []*IndexNode {
	// Queries are typed in any case; indexed tokens are already lowercase.
	var identifier *regexp.Regexp
	if l.Index.IdentifierPattern != "" {
		identifier, _ = regexp.Compile("(?i)" + l.Index.IdentifierPattern)
	}
	tokens := Tokenize(query, identifier)
	if len(tokens) == 0 {
		return nil
	}

	matches := fileutil.ToSet(l.Index.Tokens[tokens[0]])
	for _, token := range tokens[1:] {
		next := make(map[string]bool)
		for _, id := range l.Index.Tokens[token] {
			if matches[id] {
				next[id] = true
			}
		}
		matches = next
	}
	return l.nodes(fileutil.MapKeysSorted(matches))
}

func (l *Lookup) nodes(ids []string) []*IndexNode {
	out := make([]*IndexNode, 0, len(ids))
	for _, id := range ids {
		if node := l.ByID[id]; node != nil {
			out = append(out, node)
		}
	}
	return out
}

// Resolve matches a query against shard ids, then titles case-insensitively.
func Resolve(l *Lookup, query string) []*IndexNode {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if node, ok := l.ByID[query]; ok {
		return []*IndexNode{node}
	}
	return l.nodes(l.ByTitle[strings.ToLower(query)])
}

func ResolveSingleShard(l *Lookup, query string) (*IndexNode, error) {
	matches := Resolve(l, query)
	if len(matches) == 0 {
		return nil, fmt.Errorf("shard %q not found", query)
	}
	if len(matches) == 1 {
		return matches[0], nil
	}

	options := make([]string, 0, len(matches))
	for _, match := range matches {
		options = append(options, match.ID)
	}
	sort.Strings(options)
	return nil, fmt.Errorf("shard %q is ambiguous; use one of: %s", query, strings.Join(options, ", "))
}

func ShardRecordFromNode(node *IndexNode) ShardRecord {
	if node == nil {
		return ShardRecord{}
	}
	return ShardRecord{
		ID:        node.ID,
		Type:      node.Type,
		Title:     node.Title,
		File:      node.File,
		LineCount: node.LineCount,
	}
}
