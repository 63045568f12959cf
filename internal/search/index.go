// Package search ranks shards against free-text queries. Ranking is BM25
// over shard titles, context tags and content; queries with no lexical hit
// fall back to typo-tolerant title matching.
package search

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/morozRed/docshard/internal/shard"
)

const (
	IndexFile = "search-index.json"
	Version   = "search-index-v2"

	defaultLimit = 10
	// BM25 saturation and length normalization.
	k1 = 1.2
	b  = 0.75
)

// Field weights: a title hit counts like four content hits.
const (
	titleWeight   = 4
	contextWeight = 2
	contentWeight = 1
)

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

type Document struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Type   string         `json:"type"`
	Parent string         `json:"parent,omitempty"`
	File   string         `json:"file"`
	Length int            `json:"length"`
	Terms  map[string]int `json:"terms"`
}

type Index struct {
	Version       string         `json:"version"`
	DocumentCount int            `json:"document_count"`
	AvgDocLength  float64        `json:"avg_doc_length"`
	DocFreq       map[string]int `json:"doc_freq"`
	Documents     []Document     `json:"documents"`

	idf map[string]float64
}

// Query selects shards. Type restricts hits to one hierarchy level.
type Query struct {
	Text  string
	Type  string
	Limit int
}

type Hit struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Type    string   `json:"type"`
	File    string   `json:"file"`
	Score   float64  `json:"score"`
	Matched []string `json:"matched,omitempty"`
	Fuzzy   bool     `json:"fuzzy,omitempty"`
}

// Build indexes every shard of result with non-empty text.
func Build(result *shard.Result) *Index {
	idx := &Index{Version: Version, DocFreq: map[string]int{}}
	if result == nil {
		return idx
	}

	total := 0
	for _, sh := range result.All() {
		terms := make(map[string]int)
		weigh(terms, sh.Title, titleWeight)
		weigh(terms, strings.Join(sh.ContextScope, " "), contextWeight)
		weigh(terms, sh.Content, contentWeight)

		length := 0
		for term, count := range terms {
			length += count
			idx.DocFreq[term]++
		}
		if length == 0 {
			continue
		}
		idx.Documents = append(idx.Documents, Document{
			ID:     sh.ID,
			Title:  sh.Title,
			Type:   sh.Type,
			Parent: sh.Parent,
			File:   filepath.ToSlash(shard.FilePath(sh.Type, sh.ID)),
			Length: length,
			Terms:  terms,
		})
		total += length
	}

	sort.Slice(idx.Documents, func(i, j int) bool { return idx.Documents[i].ID < idx.Documents[j].ID })
	idx.DocumentCount = len(idx.Documents)
	if idx.DocumentCount > 0 {
		idx.AvgDocLength = float64(total) / float64(idx.DocumentCount)
	}
	return idx
}

// Marshal renders the index as indented JSON.
func (idx *Index) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode search index: %w", err)
	}
	return append(data, '\n'), nil
}

// Load reads the search index persisted in docDir.
func Load(docDir string) (*Index, error) {
	path := filepath.Join(docDir, IndexFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("search index missing at %s (run docshard generate)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read search index: %w", err)
	}

	idx := &Index{}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("failed to decode search index: %w", err)
	}
	if idx.Version != Version {
		return nil, fmt.Errorf("unsupported search index version %q (run docshard generate)", idx.Version)
	}
	if idx.DocFreq == nil {
		idx.DocFreq = map[string]int{}
	}
	return idx, nil
}

// Search returns hits ordered by descending score, ties broken by id. A
// container is left out when one of its children matched every term it did.
func (idx *Index) Search(q Query) []Hit {
	if idx == nil || len(idx.Documents) == 0 {
		return nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	terms := uniqueTokens(q.Text)
	if len(terms) == 0 {
		return nil
	}

	avgLen := math.Max(idx.AvgDocLength, 1)
	hits := make([]Hit, 0)
	parents := make(map[string]string)
	for _, doc := range idx.Documents {
		if q.Type != "" && doc.Type != q.Type {
			continue
		}
		norm := k1 * (1 - b + b*float64(doc.Length)/avgLen)
		score := 0.0
		var matched []string
		for _, term := range terms {
			tf := float64(doc.Terms[term])
			if tf == 0 {
				continue
			}
			score += idx.inverseFrequency(term) * tf * (k1 + 1) / (tf + norm)
			matched = append(matched, term)
		}
		if score > 0 {
			hits = append(hits, newHit(doc, score, matched))
			parents[doc.ID] = doc.Parent
		}
	}

	hits = dropCoveredContainers(hits, parents)
	if len(hits) == 0 {
		hits = idx.fuzzyTitles(terms, q.Type)
	}
	rank(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (idx *Index) inverseFrequency(term string) float64 {
	if idx.idf == nil {
		n := float64(idx.DocumentCount)
		idx.idf = make(map[string]float64, len(idx.DocFreq))
		for t, df := range idx.DocFreq {
			idx.idf[t] = math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		}
	}
	return idx.idf[term]
}

// fuzzyTitles matches shards whose title has, for every query term, a word
// within a small edit distance.
func (idx *Index) fuzzyTitles(terms []string, levelType string) []Hit {
	hits := make([]Hit, 0)
	for _, doc := range idx.Documents {
		if levelType != "" && doc.Type != levelType {
			continue
		}
		words := tokenize(doc.Title)
		if len(words) == 0 {
			continue
		}
		edits := 0
		for _, term := range terms {
			best := -1
			for _, word := range words {
				if d := editDistance(term, word); d <= tolerance(word) && (best < 0 || d < best) {
					best = d
				}
			}
			if best < 0 {
				edits = -1
				break
			}
			edits += best
		}
		if edits < 0 {
			continue
		}
		hit := newHit(doc, 1/float64(1+edits), nil)
		hit.Fuzzy = true
		hits = append(hits, hit)
	}
	return hits
}

func dropCoveredContainers(hits []Hit, parents map[string]string) []Hit {
	matched := make(map[string][]string, len(hits))
	for _, hit := range hits {
		matched[hit.ID] = hit.Matched
	}
	covered := make(map[string]bool)
	for _, hit := range hits {
		parent := parents[hit.ID]
		if terms, ok := matched[parent]; ok && containsAll(hit.Matched, terms) {
			covered[parent] = true
		}
	}
	if len(covered) == 0 {
		return hits
	}
	kept := hits[:0]
	for _, hit := range hits {
		if !covered[hit.ID] {
			kept = append(kept, hit)
		}
	}
	return kept
}

func containsAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, term := range have {
		set[term] = true
	}
	for _, term := range want {
		if !set[term] {
			return false
		}
	}
	return true
}

func newHit(doc Document, score float64, matched []string) Hit {
	return Hit{ID: doc.ID, Title: doc.Title, Type: doc.Type, File: doc.File, Score: score, Matched: matched}
}

func rank(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

func weigh(terms map[string]int, text string, weight int) {
	for _, token := range tokenize(text) {
		terms[token] += weight
	}
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func uniqueTokens(text string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, token := range tokenize(text) {
		if !seen[token] {
			seen[token] = true
			out = append(out, token)
		}
	}
	return out
}

func tolerance(word string) int {
	if n := len([]rune(word)) / 4; n > 1 {
		return n
	}
	return 1
}

// editDistance is the Levenshtein distance over runes, kept in one row.
func editDistance(from, to string) int {
	ra, rb := []rune(from), []rune(to)
	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			above := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min(row[j]+1, row[j-1]+1, diag+cost)
			diag = above
		}
	}
	return row[len(rb)]
}
