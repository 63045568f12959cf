// Package languages detects the languages of fenced code blocks in a
// markdown document using the tree-sitter markdown grammar.
package languages

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	markdown "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown"
)

// Fence is one fenced code block with a language info string.
type Fence struct {
	Language  string
	StartLine int // 1-based, opening fence
	EndLine   int // 1-based, closing fence
}

// Analyzer parses documents with the markdown block grammar. A tree-sitter
// parser is not safe for concurrent use so calls are serialized.
type Analyzer struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

func NewAnalyzer() *Analyzer {
	p := sitter.NewParser()
	p.SetLanguage(markdown.GetLanguage())
	return &Analyzer{parser: p}
}

// Fences returns the fenced code blocks that declare a language, in document
// order.
func (a *Analyzer) Fences(ctx context.Context, content []byte) ([]Fence, error) {
	a.mu.Lock()
	tree, err := a.parser.ParseCtx(ctx, nil, content)
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to parse markdown: %w", err)
	}
	defer tree.Close()

	fences := make([]Fence, 0)
	collectFences(tree.RootNode(), content, &fences)
	return fences, nil
}

func collectFences(node *sitter.Node, content []byte, fences *[]Fence) {
	if node.Type() == "fenced_code_block" {
		if language := fenceLanguage(node, content); language != "" {
			*fences = append(*fences, Fence{
				Language:  language,
				StartLine: int(node.StartPoint().Row) + 1,
				EndLine:   endLine(node),
			})
		}
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectFences(node.Child(i), content, fences)
	}
}

func fenceLanguage(block *sitter.Node, content []byte) string {
	for i := 0; i < int(block.ChildCount()); i++ {
		child := block.Child(i)
		if child.Type() != "info_string" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			if lang := child.Child(j); lang.Type() == "language" {
				return Normalize(lang.Content(content))
			}
		}
		return Normalize(child.Content(content))
	}
	return ""
}

// endLine converts the exclusive end point of a block to a 1-based inclusive
// line. Blocks end at column 0 of the line after the closing fence.
func endLine(node *sitter.Node) int {
	end := node.EndPoint()
	if end.Column == 0 && end.Row > node.StartPoint().Row {
		return int(end.Row)
	}
	return int(end.Row) + 1
}

// LanguagesBetween returns the sorted distinct languages of fences that start
// inside the 1-based inclusive line range.
func LanguagesBetween(fences []Fence, start, end int) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, fence := range fences {
		if fence.StartLine < start || fence.StartLine > end || seen[fence.Language] {
			continue
		}
		seen[fence.Language] = true
		out = append(out, fence.Language)
	}
	sort.Strings(out)
	return out
}

// Tags renders languages as context tags.
func Tags(languages []string) []string {
	tags := make([]string, 0, len(languages))
	for _, language := range languages {
		if language = strings.TrimSpace(language); language != "" {
			tags = append(tags, ContextTag(language))
		}
	}
	return tags
}
