package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/morozRed/docshard/internal/fileutil"
	"github.com/morozRed/docshard/internal/ignore"
)

// ErrSourceUnreadable is returned when the input document cannot be read.
var ErrSourceUnreadable = errors.New("source document unreadable")

// DocumentExtensions lists the file extensions picked up when a directory is
// given as input.
var DocumentExtensions = []string{".md", ".markdown", ".txt"}

// ParseSections splits text into heading-delimited sections in document order.
// Text before the first heading is kept under PreambleTitle. A document with
// no headings yields exactly one section.
func ParseSections(lines []string) []Section {
	sections := make([]Section, 0)
	seen := map[string]int{PreambleTitle: 1}
	current := Section{Title: PreambleTitle, StartLine: 1}
	var fence FenceTracker

	flush := func(end int) {
		current.EndLine = end
		if current.Heading == "" && len(current.Lines) == 0 {
			return
		}
		sections = append(sections, current)
	}

	for i, line := range lines {
		if fence.Feed(line) || fence.Open() {
			current.Lines = append(current.Lines, line)
			continue
		}
		title, level, ok := HeadingText(line)
		if !ok {
			current.Lines = append(current.Lines, line)
			continue
		}
		flush(i)
		current = Section{
			Title:     uniqueTitle(seen, title),
			Heading:   line,
			Level:     level,
			StartLine: i + 1,
		}
	}
	flush(len(lines))

	if len(sections) == 0 {
		sections = append(sections, Section{Title: PreambleTitle, StartLine: 1, EndLine: len(lines)})
	}
	return sections
}

func uniqueTitle(seen map[string]int, title string) string {
	seen[title]++
	if seen[title] == 1 {
		return title
	}
	return fmt.Sprintf("%s (%d)", title, seen[title])
}

// ParseFile reads and parses one document.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}
	return Parse(path, data), nil
}

// DocumentName is the base name of path without its extension.
func DocumentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Parse builds a Document from raw bytes.
func Parse(path string, data []byte) *Document {
	lines := SplitLines(string(data))
	return &Document{
		Path:      path,
		Name:      DocumentName(path),
		Hash:      fileutil.HashBytes(data),
		LineCount: len(lines),
		Lines:     lines,
		Sections:  ParseSections(lines),
	}
}

// Discover lists the documents under root that are not excluded by the
// ignore rules. Walk problems are reported as issues instead of failing.
func Discover(root string, ignoreRules []string) ([]string, []ParseIssue, error) {
	matcher := ignore.NewMatcher(ignoreRules)
	paths := make([]string, 0)
	issues := make([]ParseIssue, 0)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		relPath := path
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			relPath = rel
		}
		if err != nil {
			issues = append(issues, ParseIssue{
				File:     relPath,
				Severity: "warning",
				Message:  fmt.Sprintf("walk error: %v", err),
			})
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.ShouldIgnore(relPath, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !isDocument(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})

	sort.Strings(paths)
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].File == issues[j].File {
			return issues[i].Message < issues[j].Message
		}
		return issues[i].File < issues[j].File
	})
	return paths, issues, err
}

func isDocument(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range DocumentExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}
