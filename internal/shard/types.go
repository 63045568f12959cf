package shard

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// FormatVersion is written into every shard's metadata.
const FormatVersion = "1"

// Metadata records where a shard came from.
type Metadata struct {
	Source    string    `json:"source" yaml:"source"`
	StartLine int       `json:"start_line" yaml:"start_line"`
	EndLine   int       `json:"end_line" yaml:"end_line"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Version   string    `json:"version" yaml:"version"`
	RunID     string    `json:"run_id" yaml:"run_id"`
	// Overview is set on epics whose text exceeded the line limit and whose
	// content is a generated outline instead.
	Overview bool `json:"overview,omitempty" yaml:"overview,omitempty"`
}

// Shard is one node of the epic/story/task hierarchy.
type Shard struct {
	ID              string
	Type            string
	Title           string
	Content         string
	LineCount       int
	Parent          string
	Children        []string
	CrossReferences []string
	ContextScope    []string
	Metadata        Metadata
}

// Lines returns the content split into lines.
func (s *Shard) Lines() []string {
	if s.LineCount == 0 {
		return nil
	}
	return strings.Split(s.Content, "\n")
}

// Levels names the three hierarchy levels, top first.
type Levels struct {
	Epic  string
	Story string
	Task  string
}

var levelNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// DefaultLevels returns epic/story/task.
func DefaultLevels() Levels {
	return Levels{Epic: "epic", Story: "story", Task: "task"}
}

// ParseLevels validates a configured level list. Exactly three distinct,
// lowercase names are accepted.
func ParseLevels(names []string) (Levels, error) {
	if len(names) != 3 {
		return Levels{}, fmt.Errorf("hierarchy needs exactly 3 levels, got %d", len(names))
	}
	seen := make(map[string]bool, 3)
	for i, name := range names {
		if !levelNamePattern.MatchString(name) {
			return Levels{}, fmt.Errorf("hierarchy level %d: invalid name %q", i, name)
		}
		if seen[name] {
			return Levels{}, fmt.Errorf("hierarchy level %q listed twice", name)
		}
		seen[name] = true
	}
	return Levels{Epic: names[0], Story: names[1], Task: names[2]}, nil
}

// Names returns the level names top first.
func (l Levels) Names() []string {
	return []string{l.Epic, l.Story, l.Task}
}

// Depth returns 0, 1 or 2 for a known level and -1 otherwise.
func (l Levels) Depth(levelType string) int {
	for i, name := range l.Names() {
		if name == levelType {
			return i
		}
	}
	return -1
}

// Dir is the directory holding shards of one level: epics, stories, tasks.
func Dir(levelType string) string {
	stem, ok := strings.CutSuffix(levelType, "y")
	if ok && stem != "" && !strings.ContainsAny(stem[len(stem)-1:], "aeiou") {
		return stem + "ies"
	}
	return levelType + "s"
}

// FilePath is the shard's file path relative to the document directory.
func FilePath(levelType, id string) string {
	return filepath.Join(Dir(levelType), id+".md")
}
