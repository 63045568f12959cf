package output

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/morozRed/docshard/internal/shard"
)

const (
	frontMatterDelimiter = "---"
	contentMarker        = "<!-- shard:content -->"
)

var errMalformedShard = errors.New("malformed shard file")

// FrontMatter is the YAML header of a shard file.
type FrontMatter struct {
	ID              string    `yaml:"id"`
	Type            string    `yaml:"type"`
	Title           string    `yaml:"title"`
	Parent          string    `yaml:"parent,omitempty"`
	Children        []string  `yaml:"children"`
	CrossReferences []string  `yaml:"cross_references"`
	Context         []string  `yaml:"context"`
	LineCount       int       `yaml:"line_count"`
	Source          string    `yaml:"source"`
	SourceLines     []int     `yaml:"source_lines,flow"`
	CreatedAt       time.Time `yaml:"created_at"`
	Version         string    `yaml:"version"`
	RunID           string    `yaml:"run_id"`
	Overview        bool      `yaml:"overview,omitempty"`
}

func frontMatterFor(sh *shard.Shard) FrontMatter {
	return FrontMatter{
		ID:              sh.ID,
		Type:            sh.Type,
		Title:           sh.Title,
		Parent:          sh.Parent,
		Children:        nonNil(sh.Children),
		CrossReferences: nonNil(sh.CrossReferences),
		Context:         nonNil(sh.ContextScope),
		LineCount:       sh.LineCount,
		Source:          sh.Metadata.Source,
		SourceLines:     []int{sh.Metadata.StartLine, sh.Metadata.EndLine},
		CreatedAt:       sh.Metadata.CreatedAt,
		Version:         sh.Metadata.Version,
		RunID:           sh.Metadata.RunID,
		Overview:        sh.Metadata.Overview,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// EncodeShard renders a shard file: front matter, navigation links, content.
// lookup resolves ids to shards for link titles and may miss entries.
func EncodeShard(sh *shard.Shard, lookup func(id string) (*shard.Shard, bool)) ([]byte, error) {
	header, err := yaml.Marshal(frontMatterFor(sh))
	if err != nil {
		return nil, fmt.Errorf("failed to encode front matter for %s: %w", sh.ID, err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontMatterDelimiter + "\n")
	buf.Write(header)
	buf.WriteString(frontMatterDelimiter + "\n\n")

	buf.WriteString("## Navigation\n\n")
	link := func(id string) string {
		title, levelType := id, ""
		if target, ok := lookup(id); ok {
			title, levelType = target.Title, target.Type
		}
		if levelType == "" {
			return fmt.Sprintf("`%s`", id)
		}
		return fmt.Sprintf("[%s](%s)", title, relativeLink(levelType, id))
	}
	if sh.Parent != "" {
		fmt.Fprintf(&buf, "- Parent: %s\n", link(sh.Parent))
	}
	if len(sh.Children) > 0 {
		buf.WriteString("- Children:\n")
		for _, id := range sh.Children {
			fmt.Fprintf(&buf, "  - %s\n", link(id))
		}
	}
	if len(sh.CrossReferences) > 0 {
		buf.WriteString("- Related:\n")
		for _, id := range sh.CrossReferences {
			fmt.Fprintf(&buf, "  - %s\n", link(id))
		}
	}
	if sh.Parent == "" && len(sh.Children) == 0 && len(sh.CrossReferences) == 0 {
		buf.WriteString("- (no links)\n")
	}

	buf.WriteString("\n" + contentMarker + "\n")
	buf.WriteString(sh.Content)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// relativeLink points from one level directory to a shard in another.
func relativeLink(levelType, id string) string {
	return path.Join("..", shard.Dir(levelType), id+".md")
}

// DecodeShard parses a shard file back into a shard record.
func DecodeShard(data []byte) (*shard.Shard, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, frontMatterDelimiter+"\n") {
		return nil, fmt.Errorf("%w: missing front matter", errMalformedShard)
	}
	rest := text[len(frontMatterDelimiter)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelimiter+"\n")
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated front matter", errMalformedShard)
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(rest[:end+1]), &fm); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedShard, err)
	}

	body := rest[end+len(frontMatterDelimiter)+2:]
	marker := strings.Index(body, contentMarker+"\n")
	if marker < 0 {
		return nil, fmt.Errorf("%w: missing content marker", errMalformedShard)
	}
	content := strings.TrimSuffix(body[marker+len(contentMarker)+1:], "\n")

	sh := &shard.Shard{
		ID:              fm.ID,
		Type:            fm.Type,
		Title:           fm.Title,
		Content:         content,
		LineCount:       fm.LineCount,
		Parent:          fm.Parent,
		Children:        emptyToNil(fm.Children),
		CrossReferences: emptyToNil(fm.CrossReferences),
		ContextScope:    emptyToNil(fm.Context),
		Metadata: shard.Metadata{
			Source:    fm.Source,
			CreatedAt: fm.CreatedAt,
			Version:   fm.Version,
			RunID:     fm.RunID,
			Overview:  fm.Overview,
		},
	}
	if len(fm.SourceLines) == 2 {
		sh.Metadata.StartLine, sh.Metadata.EndLine = fm.SourceLines[0], fm.SourceLines[1]
	}
	return sh, nil
}

func emptyToNil(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}
