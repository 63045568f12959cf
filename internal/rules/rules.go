// Package rules holds the classification policy of the sharder: the ordered
// category table used to group sections into epics and the patterns used to
// detect cross-references. The policy is data so it can be tuned from a YAML
// or TOML file without touching the grouping and detection code.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultCategory receives sections no category matches.
const DefaultCategory = "general"

// DefaultIdentifierPattern matches tokens such as REQ-001 or ARCH-1234.
const DefaultIdentifierPattern = `\b[A-Z]{2,4}-\d{3,4}\b`

// Category is one row of the ordered category table.
type Category struct {
	Name     string   `yaml:"name" toml:"name" mapstructure:"name"`
	Keywords []string `yaml:"keywords" toml:"keywords" mapstructure:"keywords"`
}

// Set is the complete classification policy.
type Set struct {
	Categories        []Category `yaml:"categories" toml:"categories" mapstructure:"categories"`
	DefaultCategory   string     `yaml:"default_category" toml:"default_category" mapstructure:"default_category"`
	ReferencePhrases  []string   `yaml:"reference_phrases" toml:"reference_phrases" mapstructure:"reference_phrases"`
	IdentifierPattern string     `yaml:"identifier_pattern" toml:"identifier_pattern" mapstructure:"identifier_pattern"`
}

// Default returns the built-in policy.
func Default() *Set {
	return &Set{
		Categories: []Category{
			{Name: "requirements", Keywords: []string{"functional", "non-functional", "requirement", "criteria"}},
			{Name: "architecture", Keywords: []string{"architecture", "design", "system", "component", "technical"}},
			{Name: "implementation", Keywords: []string{"implementation", "development", "code", "build", "api"}},
			{Name: "validation", Keywords: []string{"test", "validation", "verification", "quality", "acceptance"}},
			{Name: "deployment", Keywords: []string{"deploy", "release", "operation", "infrastructure", "environment"}},
			{Name: "documentation", Keywords: []string{"documentation", "guide", "manual", "reference", "readme"}},
		},
		DefaultCategory:   DefaultCategory,
		ReferencePhrases:  []string{"see", "refer to", "as described in", "defined in"},
		IdentifierPattern: DefaultIdentifierPattern,
	}
}

// Load reads a policy file. The format follows the extension: .toml is
// decoded as TOML, anything else as YAML. Fields missing from the file keep
// their default values.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var loaded Set
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &loaded); err != nil {
			return nil, fmt.Errorf("failed to decode rules file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to decode rules file %s: %w", path, err)
		}
	}

	merged := Default().Merge(&loaded)
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return merged, nil
}

// Merge overlays the non-empty fields of other onto a copy of s.
func (s *Set) Merge(other *Set) *Set {
	out := *s
	if other == nil {
		return &out
	}
	if len(other.Categories) > 0 {
		out.Categories = other.Categories
	}
	if strings.TrimSpace(other.DefaultCategory) != "" {
		out.DefaultCategory = strings.TrimSpace(other.DefaultCategory)
	}
	if len(other.ReferencePhrases) > 0 {
		out.ReferencePhrases = other.ReferencePhrases
	}
	if strings.TrimSpace(other.IdentifierPattern) != "" {
		out.IdentifierPattern = other.IdentifierPattern
	}
	return &out
}

// Validate checks that the policy can be applied.
func (s *Set) Validate() error {
	seen := make(map[string]bool, len(s.Categories))
	for i, category := range s.Categories {
		name := strings.TrimSpace(category.Name)
		if name == "" {
			return fmt.Errorf("categories[%d]: missing name", i)
		}
		if seen[name] {
			return fmt.Errorf("categories[%d]: duplicate category %q", i, name)
		}
		seen[name] = true
		if len(category.Keywords) == 0 {
			return fmt.Errorf("categories[%d] %q: no keywords", i, name)
		}
	}
	if strings.TrimSpace(s.DefaultCategory) == "" {
		return fmt.Errorf("default_category must not be empty")
	}
	if _, err := regexp.Compile(s.IdentifierPattern); err != nil {
		return fmt.Errorf("identifier_pattern: %w", err)
	}
	return nil
}

// Classify returns the first category whose keywords occur in title, compared
// case-insensitively, or the default category.
func (s *Set) Classify(title string) string {
	lower := strings.ToLower(title)
	for _, category := range s.Categories {
		for _, keyword := range category.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword != "" && strings.Contains(lower, keyword) {
				return category.Name
			}
		}
	}
	return s.DefaultCategory
}

// Group is an epic: a category name and its sections in document order.
type Group struct {
	Name     string
	Sections []string
}

// Group assigns every section title to exactly one epic. Epics are ordered by
// the position of their first section.
func (s *Set) Group(sectionTitles []string) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)
	for _, title := range sectionTitles {
		name := s.Classify(title)
		pos, ok := index[name]
		if !ok {
			pos = len(groups)
			index[name] = pos
			groups = append(groups, Group{Name: name})
		}
		groups[pos].Sections = append(groups[pos].Sections, title)
	}
	return groups
}

// IdentifierRegexp compiles the identifier pattern. Validate must have passed.
func (s *Set) IdentifierRegexp() *regexp.Regexp {
	return regexp.MustCompile(s.IdentifierPattern)
}

// PhraseRegexp builds the case-insensitive reference phrase matcher. The first
// submatch is the referenced text up to the end of the sentence.
func (s *Set) PhraseRegexp() *regexp.Regexp {
	alternatives := make([]string, 0, len(s.ReferencePhrases))
	for _, phrase := range s.ReferencePhrases {
		words := strings.Fields(phrase)
		if len(words) == 0 {
			continue
		}
		for i := range words {
			words[i] = regexp.QuoteMeta(words[i])
		}
		alternatives = append(alternatives, strings.Join(words, `\s+`))
	}
	if len(alternatives) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)[:\s]+([^.;!?\n]+)`)
}
