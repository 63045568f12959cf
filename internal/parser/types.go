package parser

import "strings"

// PreambleTitle is the synthetic section key for text before the first heading.
const PreambleTitle = "Preamble"

// Section is one heading-delimited region of a document.
type Section struct {
	Title     string
	Heading   string   // raw heading line, empty for the preamble
	Level     int      // 1-3, 0 for the preamble
	Lines     []string // body lines following the heading
	StartLine int      // 1-based line of the heading (or first body line)
	EndLine   int      // 1-based, inclusive
}

// Text returns the heading line followed by the body lines.
func (s Section) Text() []string {
	if s.Heading == "" {
		return append([]string(nil), s.Lines...)
	}
	out := make([]string, 0, len(s.Lines)+1)
	out = append(out, s.Heading)
	return append(out, s.Lines...)
}

// Document holds a parsed source document.
type Document struct {
	Path      string
	Name      string // base name without extension
	Hash      string
	LineCount int
	Lines     []string
	Sections  []Section
}

// SectionTitles returns the section keys in document order.
func (d *Document) SectionTitles() []string {
	titles := make([]string, 0, len(d.Sections))
	for _, section := range d.Sections {
		titles = append(titles, section.Title)
	}
	return titles
}

// Section looks a section up by its key.
func (d *Document) Section(title string) (Section, bool) {
	for _, section := range d.Sections {
		if section.Title == title {
			return section, true
		}
	}
	return Section{}, false
}

// ParseIssue captures non-fatal problems found while discovering documents.
type ParseIssue struct {
	File     string `json:"file"`
	Severity string `json:"severity"` // warning | error
	Message  string `json:"message"`
}

// SplitLines splits text into lines without the trailing empty element a final
// newline would produce. CRLF endings are normalized.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
