package parser

import (
	"regexp"
	"strings"
)

var (
	headingPattern  = regexp.MustCompile(`^(#{1,3})[ \t]+(.*?)[ \t#]*$`)
	listItemPattern = regexp.MustCompile(`^[ \t]*(?:[-*+]|\d{1,9}[.)])[ \t]+\S`)
)

// HeadingText reports whether line is a level 1-3 heading and returns its
// text and level.
func HeadingText(line string) (string, int, bool) {
	m := headingPattern.FindStringSubmatch(line)
	if m == nil {
		return "", 0, false
	}
	text := strings.TrimSpace(m[2])
	if text == "" {
		return "", 0, false
	}
	return text, len(m[1]), true
}

// IsHeading reports whether line is a level 1-3 heading.
func IsHeading(line string) bool {
	_, _, ok := HeadingText(line)
	return ok
}

// IsListItem reports whether line starts an ordered or unordered list item.
func IsListItem(line string) bool {
	return listItemPattern.MatchString(line)
}

// IsBlank reports whether line holds only whitespace.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func fenceMarker(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return ""
	}
	switch {
	case strings.HasPrefix(trimmed, "```"):
		return "```"
	case strings.HasPrefix(trimmed, "~~~"):
		return "~~~"
	}
	return ""
}

// IsFence reports whether line is a code fence marker.
func IsFence(line string) bool {
	return fenceMarker(line) != ""
}

// FenceTracker follows fenced code blocks across a line scan. A block opened
// with ``` is only closed by ``` and likewise for ~~~.
type FenceTracker struct {
	open string
}

// Feed consumes one line and reports whether it was a fence marker that
// opened or closed a block.
func (f *FenceTracker) Feed(line string) bool {
	marker := fenceMarker(line)
	if marker == "" {
		return false
	}
	if f.open == "" {
		f.open = marker
		return true
	}
	if f.open == marker {
		f.open = ""
		return true
	}
	return false
}

// Open reports whether the scan is currently inside a fenced block.
func (f *FenceTracker) Open() bool {
	return f.open != ""
}
