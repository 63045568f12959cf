// Package chunk partitions line sequences into size-bounded pieces without
// breaking fenced code blocks or list blocks apart.
package chunk

import "github.com/morozRed/docshard/internal/parser"

// Span is a half-open line range [Start, End).
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Options configures a split.
type Options struct {
	Target int
	// PreserveContext selects the structure-aware splitter. When false lines
	// are cut every Target lines regardless of fences, lists or headings.
	PreserveContext bool
}

// preferredWindow is the trailing share of a chunk searched for a natural
// cut point, in percent.
const preferredWindow = 30

// Split returns ordered, non-empty spans covering every line exactly once.
func Split(lines []string, opts Options) []Span {
	target := opts.Target
	if target < 1 {
		target = 1
	}
	if len(lines) == 0 {
		return nil
	}
	if !opts.PreserveContext {
		return splitFixed(len(lines), target)
	}
	return splitStructured(lines, target)
}

func splitFixed(n, target int) []Span {
	spans := make([]Span, 0, n/target+1)
	for start := 0; start < n; start += target {
		end := start + target
		if end > n {
			end = n
		}
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}

func splitStructured(lines []string, target int) []Span {
	safe := SafeBoundaries(lines)
	spans := make([]Span, 0)
	start := 0
	openSince := -1

	for i := range lines {
		open := !safe[i+1]
		switch {
		case open && openSince < 0:
			openSince = i
		case !open:
			openSince = -1
		}

		if i-start+1 < target {
			continue
		}
		if open {
			// Leave the block whole: close the chunk right before it opened.
			if openSince > start {
				spans = append(spans, Span{Start: start, End: openSince})
				start = openSince
			}
			continue
		}

		cut := preferredCut(lines, safe, start, i)
		spans = append(spans, Span{Start: start, End: cut})
		start = cut
	}

	if start < len(lines) {
		spans = append(spans, Span{Start: start, End: len(lines)})
	}
	return spans
}

// preferredCut looks backward through the final 30% of the chunk [start, i]
// for a heading (cut before it) or a blank line preceded by another blank
// (cut after the pair). It falls back to a hard cut after line i.
func preferredCut(lines []string, safe []bool, start, i int) int {
	size := i - start + 1
	window := size * preferredWindow / 100
	if window < 1 {
		window = 1
	}
	lo := i + 1 - window

	for b := i; b >= lo && b > start; b-- {
		if !safe[b] {
			continue
		}
		if parser.IsHeading(lines[b]) {
			return b
		}
		if b-2 >= start && parser.IsBlank(lines[b-1]) && parser.IsBlank(lines[b-2]) {
			return b
		}
	}
	return i + 1
}

// SafeBoundaries reports, for every boundary position b in [0, len(lines)],
// whether a cut before line b would leave all code fences and list blocks
// intact. A list block starts at a list item and ends at the next blank line
// outside a fence.
func SafeBoundaries(lines []string) []bool {
	safe := make([]bool, len(lines)+1)
	safe[0] = true
	var fence parser.FenceTracker
	inList := false

	for i, line := range lines {
		if !fence.Feed(line) && !fence.Open() {
			switch {
			case parser.IsListItem(line):
				inList = true
			case parser.IsBlank(line):
				inList = false
			}
		}
		safe[i+1] = !fence.Open() && !inList
	}
	return safe
}

// IsSingleBlock reports whether lines form one indivisible block: no interior
// boundary is safe to cut at.
func IsSingleBlock(lines []string) bool {
	safe := SafeBoundaries(lines)
	for b := 1; b < len(lines); b++ {
		if safe[b] {
			return false
		}
	}
	return len(lines) > 0
}

// Thresholds derives the per-level targets from the configured maximum.
type Thresholds struct {
	Max int
	// Story is the target size when splitting an epic into stories.
	Story int
	// TaskTrigger is the story size above which a story gets tasks.
	TaskTrigger int
	// Task is the target size when splitting a story into tasks.
	Task int
}

func NewThresholds(maxLines int) Thresholds {
	if maxLines < 1 {
		maxLines = 1
	}
	return Thresholds{
		Max:         maxLines,
		Story:       atLeastOne(maxLines * 70 / 100),
		TaskTrigger: maxLines * 50 / 100,
		Task:        atLeastOne(maxLines * 30 / 100),
	}
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
