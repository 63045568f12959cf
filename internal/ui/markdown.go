package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const maxWrapWidth = 100

// RenderMarkdown renders markdown for a terminal. When plain is set the text
// is returned unchanged so output stays pipe friendly.
func RenderMarkdown(markdown string, plain bool) string {
	if plain {
		return markdown
	}

	wrapWidth := TerminalWidth(80)
	if wrapWidth > maxWrapWidth {
		wrapWidth = maxWrapWidth
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n") + "\n"
}
