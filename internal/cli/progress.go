package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/morozRed/docshard/internal/ui"
)

var spinnerFrames = [...]string{"-", "\\", "|", "/"}

// writeProgressReporter redraws a single stderr status line while shard
// files are written. It is silent unless stderr is a terminal.
type writeProgressReporter struct {
	out     io.Writer
	enabled bool
	label   string
	total   int
	width   int
	start   time.Time
	frame   int
	lastLen int
}

func newWriteProgressReporter(label string, total int, asJSON bool) *writeProgressReporter {
	return &writeProgressReporter{
		out:     os.Stderr,
		enabled: !asJSON && ui.StderrIsTerminal(),
		label:   label,
		total:   total,
		width:   ui.TerminalWidth(100),
		start:   time.Now(),
	}
}

// Update is called by the shard writer with its lock held.
func (r *writeProgressReporter) Update(file string, count int) {
	if !r.enabled {
		return
	}
	frame := spinnerFrames[r.frame%len(spinnerFrames)]
	r.frame++

	counter := fmt.Sprintf("%d", count)
	if r.total > 0 {
		counter = fmt.Sprintf("%d/%d", count, r.total)
	}
	prefix := fmt.Sprintf("%s %s %s ", frame, r.label, counter)
	r.redraw(prefix + truncateLeft(file, r.width-len(prefix)-1))
}

func (r *writeProgressReporter) Done(count int) {
	if !r.enabled {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	r.redraw(fmt.Sprintf("%s %s %s", ui.IconPass, r.label, ui.RenderMuted(fmt.Sprintf("(%d files in %s)", count, elapsed))))
	fmt.Fprintln(r.out)
}

func (r *writeProgressReporter) redraw(status string) {
	pad := r.lastLen - len(status)
	r.lastLen = len(status)
	if pad > 0 {
		status += fmt.Sprintf("%*s", pad, "")
	}
	fmt.Fprintf(r.out, "\r%s", status)
}

// truncateLeft keeps the tail of s, which for paths is the informative end.
func truncateLeft(s string, limit int) string {
	if limit < 4 || len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit+3:]
}
