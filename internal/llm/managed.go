package llm

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/morozRed/docshard/internal/fileutil"
)

// Agent guidance files hold one docshard-owned block between these markers.
// Text outside the block belongs to the user.
const (
	ManagedBlockStart = "<!-- docshard:managed:start -->"
	ManagedBlockEnd   = "<!-- docshard:managed:end -->"
)

// ErrUnterminatedBlock is returned when a start marker has no end marker
// after it. The file is left alone rather than guessing where the block ends.
var ErrUnterminatedBlock = errors.New("unterminated docshard managed block")

type blockSpan struct {
	start int
	end   int
}

// UpsertManagedMarkdownFile writes body as the managed block of path and
// reports whether the file changed.
func UpsertManagedMarkdownFile(path, body string) (bool, error) {
	existing := ""
	if data, err := os.ReadFile(path); err == nil {
		existing = string(data)
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	updated, err := UpsertManagedBlock(existing, body)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return fileutil.WriteIfChangedTracked(path, []byte(updated))
}

// UpsertManagedBlock places body in the first managed block of existing, or
// appends a block when there is none. Further blocks, left by merges or
// copied files, are dropped so the guidance appears once.
func UpsertManagedBlock(existing, body string) (string, error) {
	managed := ManagedBlockStart + "\n" + strings.TrimSpace(body) + "\n" + ManagedBlockEnd
	if strings.TrimSpace(existing) == "" {
		return managed + "\n", nil
	}

	spans, err := managedBlocks(existing)
	if err != nil {
		return "", err
	}
	if len(spans) == 0 {
		return fileutil.EnsureTrailingNewline(existing) + "\n" + managed + "\n", nil
	}

	var b strings.Builder
	b.WriteString(existing[:spans[0].start])
	b.WriteString(managed)
	cursor := spans[0].end
	for _, span := range spans[1:] {
		b.WriteString(strings.TrimRight(existing[cursor:span.start], "\n"))
		cursor = span.end
	}
	b.WriteString(existing[cursor:])
	return fileutil.EnsureTrailingNewline(b.String()), nil
}

func managedBlocks(text string) ([]blockSpan, error) {
	spans := make([]blockSpan, 0, 1)
	offset := 0
	for {
		start := strings.Index(text[offset:], ManagedBlockStart)
		if start < 0 {
			return spans, nil
		}
		start += offset
		body := start + len(ManagedBlockStart)
		end := strings.Index(text[body:], ManagedBlockEnd)
		if end < 0 {
			return nil, ErrUnterminatedBlock
		}
		end += body + len(ManagedBlockEnd)
		spans = append(spans, blockSpan{start: start, end: end})
		offset = end
	}
}
