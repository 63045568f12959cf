// Package reassemble rebuilds a linear document from persisted shards.
package reassemble

import (
	"fmt"
	"io"
	"strings"

	"github.com/morozRed/docshard/internal/output"
	"github.com/morozRed/docshard/internal/shard"
)

// ErrShardNotFound is returned when the index names a shard whose file is
// missing.
var ErrShardNotFound = output.ErrShardNotFound

// Document walks index.json in docDir and returns the concatenated content
// of every leaf shard: epics in order, their stories in order, and for each
// story its tasks in order when it has any. Sections are grouped by epic, so
// a source whose categories interleave comes back in epic order.
func Document(docDir string) (string, error) {
	index, err := output.LoadIndex(docDir)
	if err != nil {
		return "", err
	}
	levels, err := shard.ParseLevels(index.Levels)
	if err != nil {
		return "", fmt.Errorf("failed to read hierarchy levels: %w", err)
	}

	entries := index.EntriesByID()
	parts := make([]string, 0)
	for _, epicID := range index.Epics {
		if _, err := readShard(docDir, entries, epicID, levels.Epic); err != nil {
			return "", err
		}
		for _, storyID := range index.Stories[epicID] {
			story, err := readShard(docDir, entries, storyID, levels.Story)
			if err != nil {
				return "", err
			}
			tasks := index.Tasks[storyID]
			if len(tasks) == 0 {
				parts = append(parts, story.Content)
				continue
			}
			for _, taskID := range tasks {
				task, err := readShard(docDir, entries, taskID, levels.Task)
				if err != nil {
					return "", err
				}
				parts = append(parts, task.Content)
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}

func readShard(docDir string, entries map[string]output.IndexEntry, id, levelType string) (*shard.Shard, error) {
	entry, ok := entries[id]
	if !ok {
		entry = output.IndexEntry{ID: id, Type: levelType, File: shard.FilePath(levelType, id)}
	}
	return output.ReadShard(docDir, entry)
}

// Write reassembles docDir into w, ending with a newline when the document is
// not empty.
func Write(docDir string, w io.Writer) error {
	text, err := Document(docDir)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	if _, err := io.WriteString(w, text+"\n"); err != nil {
		return fmt.Errorf("failed to write reassembled document: %w", err)
	}
	return nil
}
