package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/docshard/internal/shard"
)

func sampleTree() *shard.Result {
	epic := &shard.Shard{ID: "epic-aaaaaaaa", Type: "epic", Title: "Architecture", LineCount: 12, Children: []string{"story-bbbbbbbb", "story-cccccccc"}}
	s1 := &shard.Shard{ID: "story-bbbbbbbb", Type: "story", Title: "Data Layer", LineCount: 8, Parent: epic.ID, Children: []string{"task-dddddddd"}}
	s2 := &shard.Shard{ID: "story-cccccccc", Type: "story", Title: "API Layer", LineCount: 4, Parent: epic.ID}
	t1 := &shard.Shard{ID: "task-dddddddd", Type: "task", Title: "Schema", LineCount: 8, Parent: s1.ID}
	return shard.NewLoadedResult(shard.DefaultLevels(), "run-1", []string{epic.ID}, []*shard.Shard{epic, s1, s2, t1})
}

func TestRenderTreeOrdersAndNestsShards(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTree(&buf, sampleTree()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Architecture")
	assert.Contains(t, lines[0], "epic-aaaaaaaa (12 lines)")
	assert.Contains(t, lines[1], TreeBranch)
	assert.Contains(t, lines[1], "Data Layer")
	assert.Contains(t, lines[2], TreePipe+TreeLast)
	assert.Contains(t, lines[2], "Schema")
	assert.Contains(t, lines[3], TreeLast)
	assert.Contains(t, lines[3], "API Layer")
}

func TestRenderMarkdownPlainIsUnchanged(t *testing.T) {
	text := "# Title\n\nbody\n"
	assert.Equal(t, text, RenderMarkdown(text, true))
}

func TestRenderMarkdownStyled(t *testing.T) {
	out := RenderMarkdown("# Title\n\nsome body text\n", false)
	assert.Contains(t, out, "some body text")
}
