package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/morozRed/docshard/internal/nav"
	"github.com/morozRed/docshard/internal/parser"
	"github.com/morozRed/docshard/internal/rules"
	"github.com/morozRed/docshard/internal/search"
	"github.com/morozRed/docshard/internal/shard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleResult(t *testing.T, runID string) *shard.Result {
	t.Helper()
	var b strings.Builder
	b.WriteString("Intro before any heading.\n\n")
	b.WriteString("# Functional Requirements\nREQ-010 Exports are signed.\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "Requirement line %d.\n", i)
	}
	b.WriteString("\n# Test Plan\nVerify REQ-010, see Functional Requirements.\n```sh\nmake test\n```\n\n")

	session, err := shard.NewSession(shard.Options{
		MaxLines:        20,
		PreserveContext: true,
		RunID:           runID,
		Now:             func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	result, err := session.Run(context.Background(), parser.Parse("docs/prd.md", []byte(b.String())))
	require.NoError(t, err)
	return result
}

func writeOptions() Options {
	return Options{
		Workers:    3,
		Settings:   Settings{MaxLines: 20, PreserveContext: true},
		Identifier: rules.Default().IdentifierRegexp(),
	}
}

func TestWriteLayoutAndRoundTrip(t *testing.T) {
	root := t.TempDir()
	result := sampleResult(t, "run-1")

	var progressCalls atomic.Int64
	opts := writeOptions()
	opts.Progress = func(string, int) { progressCalls.Add(1) }

	summary, err := Write(context.Background(), root, result, opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "prd"), summary.DocDir)
	assert.Equal(t, len(result.Shards)+3, summary.Files)
	assert.EqualValues(t, summary.Files, progressCalls.Load())

	for _, name := range []string{IndexFile, nav.NavigationIndexFile, search.IndexFile} {
		assert.FileExists(t, filepath.Join(summary.DocDir, name))
	}
	levelDirs := map[string]string{"epic": "epics", "story": "stories", "task": "tasks"}
	for _, sh := range result.All() {
		assert.FileExists(t, filepath.Join(summary.DocDir, levelDirs[sh.Type], sh.ID+".md"))
	}
	assert.DirExists(t, filepath.Join(summary.DocDir, "stories"))
	assert.NoDirExists(t, filepath.Join(summary.DocDir, "storys"))

	loaded, index, err := Load(summary.DocDir)
	require.NoError(t, err)
	assert.Equal(t, result.Epics, loaded.Epics)
	assert.Equal(t, "docs/prd.md", loaded.Document.Path)
	assert.Equal(t, result.Document.Hash, index.Source.Hash)
	require.Len(t, loaded.Shards, len(result.Shards))
	for _, want := range result.All() {
		got, ok := loaded.Get(want.ID)
		require.True(t, ok, want.ID)
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Content, got.Content)
		assert.Equal(t, want.LineCount, got.LineCount)
		assert.Equal(t, want.Parent, got.Parent)
		assert.Equal(t, want.Children, got.Children)
		assert.Equal(t, want.CrossReferences, got.CrossReferences)
		assert.Equal(t, want.ContextScope, got.ContextScope)
		assert.Equal(t, want.Metadata.StartLine, got.Metadata.StartLine)
		assert.Equal(t, want.Metadata.EndLine, got.Metadata.EndLine)
		assert.True(t, want.Metadata.CreatedAt.Equal(got.Metadata.CreatedAt))
		assert.Equal(t, "run-1", got.Metadata.RunID)
	}

	for _, epicID := range result.Epics {
		assert.Equal(t, len(result.Shards[epicID].Children), len(index.Stories[epicID]))
	}

	entries := index.EntriesByID()
	require.Len(t, entries, len(index.Shards))
	for _, sh := range result.All() {
		entry, ok := entries[sh.ID]
		require.True(t, ok, sh.ID)
		assert.Equal(t, filepath.ToSlash(shard.FilePath(sh.Type, sh.ID)), entry.File)
	}
}

func TestShardFileFormat(t *testing.T) {
	result := sampleResult(t, "run-1")
	var story *shard.Shard
	for _, sh := range result.ByType("story") {
		if len(sh.CrossReferences) > 0 {
			story = sh
			break
		}
	}
	require.NotNil(t, story, "expected a story with cross references")

	data, err := EncodeShard(story, result.Get)
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "---\nid: "+story.ID+"\n"))
	assert.Contains(t, text, "type: story\n")
	assert.Contains(t, text, "\n## Navigation\n")
	assert.Contains(t, text, "- Parent: [")
	assert.Contains(t, text, "(../epics/"+story.Parent+".md)")
	assert.Contains(t, text, "- Related:\n")
	assert.True(t, strings.HasSuffix(text, contentMarker+"\n"+story.Content+"\n"))

	decoded, err := DecodeShard(data)
	require.NoError(t, err)
	assert.Equal(t, story.Content, decoded.Content)
}

func TestDecodeShardRejectsMalformedFiles(t *testing.T) {
	for _, input := range []string{
		"no front matter",
		"---\nid: x\n",
		"---\nid: x\n---\n\nno marker\n",
	} {
		_, err := DecodeShard([]byte(input))
		assert.ErrorIs(t, err, errMalformedShard, input)
	}
}

func TestWriteReplacesPreviousOutput(t *testing.T) {
	root := t.TempDir()
	_, err := Write(context.Background(), root, sampleResult(t, "run-1"), writeOptions())
	require.NoError(t, err)
	stale := filepath.Join(root, "prd", "epics", "stale.md")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	_, err = Write(context.Background(), root, sampleResult(t, "run-2"), writeOptions())
	require.NoError(t, err)
	assert.NoFileExists(t, stale)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging and backup directories are cleaned up")
}

func TestWriteFailureLeavesPreviousOutput(t *testing.T) {
	root := t.TempDir()
	_, err := Write(context.Background(), root, sampleResult(t, "run-1"), writeOptions())
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(root, "prd", IndexFile))
	require.NoError(t, err)

	// A file where the staging directory should go makes the write fail.
	blocker := filepath.Join(root, ".prd.staging-run-2")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err = Write(context.Background(), root, sampleResult(t, "run-2"), writeOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWriteFailed))

	after, err := os.ReadFile(filepath.Join(root, "prd", IndexFile))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NoFileExists(t, blocker)
}

func TestWriteHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Write(ctx, root, sampleResult(t, "run-1"), writeOptions())
	require.ErrorIs(t, err, ErrWriteFailed)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, filepath.Join(root, "prd"))
}

func TestLoadReportsMissingShard(t *testing.T) {
	root := t.TempDir()
	result := sampleResult(t, "run-1")
	summary, err := Write(context.Background(), root, result, writeOptions())
	require.NoError(t, err)

	victim := result.ByType("task")
	require.NotEmpty(t, victim)
	require.NoError(t, os.Remove(filepath.Join(summary.DocDir, "tasks", victim[0].ID+".md")))

	_, _, err = Load(summary.DocDir)
	assert.ErrorIs(t, err, ErrShardNotFound)
}
