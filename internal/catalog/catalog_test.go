package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/docshard/internal/parser"
	"github.com/morozRed/docshard/internal/rules"
	"github.com/morozRed/docshard/internal/shard"
)

const catalogDocument = `# Functional Requirements
REQ-200 Archive monthly statements.

# Deployment
Release behind a flag. Needs REQ-200.
`

func TestImportAndQuery(t *testing.T) {
	session, err := shard.NewSession(shard.Options{MaxLines: 50, PreserveContext: true})
	require.NoError(t, err)
	result, err := session.Run(context.Background(), parser.Parse("prd.md", []byte(catalogDocument)))
	require.NoError(t, err)

	store, err := Open(filepath.Join(t.TempDir(), "catalog", "shards.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	identifier := rules.Default().IdentifierRegexp()
	require.NoError(t, store.Import(ctx, "prd", result, identifier))
	// A second import of the same document replaces the first.
	require.NoError(t, store.Import(ctx, "prd", result, identifier))

	counts, err := store.Counts(ctx, "prd")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"epic": 2, "story": 2}, counts)

	rows, err := store.ShardsByToken(ctx, "req-200")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, "epic", rows[0].Type)

	edges, err := store.CrossReferenceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, edges)
}
