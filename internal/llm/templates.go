package llm

import "fmt"

func BuildContextBlock(outputDir string) string {
	return fmt.Sprintf(`# Document Shards

Large specification documents in this repository are split by docshard into
epic, story and task shards under %[1]s/<document>/.

- Hierarchy and source metadata: %[1]s/<document>/index.json
- Navigation index (links, context tags, search tokens): %[1]s/<document>/nav-index.json
- Shard files: %[1]s/<document>/{epics,stories,tasks}/<id>.md

Read shards instead of the full document:
1. docshard tree %[1]s/<document> to see the outline
2. docshard search %[1]s/<document> <terms> to find relevant shards
3. docshard show %[1]s/<document> <id> to read one shard with its links
4. docshard status <document.md> before relying on shards; run docshard update if stale
`, outputDir)
}

func BuildRootAdapterBlock(agentName string) string {
	return fmt.Sprintf(`# docshard Integration (%s)

Prefer document shards over reading whole specification files.

1. Follow CONTEXT.md for shard locations and commands.
2. Run docshard status <document.md>; if stale, run docshard update <document.md>.
3. Open only the shards you need; follow Related links for cross-references.
`, agentName)
}

func BuildCursorRuleContent(outputDir string) string {
	return fmt.Sprintf(`---
description: Navigate large specification documents through docshard shards
alwaysApply: true
---

Use CONTEXT.md for guidance. Read %[1]s/<document>/index.json first, then open
individual shard files. Run docshard update <document.md> when shards are stale.
`, outputDir)
}
