// Package llm writes the instruction files that point coding agents at
// shard output instead of the full source document.
package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/morozRed/docshard/internal/fileutil"
)

const cursorRuleFile = "docshard-shards.mdc"

var supportedProviders = []string{"codex", "claude", "cursor"}

func ParseLLMProviders(raw string) ([]string, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return nil, nil
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(supportedProviders))
	add := func(value string) error {
		if value == "all" {
			for _, provider := range supportedProviders {
				if !seen[provider] {
					seen[provider] = true
					out = append(out, provider)
				}
			}
			return nil
		}
		if !containsProvider(value) {
			return fmt.Errorf("unsupported --llm provider %q (supported: %s, all)", value, strings.Join(supportedProviders, ", "))
		}
		if !seen[value] {
			seen[value] = true
			out = append(out, value)
		}
		return nil
	}

	for _, chunk := range strings.Split(raw, ",") {
		for _, value := range strings.Fields(chunk) {
			if err := add(value); err != nil {
				return nil, err
			}
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func containsProvider(value string) bool {
	for _, provider := range supportedProviders {
		if provider == value {
			return true
		}
	}
	return false
}

// GenerateIntegrationFiles writes CONTEXT.md plus one adapter per provider
// and returns the files that changed, relative to rootPath.
func GenerateIntegrationFiles(rootPath, outputDir string, providers []string) ([]string, error) {
	updated := make([]string, 0)
	record := func(rel string, changed bool) {
		if changed {
			updated = append(updated, filepath.ToSlash(rel))
		}
	}

	changed, err := UpsertManagedMarkdownFile(filepath.Join(rootPath, "CONTEXT.md"), BuildContextBlock(outputDir))
	if err != nil {
		return nil, err
	}
	record("CONTEXT.md", changed)

	for _, provider := range providers {
		switch provider {
		case "codex":
			changed, err := UpsertManagedMarkdownFile(filepath.Join(rootPath, "AGENTS.md"), BuildRootAdapterBlock("Codex"))
			if err != nil {
				return nil, err
			}
			record("AGENTS.md", changed)
		case "claude":
			changed, err := UpsertManagedMarkdownFile(filepath.Join(rootPath, "CLAUDE.md"), BuildRootAdapterBlock("Claude"))
			if err != nil {
				return nil, err
			}
			record("CLAUDE.md", changed)
		case "cursor":
			rel := filepath.Join(".cursor", "rules", cursorRuleFile)
			cursorPath := filepath.Join(rootPath, rel)
			if err := os.MkdirAll(filepath.Dir(cursorPath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create cursor rules directory: %w", err)
			}
			changed, err := fileutil.WriteIfChangedTracked(cursorPath, []byte(BuildCursorRuleContent(outputDir)))
			if err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", cursorPath, err)
			}
			record(rel, changed)
		}
	}

	sort.Strings(updated)
	return updated, nil
}
