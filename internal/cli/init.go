package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/docshard/internal/config"
	"github.com/morozRed/docshard/internal/fileutil"
	"github.com/morozRed/docshard/internal/ignore"
	"github.com/morozRed/docshard/internal/llm"
)

const defaultIgnoreFile = `# Paths excluded when sharding a directory (gitignore syntax).
# Built-in: .git/ node_modules/ vendor/ shards/ CHANGELOG.md
drafts/
`

func RunInit(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	force, err := OptionalBoolFlag(cmd, "force", false)
	if err != nil {
		return err
	}
	llmRaw, err := OptionalStringFlag(cmd, "llm")
	if err != nil {
		return err
	}
	providers, err := llm.ParseLLMProviders(llmRaw)
	if err != nil {
		return err
	}

	data, err := config.Default().Marshal()
	if err != nil {
		return err
	}
	configPath := filepath.Join(rootPath, config.FileName)
	_, statErr := os.Stat(configPath)
	existed := statErr == nil
	if force {
		err = fileutil.WriteAtomic(configPath, data)
	} else {
		err = fileutil.WriteIfMissing(configPath, data, 0644)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", config.FileName, err)
	}

	ignorePath := filepath.Join(rootPath, ignore.FileName)
	if err := fileutil.WriteIfMissing(ignorePath, []byte(defaultIgnoreFile), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ignore.FileName, err)
	}

	written := []string{config.FileName, ignore.FileName}
	if len(providers) > 0 {
		cfg, err := config.Load(rootPath, nil)
		if err != nil {
			return err
		}
		updated, err := llm.GenerateIntegrationFiles(rootPath, cfg.OutputDir, providers)
		if err != nil {
			return fmt.Errorf("failed to generate llm integration files: %w", err)
		}
		written = append(written, updated...)
	}
	fmt.Printf("Initialized docshard in %s (%s)\n", rootPath, strings.Join(written, ", "))
	if existed && !force {
		fmt.Println("Existing config kept; use --force to reset it.")
	}
	fmt.Println("Next: docshard generate <document.md>")
	return nil
}
