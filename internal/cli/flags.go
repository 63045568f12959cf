package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/docshard/internal/config"
)

// addShardFlags registers the flags that override sharding settings.
func addShardFlags(cmd *cobra.Command) {
	defaults := config.Default()
	cmd.Flags().Int("max-lines", defaults.MaxLines, "Maximum lines per shard")
	cmd.Flags().Bool("preserve-context", defaults.PreserveContext, "Split on structural boundaries and never inside blocks")
	cmd.Flags().StringSlice("levels", defaults.HierarchyLevels, "Names of the three hierarchy levels")
	cmd.Flags().String("output", defaults.OutputDir, "Output root directory")
	cmd.Flags().Int("workers", defaults.Workers, "Parallel shard file writers")
	cmd.Flags().String("rules", defaults.RulesFile, "Classification rules file (.yaml or .toml)")
}

// loadConfig resolves configuration for cmd relative to the working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return nil, err
	}
	var cfg *config.Config
	if cmd == nil {
		cfg, err = config.Load(rootPath, nil)
	} else {
		cfg, err = config.Load(rootPath, cmd.Flags())
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func OptionalStringFlag(cmd *cobra.Command, name string) (string, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return "", nil
	}
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return strings.TrimSpace(value), nil
}

func OptionalBoolFlag(cmd *cobra.Command, name string, defaultValue bool) (bool, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return defaultValue, nil
	}
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}

func OptionalIntFlag(cmd *cobra.Command, name string, defaultValue int) (int, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return defaultValue, nil
	}
	value, err := cmd.Flags().GetInt(name)
	if err != nil {
		return 0, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}
