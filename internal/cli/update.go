package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/morozRed/docshard/internal/languages"
)

func RunUpdate(cmd *cobra.Command, args []string) error {
	start := time.Now()
	if len(args) != 1 {
		return fmt.Errorf("update requires a document path")
	}
	source := args[0]
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, staleness, err := CheckDocument(cfg, source)
	if err != nil {
		return err
	}
	docDir := DocumentDir(cfg, source)
	reasons := staleness.Reasons()
	if !staleness.Stale() {
		// hand edits to shard files are reported by status, not overwritten
		_, missing, err := OutputDrift(st, docDir)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			reasons = append(reasons, fmt.Sprintf("%d shard files missing", len(missing)))
		}
	}

	if len(reasons) == 0 {
		return PrintRunSummary(RunSummary{
			Mode:       "update",
			Source:     st.Source,
			OutputDir:  docDir,
			RunID:      st.RunID,
			Skipped:    true,
			DurationMS: time.Since(start).Milliseconds(),
		}, asJSON)
	}

	summary, err := generateDocument(commandContext(cmd), cmd, cfg, languages.NewAnalyzer(), source, "update", reasons, asJSON)
	if err != nil {
		return err
	}
	summary.DurationMS = time.Since(start).Milliseconds()
	return PrintRunSummary(summary, asJSON)
}
