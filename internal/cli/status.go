package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func RunStatus(cmd *cobra.Command, args []string) error {
	start := time.Now()
	if len(args) != 1 {
		return fmt.Errorf("status requires a document path")
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	source := args[0]
	st, staleness, err := CheckDocument(cfg, source)
	if err != nil {
		return err
	}
	docDir := DocumentDir(cfg, source)
	changed, missing, err := OutputDrift(st, docDir)
	if err != nil {
		return err
	}

	absSource, err := filepath.Abs(source)
	if err != nil {
		absSource = source
	}
	summary := RunSummary{
		Mode:           "status",
		Source:         absSource,
		OutputDir:      docDir,
		RunID:          st.RunID,
		Stale:          staleness.Stale() || len(missing) > 0,
		Reasons:        staleness.Reasons(),
		ChangedOutputs: changed,
		MissingOutputs: missing,
		DurationMS:     time.Since(start).Milliseconds(),
	}
	if !staleness.Stale() && len(missing) > 0 {
		summary.Reasons = append(summary.Reasons, "shard files missing")
	}
	return PrintRunSummary(summary, asJSON)
}
