package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/morozRed/docshard/internal/config"
	"github.com/morozRed/docshard/internal/languages"
	"github.com/morozRed/docshard/internal/state"
)

func RunGenerate(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("generate requires a file or directory")
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sources, err := CollectSources(args[0])
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no documents found under %s", args[0])
	}

	analyzer := languages.NewAnalyzer()
	for _, source := range sources {
		summary, err := generateDocument(commandContext(cmd), cmd, cfg, analyzer, source, "generate", nil, asJSON)
		if err != nil {
			return err
		}
		if err := PrintRunSummary(summary, asJSON); err != nil {
			return err
		}
	}
	return nil
}

// generateDocument shards one source and summarizes the run. reasons are
// recorded in the summary when the run was triggered by staleness.
func generateDocument(ctx context.Context, cmd *cobra.Command, cfg *config.Config, analyzer *languages.Analyzer, source, mode string, reasons []string, asJSON bool) (RunSummary, error) {
	start := time.Now()
	logger := Logger(cmd)

	var previousOutputs map[string]string
	if previous, err := state.Load(DocumentDir(cfg, source)); err == nil {
		previousOutputs = CloneOutputHashes(previous.OutputHashes)
	}

	progress := newWriteProgressReporter(mode+" "+filepath.Base(source), 0, asJSON)
	run, err := ShardDocument(ctx, cfg, source, analyzer, logger, progress.Update)
	if err != nil {
		return RunSummary{}, err
	}
	progress.Done(run.Written.Files)

	logger.Debug("document sharded",
		zap.String("source", run.Document.Path),
		zap.String("run_id", run.Result.RunID),
		zap.Int("files", run.Written.Files),
	)

	summary := summarizeRun(mode, run, previousOutputs)
	summary.Reasons = reasons
	summary.DurationMS = time.Since(start).Milliseconds()
	return summary, nil
}
