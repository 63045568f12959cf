package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/morozRed/docshard/internal/languages"
	"github.com/morozRed/docshard/internal/watch"
)

func RunWatch(cmd *cobra.Command, args []string) error {
	source := args[0]
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	debounce := watch.DefaultDebounce
	if cmd != nil && cmd.Flags().Lookup("debounce") != nil {
		if debounce, err = cmd.Flags().GetDuration("debounce"); err != nil {
			return fmt.Errorf("failed to read --debounce flag: %w", err)
		}
	}
	if _, err := os.Stat(source); err != nil {
		return fmt.Errorf("failed to access %s: %w", source, err)
	}

	logger := Logger(cmd)
	watcher, err := watch.New(source, debounce, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer := languages.NewAnalyzer()
	reshard := func(ctx context.Context) error {
		// no spinner while watching
		summary, err := generateDocument(ctx, cmd, cfg, analyzer, source, "watch", nil, true)
		if err != nil {
			return err
		}
		return PrintRunSummary(summary, false)
	}
	if err := reshard(ctx); err != nil {
		// keep watching; the next save may fix the document
		logger.Error("initial shard failed", zap.Error(err))
	}

	fmt.Fprintf(os.Stderr, "watching %s (debounce %s, ctrl-c to stop)\n", source, debounce.Round(time.Millisecond))
	err = watcher.Run(ctx, reshard)
	stats := watcher.Stats()
	logger.Info("watch stopped", zap.Int("runs", stats.Runs), zap.Int("errors", stats.Errors))
	return err
}
