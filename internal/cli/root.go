package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/morozRed/docshard/internal/config"
	"github.com/morozRed/docshard/internal/logging"
	"github.com/morozRed/docshard/internal/watch"
)

type loggerKey struct{}

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docshard",
		Short: "Split large documents into navigable epic/story/task shards",
		Long: `docshard breaks a long specification document into a hierarchy of
small, self-contained markdown shards - epics, stories and tasks - with
navigation links, cross-references and a searchable index.

Shards are written to shards/<document>/ and can be reassembled at any
time into one document: every epic's text in epic order.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogger,
		PersistentPostRun: syncLogger,
	}
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error (default from config)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console|json (default from config)")

	// Shard Commands
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .docshard.yaml and .docshardignore",
		RunE:  RunInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing .docshard.yaml")
	initCmd.Flags().String("llm", "", "Write agent guidance for providers (codex,claude,cursor,all)")

	generateCmd := &cobra.Command{
		Use:   "generate <file|dir>",
		Short: "Shard a document, or every document under a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  RunGenerate,
	}
	addShardFlags(generateCmd)
	generateCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	updateCmd := &cobra.Command{
		Use:   "update <file>",
		Short: "Re-shard a document only when it or the config changed",
		Args:  cobra.ExactArgs(1),
		RunE:  RunUpdate,
	}
	addShardFlags(updateCmd)
	updateCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	watchCmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Shard a document and re-shard on every save",
		Args:  cobra.ExactArgs(1),
		RunE:  RunWatch,
	}
	addShardFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before re-sharding")

	// Inspect Commands
	statusCmd := &cobra.Command{
		Use:   "status <file>",
		Short: "Show whether a document needs to be sharded again",
		Args:  cobra.ExactArgs(1),
		RunE:  RunStatus,
	}
	addShardFlags(statusCmd)
	statusCmd.Flags().Bool("json", false, "Print machine-readable status output")

	doctorCmd := &cobra.Command{
		Use:   "doctor <docDir>",
		Short: "Validate a shard directory against the sharding invariants",
		Args:  cobra.ExactArgs(1),
		RunE:  RunDoctor,
	}
	doctorCmd.Flags().Bool("json", false, "Print machine-readable doctor output")

	// Navigate Commands
	showCmd := &cobra.Command{
		Use:   "show <docDir> <id|title>",
		Short: "Print one shard with its breadcrumb and links",
		Args:  cobra.ExactArgs(2),
		RunE:  RunShow,
	}
	showCmd.Flags().Bool("json", false, "Print machine-readable shard")
	showCmd.Flags().Bool("plain", false, "Print raw markdown without terminal styling")

	searchCmd := &cobra.Command{
		Use:   "search <docDir> <query>",
		Short: "Find shards containing every query token",
		Args:  cobra.MinimumNArgs(2),
		RunE:  RunSearch,
	}
	searchCmd.Flags().Bool("json", false, "Print machine-readable matches")
	searchCmd.Flags().Bool("rank", false, "Rank matches with BM25 and fall back to fuzzy title matching")
	searchCmd.Flags().Int("limit", 10, "Maximum number of ranked matches")
	searchCmd.Flags().String("type", "", "Only match shards of this hierarchy level")
	searchCmd.Flags().String("context", "", "Only match shards carrying this context tag (e.g. lang:go)")

	treeCmd := &cobra.Command{
		Use:   "tree <docDir>",
		Short: "Print the epic/story/task hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE:  RunTree,
	}

	pathCmd := &cobra.Command{
		Use:   "path <docDir> <from> <to>",
		Short: "Find the shortest link path between two shards",
		Args:  cobra.ExactArgs(3),
		RunE:  RunPath,
	}
	pathCmd.Flags().Bool("json", false, "Print machine-readable path")

	traceCmd := &cobra.Command{
		Use:   "trace <docDir> <id|title>",
		Short: "Follow cross-references from a shard up to depth N",
		Args:  cobra.ExactArgs(2),
		RunE:  RunTrace,
	}
	traceCmd.Flags().Int("depth", 2, "Traversal depth (>=1)")
	traceCmd.Flags().Bool("json", false, "Print machine-readable trace")

	// Output Commands
	reassembleCmd := &cobra.Command{
		Use:   "reassemble <docDir>",
		Short: "Rebuild the document text from its shards",
		Args:  cobra.ExactArgs(1),
		RunE:  RunReassemble,
	}
	reassembleCmd.Flags().StringP("out", "o", "", "Write to file instead of stdout")

	exportCmd := &cobra.Command{
		Use:   "export <docDir>",
		Short: "Export shards to a SQLite catalog or JSONL",
		Args:  cobra.ExactArgs(1),
		RunE:  RunExport,
	}
	exportCmd.Flags().String("db", "", "SQLite catalog path")
	exportCmd.Flags().String("jsonl", "", "JSONL output path (- for stdout)")

	// Additional Commands
	installHookCmd := &cobra.Command{
		Use:   "install-hook <file>...",
		Short: "Install git pre-commit hook that keeps documents' shards current",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunInstallHook,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("docshard %s\n", version)
		},
	}

	rootCmd.AddCommand(
		initCmd,
		generateCmd,
		updateCmd,
		watchCmd,
		statusCmd,
		doctorCmd,
		showCmd,
		searchCmd,
		treeCmd,
		pathCmd,
		traceCmd,
		reassembleCmd,
		exportCmd,
		installHookCmd,
		versionCmd,
	)

	return rootCmd
}

// setupLogger builds the logger from config and flags and stores it on the
// command context.
func setupLogger(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	cfg, err := config.Load(rootPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	cmd.SetContext(context.WithValue(commandContext(cmd), loggerKey{}, logger))
	return nil
}

func syncLogger(cmd *cobra.Command, args []string) {
	_ = Logger(cmd).Sync()
}

// Logger returns the command logger, or a no-op logger when the command was
// not started through the root command.
func Logger(cmd *cobra.Command) *zap.Logger {
	if cmd != nil && cmd.Context() != nil {
		if logger, ok := cmd.Context().Value(loggerKey{}).(*zap.Logger); ok {
			return logger
		}
	}
	return zap.NewNop()
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
