package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/morozRed/docshard/internal/config"
	"github.com/morozRed/docshard/internal/fileutil"
	"github.com/morozRed/docshard/internal/languages"
	"github.com/morozRed/docshard/internal/output"
	"github.com/morozRed/docshard/internal/parser"
	"github.com/morozRed/docshard/internal/shard"
	"github.com/morozRed/docshard/internal/state"
)

// DocumentRun is the outcome of sharding one document.
type DocumentRun struct {
	Document *parser.Document
	Result   *shard.Result
	Written  *output.Summary
	State    *state.State
}

// ShardDocument parses, shards and persists one document, then records the
// run state next to the output.
func ShardDocument(ctx context.Context, cfg *config.Config, path string, analyzer *languages.Analyzer, logger *zap.Logger, progress func(file string, done int)) (*DocumentRun, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %q: %w", path, err)
	}
	doc, err := parser.ParseFile(absPath)
	if err != nil {
		return nil, err
	}
	ruleSet, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	configHash, err := cfg.Hash()
	if err != nil {
		return nil, err
	}

	session, err := shard.NewSession(shard.Options{
		MaxLines:        cfg.MaxLines,
		PreserveContext: cfg.PreserveContext,
		Levels:          cfg.Levels(),
		Rules:           ruleSet,
		Analyzer:        analyzer,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	result, err := session.Run(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to shard %s: %w", absPath, err)
	}

	written, err := output.Write(ctx, cfg.OutputDir, result, output.Options{
		Workers: cfg.Workers,
		Settings: output.Settings{
			MaxLines:        cfg.MaxLines,
			PreserveContext: cfg.PreserveContext,
		},
		Identifier: ruleSet.IdentifierRegexp(),
		Logger:     logger,
		Progress:   progress,
	})
	if err != nil {
		return nil, err
	}

	st := state.NewState()
	st.Source = doc.Path
	st.SourceHash = doc.Hash
	st.ConfigHash = configHash
	st.RunID = result.RunID
	st.UpdatedAt = time.Now().UTC()
	st.ReplaceOutputHashes(written.Hashes)
	if err := st.Save(written.DocDir); err != nil {
		return nil, fmt.Errorf("failed to persist state: %w", err)
	}

	return &DocumentRun{Document: doc, Result: result, Written: written, State: st}, nil
}

// CollectSources expands path into the documents to shard. A file is used
// as is; a directory is walked honoring .docshardignore.
func CollectSources(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", parser.ErrSourceUnreadable, path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	ignoreRules, err := LoadIgnoreRules(path)
	if err != nil {
		return nil, err
	}
	paths, issues, err := parser.Discover(path, ignoreRules)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	ReportParseIssues(issues)

	names := make(map[string]string, len(paths))
	for _, candidate := range paths {
		name := parser.DocumentName(candidate)
		if previous, ok := names[name]; ok {
			return nil, fmt.Errorf("documents %s and %s would share output directory %q", previous, candidate, name)
		}
		names[name] = candidate
	}
	return paths, nil
}

// DocumentDir returns the output directory of the document at path.
func DocumentDir(cfg *config.Config, path string) string {
	return output.DocDir(cfg.OutputDir, parser.DocumentName(path))
}

// CheckDocument compares the document at path with its recorded run state.
func CheckDocument(cfg *config.Config, path string) (*state.State, state.Staleness, error) {
	docDir := DocumentDir(cfg, path)
	st, err := state.Load(docDir)
	if err != nil {
		if !IsCorruptStateError(err) {
			return nil, state.Staleness{}, fmt.Errorf("failed to load state: %w", err)
		}
		fmt.Fprintf(os.Stderr, "warning: corrupt state file detected (%v); treating document as never sharded\n", err)
		st = state.NewState()
	}

	sourceHash, err := fileutil.HashFile(path)
	if err != nil {
		return nil, state.Staleness{}, fmt.Errorf("%w: %s: %v", parser.ErrSourceUnreadable, path, err)
	}
	configHash, err := cfg.Hash()
	if err != nil {
		return nil, state.Staleness{}, err
	}
	return st, st.Check(sourceHash, configHash), nil
}

// OutputDrift lists shard files edited or removed since the last run.
func OutputDrift(st *state.State, docDir string) (changed, missing []string, err error) {
	current, err := fileutil.HashDir(docDir, func(rel string) bool { return rel == state.StateFile })
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to hash %s: %w", docDir, err)
	}
	changed, missing = st.ChangedOutputs(current)
	return changed, missing, nil
}

func IsCorruptStateError(err error) bool {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}

func ReportParseIssues(issues []parser.ParseIssue) {
	for _, issue := range issues {
		fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", issue.Severity, issue.File, issue.Message)
	}
}
