// Package output persists a shard set as a directory of markdown files plus
// JSON indices, and loads it back.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/morozRed/docshard/internal/fileutil"
	"github.com/morozRed/docshard/internal/nav"
	"github.com/morozRed/docshard/internal/search"
	"github.com/morozRed/docshard/internal/shard"
)

const (
	IndexFile    = "index.json"
	indexVersion = "shard-index-v1"

	DefaultWorkers = 4
)

var (
	// ErrWriteFailed is returned when persisting fails. Previous output is
	// left untouched.
	ErrWriteFailed = errors.New("failed to write shard output")
	// ErrShardNotFound is returned when an index entry has no shard file.
	ErrShardNotFound = errors.New("shard not found")
)

// Settings are the sharding options recorded alongside the output.
type Settings struct {
	MaxLines        int  `json:"max_lines"`
	PreserveContext bool `json:"preserve_context"`
}

// Options configures a write.
type Options struct {
	Workers  int
	Settings Settings
	// Identifier is recorded in the navigation index for query tokenizing.
	Identifier *regexp.Regexp
	Logger     *zap.Logger
	// Progress is called after every shard file with the running count.
	Progress func(file string, done int)
}

// Summary describes a finished write.
type Summary struct {
	DocDir string
	Files  int
	// Hashes maps output files, relative to DocDir, to content hashes.
	Hashes map[string]string
}

// DocDir is where a document's shards live under the output root.
func DocDir(outputRoot, docName string) string {
	return filepath.Join(outputRoot, docName)
}

// Write persists result under <outputRoot>/<document name>. Files go to a
// staging directory first which replaces the destination only when every
// file was written.
func Write(ctx context.Context, outputRoot string, result *shard.Result, opts Options) (summary *Summary, err error) {
	if result == nil || result.Document == nil {
		return nil, fmt.Errorf("%w: no shard set", ErrWriteFailed)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}

	docDir := DocDir(outputRoot, result.Document.Name)
	staging := filepath.Join(outputRoot, fmt.Sprintf(".%s.staging-%s", result.Document.Name, result.RunID))
	defer func() {
		if err != nil {
			if removeErr := os.RemoveAll(staging); removeErr != nil {
				logger.Warn("failed to remove staging directory", zap.String("path", staging), zap.Error(removeErr))
			}
			err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}()

	for _, level := range result.Levels.Names() {
		if err := os.MkdirAll(filepath.Join(staging, shard.Dir(level)), 0755); err != nil {
			return nil, err
		}
	}

	rec := &recorder{hashes: make(map[string]string), progress: opts.Progress}
	shards := result.All()
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, sh := range shards {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			data, err := EncodeShard(sh, result.Get)
			if err != nil {
				return err
			}
			return rec.write(staging, shard.FilePath(sh.Type, sh.ID), data)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	artifacts, err := buildArtifacts(result, opts)
	if err != nil {
		return nil, err
	}
	names := keys(artifacts)
	sort.Strings(names)
	for _, name := range names {
		if err := rec.write(staging, name, artifacts[name]); err != nil {
			return nil, err
		}
	}

	if err := swapInto(staging, docDir); err != nil {
		return nil, err
	}

	logger.Info("wrote shards",
		zap.String("dir", docDir),
		zap.Int("shards", len(shards)),
		zap.Int("workers", workers),
	)
	return &Summary{DocDir: docDir, Files: len(rec.hashes), Hashes: rec.hashes}, nil
}

type recorder struct {
	mu       sync.Mutex
	hashes   map[string]string
	progress func(file string, done int)
}

func (r *recorder) write(root, rel string, data []byte) error {
	if err := os.WriteFile(filepath.Join(root, rel), data, 0644); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashes[filepath.ToSlash(rel)] = fileutil.HashBytes(data)
	if r.progress != nil {
		r.progress(rel, len(r.hashes))
	}
	return nil
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	return out
}

func buildArtifacts(result *shard.Result, opts Options) (map[string][]byte, error) {
	index, err := json.MarshalIndent(BuildIndex(result, opts.Settings), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode shard index: %w", err)
	}
	navData, err := nav.Build(result, opts.Identifier).Marshal()
	if err != nil {
		return nil, err
	}
	searchData, err := search.Build(result).Marshal()
	if err != nil {
		return nil, err
	}
	return map[string][]byte{
		IndexFile:               append(index, '\n'),
		nav.NavigationIndexFile: navData,
		search.IndexFile:        searchData,
	}, nil
}

// swapInto replaces docDir with staging. An existing docDir is moved aside
// and restored if the final rename fails.
func swapInto(staging, docDir string) error {
	backup := ""
	if _, err := os.Stat(docDir); err == nil {
		backup = fmt.Sprintf("%s.previous-%d", docDir, time.Now().UnixNano())
		if err := os.Rename(docDir, backup); err != nil {
			return fmt.Errorf("failed to move previous output aside: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to inspect %s: %w", docDir, err)
	}

	if err := os.Rename(staging, docDir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, docDir)
		}
		return fmt.Errorf("failed to move staged output into place: %w", err)
	}
	if backup != "" {
		return os.RemoveAll(backup)
	}
	return nil
}

// Index is the summary artifact of a persisted shard set.
type Index struct {
	Version         string              `json:"version"`
	RunID           string              `json:"run_id"`
	CreatedAt       time.Time           `json:"created_at"`
	Source          SourceInfo          `json:"source"`
	Settings        Settings            `json:"settings"`
	Levels          []string            `json:"levels"`
	Epics           []string            `json:"epics"`
	Stories         map[string][]string `json:"stories"`
	Tasks           map[string][]string `json:"tasks"`
	CrossReferences map[string][]string `json:"cross_references"`
	Shards          []IndexEntry        `json:"shards"`
}

type SourceInfo struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Hash      string `json:"hash"`
	LineCount int    `json:"line_count"`
}

// IndexEntry lists one shard file, in hierarchy order.
type IndexEntry struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	File      string `json:"file"`
	LineCount int    `json:"line_count"`
}

// BuildIndex summarizes the hierarchy and cross-references of result.
func BuildIndex(result *shard.Result, settings Settings) *Index {
	index := &Index{
		Version:         indexVersion,
		RunID:           result.RunID,
		Settings:        settings,
		Levels:          result.Levels.Names(),
		Epics:           append([]string{}, result.Epics...),
		Stories:         make(map[string][]string),
		Tasks:           make(map[string][]string),
		CrossReferences: make(map[string][]string),
		Shards:          make([]IndexEntry, 0, len(result.Shards)),
	}
	if doc := result.Document; doc != nil {
		index.Source = SourceInfo{Path: doc.Path, Name: doc.Name, Hash: doc.Hash, LineCount: doc.LineCount}
	}

	for _, sh := range result.All() {
		if index.CreatedAt.IsZero() {
			index.CreatedAt = sh.Metadata.CreatedAt
		}
		index.Shards = append(index.Shards, IndexEntry{
			ID:        sh.ID,
			Type:      sh.Type,
			Title:     sh.Title,
			File:      filepath.ToSlash(shard.FilePath(sh.Type, sh.ID)),
			LineCount: sh.LineCount,
		})
		switch sh.Type {
		case result.Levels.Epic:
			index.Stories[sh.ID] = append([]string{}, sh.Children...)
		case result.Levels.Story:
			index.Tasks[sh.ID] = append([]string{}, sh.Children...)
		}
		if len(sh.CrossReferences) > 0 {
			refs := append([]string(nil), sh.CrossReferences...)
			sort.Strings(refs)
			index.CrossReferences[sh.ID] = refs
		}
	}
	return index
}
