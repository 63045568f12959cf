package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/morozRed/docshard/internal/parser"
	"github.com/morozRed/docshard/internal/shard"
)

// LoadIndex reads index.json from a document directory.
func LoadIndex(docDir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(docDir, IndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no %s in %s", ErrShardNotFound, IndexFile, docDir)
		}
		return nil, fmt.Errorf("failed to read shard index: %w", err)
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to decode shard index: %w", err)
	}
	return &index, nil
}

// ReadShard loads one shard file named by an index entry.
func ReadShard(docDir string, entry IndexEntry) (*shard.Shard, error) {
	path := filepath.Join(docDir, filepath.FromSlash(entry.File))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrShardNotFound, entry.ID, entry.File)
		}
		return nil, fmt.Errorf("failed to read shard %s: %w", entry.ID, err)
	}
	sh, err := DecodeShard(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode shard %s: %w", entry.File, err)
	}
	if sh.ID != entry.ID {
		return nil, fmt.Errorf("failed to decode shard %s: id %q does not match index", entry.File, sh.ID)
	}
	return sh, nil
}

// EntriesByID maps every shard id in the index to its entry.
func (idx *Index) EntriesByID() map[string]IndexEntry {
	entries := make(map[string]IndexEntry, len(idx.Shards))
	for _, entry := range idx.Shards {
		entries[entry.ID] = entry
	}
	return entries
}

// Entry finds the index entry of a shard id.
func (idx *Index) Entry(id string) (IndexEntry, bool) {
	for _, entry := range idx.Shards {
		if entry.ID == id {
			return entry, true
		}
	}
	return IndexEntry{}, false
}

// Load reconstructs the shard set of a document directory. Cross-references
// are taken from the files as written.
func Load(docDir string) (*shard.Result, *Index, error) {
	index, err := LoadIndex(docDir)
	if err != nil {
		return nil, nil, err
	}
	levels, err := shard.ParseLevels(index.Levels)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load %s: %w", docDir, err)
	}

	shards := make([]*shard.Shard, 0, len(index.Shards))
	for _, entry := range index.Shards {
		sh, err := ReadShard(docDir, entry)
		if err != nil {
			return nil, nil, err
		}
		shards = append(shards, sh)
	}
	result := shard.NewLoadedResult(levels, index.RunID, index.Epics, shards)
	result.Document = &parser.Document{
		Path:      index.Source.Path,
		Name:      index.Source.Name,
		Hash:      index.Source.Hash,
		LineCount: index.Source.LineCount,
	}
	return result, index, nil
}
