package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/morozRed/docshard/internal/fileutil"
)

const (
	StateFile           = ".state.json"
	CurrentStateVersion = "1"
)

// State records the inputs and outputs of the last sharding run of one
// document.
type State struct {
	Version      string            `json:"version"`
	Source       string            `json:"source"`
	SourceHash   string            `json:"source_hash"`
	ConfigHash   string            `json:"config_hash"`
	RunID        string            `json:"run_id"`
	UpdatedAt    time.Time         `json:"updated_at"`
	OutputHashes map[string]string `json:"output_hashes,omitempty"`
}

// Staleness explains why a document needs to be sharded again.
type Staleness struct {
	NeverRun      bool `json:"never_run"`
	SourceChanged bool `json:"source_changed"`
	ConfigChanged bool `json:"config_changed"`
}

// Stale reports whether any reason applies.
func (s Staleness) Stale() bool {
	return s.NeverRun || s.SourceChanged || s.ConfigChanged
}

// Reasons lists the applying reasons in a fixed order.
func (s Staleness) Reasons() []string {
	reasons := make([]string, 0, 3)
	if s.NeverRun {
		reasons = append(reasons, "never sharded")
	}
	if s.SourceChanged {
		reasons = append(reasons, "source changed")
	}
	if s.ConfigChanged {
		reasons = append(reasons, "config changed")
	}
	return reasons
}

// NewState creates a new empty state
func NewState() *State {
	return &State{
		Version:      CurrentStateVersion,
		OutputHashes: make(map[string]string),
	}
}

// Load reads the state file of a document directory. A missing file yields
// an empty state.
func Load(docDir string) (*State, error) {
	path := filepath.Join(docDir, StateFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode state %s: %w", path, err)
	}

	migrateState(&state)

	return &state, nil
}

// Save writes the state file atomically.
func (s *State) Save(docDir string) error {
	if s.Version == "" {
		s.Version = CurrentStateVersion
	}
	if s.OutputHashes == nil {
		s.OutputHashes = make(map[string]string)
	}

	s.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return fileutil.WriteAtomic(filepath.Join(docDir, StateFile), append(data, '\n'))
}

// Check compares the recorded run with the current inputs.
func (s *State) Check(sourceHash, configHash string) Staleness {
	if s.SourceHash == "" {
		return Staleness{NeverRun: true}
	}
	return Staleness{
		SourceChanged: s.SourceHash != sourceHash,
		ConfigChanged: s.ConfigHash != configHash,
	}
}

// SetOutputHash records the content hash for a generated output file.
func (s *State) SetOutputHash(path, hash string) {
	if s.OutputHashes == nil {
		s.OutputHashes = make(map[string]string)
	}
	s.OutputHashes[path] = hash
}

// ReplaceOutputHashes swaps in the hashes of a fresh write.
func (s *State) ReplaceOutputHashes(hashes map[string]string) {
	s.OutputHashes = make(map[string]string, len(hashes))
	for path, hash := range hashes {
		s.SetOutputHash(path, hash)
	}
}

// ChangedOutputs compares recorded output hashes with the files on disk and
// returns the modified and the missing files, sorted.
func (s *State) ChangedOutputs(current map[string]string) (changed, missing []string) {
	changed = make([]string, 0)
	missing = make([]string, 0)
	for path, hash := range s.OutputHashes {
		currentHash, ok := current[path]
		switch {
		case !ok:
			missing = append(missing, path)
		case currentHash != hash:
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	sort.Strings(missing)
	return changed, missing
}

func migrateState(s *State) {
	if s.OutputHashes == nil {
		s.OutputHashes = make(map[string]string)
	}
	if s.Version == "" {
		s.Version = CurrentStateVersion
	}
}
