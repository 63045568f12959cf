package state

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCheckReportsReasons(t *testing.T) {
	s := NewState()
	if got := s.Check("a", "c"); !got.NeverRun || !got.Stale() {
		t.Fatalf("expected a fresh state to be stale, got %+v", got)
	}

	s.SourceHash = "a"
	s.ConfigHash = "c"
	if got := s.Check("a", "c"); got.Stale() {
		t.Fatalf("expected unchanged inputs to be current, got %+v", got)
	}

	got := s.Check("b", "d")
	want := []string{"source changed", "config changed"}
	if !reflect.DeepEqual(got.Reasons(), want) {
		t.Fatalf("expected reasons %v, got %v", want, got.Reasons())
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewState()
	s.Source = "docs/prd.md"
	s.SourceHash = "abc"
	s.ConfigHash = "def"
	s.RunID = "run-1"
	s.SetOutputHash("index.json", "h1")
	if err := s.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.SourceHash != "abc" || loaded.RunID != "run-1" {
		t.Fatalf("unexpected state %+v", loaded)
	}
	if hash := loaded.OutputHashes["index.json"]; hash != "h1" {
		t.Fatalf("expected output hash h1, got %q", hash)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at to be set")
	}
}

func TestLoadMissingAndCorruptState(t *testing.T) {
	fresh, err := Load(t.TempDir())
	if err != nil || fresh.Version != CurrentStateVersion {
		t.Fatalf("expected fresh state, got %+v %v", fresh, err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, StateFile), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestChangedOutputs(t *testing.T) {
	s := NewState()
	s.ReplaceOutputHashes(map[string]string{"a.md": "1", "b.md": "2", "c.md": "3"})

	changed, missing := s.ChangedOutputs(map[string]string{"a.md": "1", "b.md": "x", "d.md": "4"})
	if !reflect.DeepEqual(changed, []string{"b.md"}) {
		t.Fatalf("unexpected changed %v", changed)
	}
	if !reflect.DeepEqual(missing, []string{"c.md"}) {
		t.Fatalf("unexpected missing %v", missing)
	}
}

func TestMigrateStateInitializesMaps(t *testing.T) {
	s := &State{}
	migrateState(s)
	if s.OutputHashes == nil || s.Version != CurrentStateVersion {
		t.Fatalf("expected migrated state, got %+v", s)
	}
}
