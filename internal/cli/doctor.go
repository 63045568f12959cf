package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/morozRed/docshard/internal/chunk"
	"github.com/morozRed/docshard/internal/fileutil"
	"github.com/morozRed/docshard/internal/output"
	"github.com/morozRed/docshard/internal/shard"
	"github.com/morozRed/docshard/internal/state"
)

// maxProblemsPerCheck bounds the detail printed for one failing check.
const maxProblemsPerCheck = 8

func RunDoctor(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("doctor requires a shard directory")
	}
	docDir := args[0]
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	summary := DoctorSummary{Mode: "doctor", DocDir: docDir}

	index, err := output.LoadIndex(docDir)
	if err != nil {
		summary.Checks = append(summary.Checks, DoctorCheck{Name: "shard index", Problems: []string{err.Error()}})
		summary.Suggestions = append(summary.Suggestions, "run docshard generate <document>")
		return PrintDoctorSummary(summary, asJSON)
	}
	summary.Source = index.Source.Path
	summary.Shards = len(index.Shards)

	files := checkShardFiles(docDir, index)
	summary.Checks = append(summary.Checks, files)
	if !files.OK {
		summary.Suggestions = append(summary.Suggestions, "run docshard update "+index.Source.Path)
		return PrintDoctorSummary(summary, asJSON)
	}

	result, _, err := output.Load(docDir)
	if err != nil {
		summary.Checks = append(summary.Checks, DoctorCheck{Name: "shard files readable", Problems: []string{err.Error()}})
		return PrintDoctorSummary(summary, asJSON)
	}

	summary.Checks = append(summary.Checks,
		checkReferences(result),
		checkSymmetry(result),
		checkHierarchy(result),
		checkLineCounts(result),
		checkCoverage(result, index.Source.LineCount),
		checkSizeBound(result, index.Settings),
		checkSource(docDir),
	)

	summary.Healthy = true
	for _, check := range summary.Checks {
		if !check.OK {
			summary.Healthy = false
		}
	}
	if !summary.Healthy {
		summary.Suggestions = append(summary.Suggestions, "run docshard generate "+index.Source.Path)
	}
	summary.Suggestions = fileutil.DedupeStrings(summary.Suggestions)
	return PrintDoctorSummary(summary, asJSON)
}

func newCheck(name string, problems []string) DoctorCheck {
	sort.Strings(problems)
	if len(problems) > maxProblemsPerCheck {
		more := len(problems) - maxProblemsPerCheck
		problems = append(problems[:maxProblemsPerCheck], fmt.Sprintf("... %d more", more))
	}
	return DoctorCheck{Name: name, OK: len(problems) == 0, Problems: problems}
}

func checkShardFiles(docDir string, index *output.Index) DoctorCheck {
	problems := make([]string, 0)
	for _, entry := range index.Shards {
		if _, err := os.Stat(filepath.Join(docDir, entry.File)); err != nil {
			problems = append(problems, fmt.Sprintf("%s: missing %s", entry.ID, entry.File))
		}
	}
	return newCheck("shard files present", problems)
}

func checkReferences(result *shard.Result) DoctorCheck {
	problems := make([]string, 0)
	for _, sh := range result.All() {
		if sh.Parent != "" {
			if _, ok := result.Get(sh.Parent); !ok {
				problems = append(problems, fmt.Sprintf("%s: unknown parent %s", sh.ID, sh.Parent))
			}
		}
		for _, id := range sh.Children {
			if _, ok := result.Get(id); !ok {
				problems = append(problems, fmt.Sprintf("%s: unknown child %s", sh.ID, id))
			}
		}
		for _, id := range sh.CrossReferences {
			if _, ok := result.Get(id); !ok {
				problems = append(problems, fmt.Sprintf("%s: unknown cross-reference %s", sh.ID, id))
			}
		}
	}
	return newCheck("references resolve", problems)
}

func checkSymmetry(result *shard.Result) DoctorCheck {
	problems := make([]string, 0)
	for _, sh := range result.All() {
		for _, id := range sh.CrossReferences {
			other, ok := result.Get(id)
			if !ok {
				continue
			}
			if !containsString(other.CrossReferences, sh.ID) {
				problems = append(problems, fmt.Sprintf("%s -> %s has no reverse link", sh.ID, id))
			}
		}
	}
	return newCheck("cross-references symmetric", problems)
}

func checkHierarchy(result *shard.Result) DoctorCheck {
	levels := result.Levels
	parentType := map[string]string{levels.Story: levels.Epic, levels.Task: levels.Story}
	problems := make([]string, 0)

	for _, id := range result.Epics {
		if epic, ok := result.Get(id); ok && epic.Type != levels.Epic {
			problems = append(problems, fmt.Sprintf("%s: listed as %s but typed %s", id, levels.Epic, epic.Type))
		}
	}
	for _, sh := range result.All() {
		if sh.Type == levels.Epic {
			if sh.Parent != "" {
				problems = append(problems, fmt.Sprintf("%s: %s with parent %s", sh.ID, levels.Epic, sh.Parent))
			}
		} else if parent, ok := result.Get(sh.Parent); !ok {
			problems = append(problems, fmt.Sprintf("%s: %s without parent", sh.ID, sh.Type))
		} else {
			if want, known := parentType[sh.Type]; !known || parent.Type != want {
				problems = append(problems, fmt.Sprintf("%s: %s under %s", sh.ID, sh.Type, parent.Type))
			}
			if !containsString(parent.Children, sh.ID) {
				problems = append(problems, fmt.Sprintf("%s: not listed by parent %s", sh.ID, parent.ID))
			}
		}
		for _, childID := range sh.Children {
			if child, ok := result.Get(childID); ok && child.Parent != sh.ID {
				problems = append(problems, fmt.Sprintf("%s: child %s points to %s", sh.ID, childID, child.Parent))
			}
		}
	}
	return newCheck("hierarchy consistent", problems)
}

func checkLineCounts(result *shard.Result) DoctorCheck {
	problems := make([]string, 0)
	for _, sh := range result.All() {
		if got := len(sh.Lines()); got != sh.LineCount {
			problems = append(problems, fmt.Sprintf("%s: line_count %d, content has %d lines", sh.ID, sh.LineCount, got))
		}
	}
	return newCheck("line counts match content", problems)
}

// checkCoverage compares the leaf shards, which reassemble into the
// document, with the recorded source length.
func checkCoverage(result *shard.Result, sourceLines int) DoctorCheck {
	covered := 0
	for _, leaf := range result.Leaves() {
		covered += leaf.LineCount
	}
	if covered != sourceLines {
		return newCheck("leaves cover source", []string{fmt.Sprintf("leaf shards hold %d lines, source has %d", covered, sourceLines)})
	}
	return newCheck("leaves cover source", nil)
}

// checkSizeBound allows oversized shards only when they hold one
// indivisible block and structure-aware splitting was on.
func checkSizeBound(result *shard.Result, settings output.Settings) DoctorCheck {
	problems := make([]string, 0)
	if settings.MaxLines < 1 {
		return newCheck("size bound", []string{"index records no max_lines"})
	}
	for _, sh := range result.All() {
		if sh.LineCount <= settings.MaxLines {
			continue
		}
		if settings.PreserveContext && chunk.IsSingleBlock(sh.Lines()) {
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: %d lines exceeds %d", sh.ID, sh.LineCount, settings.MaxLines))
	}
	return newCheck("size bound", problems)
}

// checkSource compares the source document with the hash recorded at the
// last run.
func checkSource(docDir string) DoctorCheck {
	const name = "source up to date"
	st, err := state.Load(docDir)
	if err != nil {
		return newCheck(name, []string{err.Error()})
	}
	if st.Source == "" {
		return newCheck(name, []string{"no run state recorded"})
	}
	hash, err := fileutil.HashFile(st.Source)
	if err != nil {
		return newCheck(name, []string{fmt.Sprintf("source unreadable: %v", err)})
	}
	if hash != st.SourceHash {
		return newCheck(name, []string{st.Source + " changed since run " + st.RunID})
	}
	return newCheck(name, nil)
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
