package cli

import (
	"fmt"
	"strings"

	"github.com/morozRed/docshard/internal/fileutil"
	"github.com/morozRed/docshard/internal/shard"
	"github.com/morozRed/docshard/internal/ui"
)

type RunSummary struct {
	Mode            string   `json:"mode"`
	Source          string   `json:"source"`
	OutputDir       string   `json:"output_dir,omitempty"`
	RunID           string   `json:"run_id,omitempty"`
	Lines           int      `json:"lines"`
	Epics           int      `json:"epics"`
	Stories         int      `json:"stories"`
	Tasks           int      `json:"tasks"`
	CrossReferences int      `json:"cross_references"`
	Hubs            []string `json:"hubs,omitempty"`
	Files           int      `json:"files"`
	Rewritten       int      `json:"rewritten"`
	Removed         int      `json:"removed"`
	Skipped         bool     `json:"skipped"`
	Stale           bool     `json:"stale"`
	DurationMS      int64    `json:"duration_ms"`
	Reasons         []string `json:"reasons,omitempty"`
	ChangedOutputs  []string `json:"changed_outputs,omitempty"`
	MissingOutputs  []string `json:"missing_outputs,omitempty"`
}

type DoctorCheck struct {
	Name     string   `json:"name"`
	OK       bool     `json:"ok"`
	Problems []string `json:"problems,omitempty"`
}

type DoctorSummary struct {
	Mode        string        `json:"mode"`
	DocDir      string        `json:"doc_dir"`
	Source      string        `json:"source,omitempty"`
	Healthy     bool          `json:"healthy"`
	Shards      int           `json:"shards"`
	Checks      []DoctorCheck `json:"checks"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

// summarizeRun fills the shard counts of a finished run.
func summarizeRun(mode string, run *DocumentRun, previousOutputs map[string]string) RunSummary {
	levels := run.Result.Levels
	counts := run.Result.Counts()
	summary := RunSummary{
		Mode:            mode,
		Source:          run.Document.Path,
		OutputDir:       run.Written.DocDir,
		RunID:           run.Result.RunID,
		Lines:           run.Document.LineCount,
		Epics:           counts[levels.Epic],
		Stories:         counts[levels.Story],
		Tasks:           counts[levels.Task],
		CrossReferences: run.Result.Graph.EdgeCount(),
		Hubs:            hubTitles(run.Result, maxHubs),
		Files:           run.Written.Files,
	}
	summary.Rewritten, summary.Removed = CountRewrittenOutputs(previousOutputs, run.Written.Hashes)
	return summary
}

const maxHubs = 3

// hubTitles names the most cross-referenced shards of a run.
func hubTitles(result *shard.Result, n int) []string {
	if result.Graph == nil {
		return nil
	}
	out := make([]string, 0, n)
	for _, node := range result.Graph.TopNodes(n) {
		out = append(out, fmt.Sprintf("%s (%s)", node.Title, node.ID))
	}
	return out
}

func PrintRunSummary(summary RunSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(summary)
	}

	switch {
	case summary.Mode == "status":
		status := ui.RenderPass("up to date")
		if summary.Stale {
			status = ui.RenderWarn("stale") + " (" + strings.Join(summary.Reasons, ", ") + ")"
		}
		fmt.Printf("status: %s\n", status)
		fmt.Printf("source: %s\n", summary.Source)
		if summary.OutputDir != "" {
			fmt.Printf("output: %s\n", summary.OutputDir)
		}
		if len(summary.ChangedOutputs) > 0 {
			fmt.Printf("edited shard files (%d): %s\n", len(summary.ChangedOutputs), SummarizePaths(summary.ChangedOutputs, 8))
		}
		if len(summary.MissingOutputs) > 0 {
			fmt.Printf("missing shard files (%d): %s\n", len(summary.MissingOutputs), SummarizePaths(summary.MissingOutputs, 8))
		}
		return nil
	case summary.Skipped:
		fmt.Printf("%s: up to date (%s)\n", summary.Mode, summary.OutputDir)
		return nil
	}

	fmt.Printf("%s complete in %dms\n", summary.Mode, summary.DurationMS)
	fmt.Printf("source: %s (%d lines)\n", summary.Source, summary.Lines)
	fmt.Printf("output: %s (run %s)\n", summary.OutputDir, summary.RunID)
	fmt.Printf("shards: epics=%d stories=%d tasks=%d cross_references=%d\n",
		summary.Epics, summary.Stories, summary.Tasks, summary.CrossReferences)
	if len(summary.Hubs) > 0 {
		fmt.Printf("hubs: %s\n", strings.Join(summary.Hubs, ", "))
	}
	fmt.Printf("files: written=%d rewritten=%d removed=%d\n", summary.Files, summary.Rewritten, summary.Removed)
	if len(summary.Reasons) > 0 {
		fmt.Printf("reasons: %s\n", strings.Join(summary.Reasons, "; "))
	}
	return nil
}

func PrintDoctorSummary(summary DoctorSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(summary)
	}

	status := ui.RenderFail("issues")
	if summary.Healthy {
		status = ui.RenderPass("ok")
	}
	fmt.Printf("doctor: %s\n", status)
	fmt.Printf("shards: %d in %s\n", summary.Shards, summary.DocDir)
	for _, check := range summary.Checks {
		icon := ui.RenderPass(ui.IconPass)
		if !check.OK {
			icon = ui.RenderFail(ui.IconFail)
		}
		fmt.Printf("%s %s\n", icon, check.Name)
		for _, problem := range check.Problems {
			fmt.Printf("    %s\n", ui.RenderMuted(problem))
		}
	}
	for _, suggestion := range summary.Suggestions {
		fmt.Printf("next: %s\n", suggestion)
	}
	return nil
}

func CloneOutputHashes(input map[string]string) map[string]string {
	out := make(map[string]string, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}

// CountRewrittenOutputs compares output hashes across a run. Rewritten files
// are new or changed in after; removed files exist only in before.
func CountRewrittenOutputs(before, after map[string]string) (rewritten, removed int) {
	for file, hash := range after {
		if previous, ok := before[file]; !ok || previous != hash {
			rewritten++
		}
	}
	for file := range before {
		if _, ok := after[file]; !ok {
			removed++
		}
	}
	return rewritten, removed
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}
