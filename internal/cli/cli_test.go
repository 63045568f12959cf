package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/morozRed/docshard/internal/catalog"
	"github.com/morozRed/docshard/internal/config"
	"github.com/morozRed/docshard/internal/ignore"
	"github.com/morozRed/docshard/internal/nav"
	"github.com/morozRed/docshard/internal/output"
	"github.com/morozRed/docshard/internal/parser"
	"github.com/morozRed/docshard/internal/search"
	"github.com/morozRed/docshard/internal/state"
)

func prdDocument() string {
	var b strings.Builder
	b.WriteString("# Overview\nInvoice processing service.\n\n")
	b.WriteString("## Functional Requirements\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "REQ-%03d the system accepts invoice batch %d.\n", i+100, i)
	}
	b.WriteString("\n## Technical Design\nSee Functional Requirements for limits.\n```go\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "var limit%d = %d\n", i, i)
	}
	b.WriteString("```\n\n## Test Strategy\n- verify REQ-105 end to end\n- load test the ingest queue\n")
	return b.String()
}

func TestInitGenerateUpdateFlow(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "prd.md"), prdDocument())

	withWorkingDir(t, root, func() {
		if err := RunInit(newInitCmdForTest(), nil); err != nil {
			t.Fatalf("RunInit failed: %v", err)
		}
		assertExists(t, filepath.Join(root, config.FileName))
		assertExists(t, filepath.Join(root, ignore.FileName))

		genCmd := newGenerateCmdForTest()
		mustSetFlag(t, genCmd, "max-lines", "30")
		if err := RunGenerate(genCmd, []string{"prd.md"}); err != nil {
			t.Fatalf("RunGenerate failed: %v", err)
		}

		docDir := filepath.Join(root, "shards", "prd")
		for _, name := range []string{output.IndexFile, nav.NavigationIndexFile, search.IndexFile, state.StateFile} {
			assertExists(t, filepath.Join(docDir, name))
		}
		assertExists(t, filepath.Join(docDir, "epics"))
		assertExists(t, filepath.Join(docDir, "stories"))

		status := runStatusJSON(t, "30")
		if status.Stale {
			t.Fatalf("expected fresh output after generate, got reasons %v", status.Reasons)
		}

		updated := runUpdateJSON(t, "30")
		if !updated.Skipped {
			t.Fatalf("expected update to skip unchanged document")
		}

		mustWriteFile(t, filepath.Join(root, "prd.md"), prdDocument()+"\n## Deployment Plan\nRoll out per region.\n")
		status = runStatusJSON(t, "30")
		if !status.Stale || !containsString(status.Reasons, "source changed") {
			t.Fatalf("expected stale source after edit, got %+v", status)
		}

		updated = runUpdateJSON(t, "30")
		if updated.Skipped {
			t.Fatalf("expected update to re-shard the edited document")
		}
		if !containsString(updated.Reasons, "source changed") {
			t.Fatalf("expected update reasons to name the source change, got %v", updated.Reasons)
		}
		if updated.Epics == 0 || updated.Stories == 0 {
			t.Fatalf("expected a populated hierarchy, got %+v", updated)
		}

		status = runStatusJSON(t, "40")
		if !status.Stale || !containsString(status.Reasons, "config changed") {
			t.Fatalf("expected config change to be detected, got %+v", status)
		}
	})
}

func TestGenerateJSONSummary(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "prd.md"), prdDocument())

	withWorkingDir(t, root, func() {
		cmd := newGenerateCmdForTest()
		mustSetFlag(t, cmd, "json", "true")
		mustSetFlag(t, cmd, "max-lines", "30")
		out := captureStdout(t, func() {
			if err := RunGenerate(cmd, []string{"prd.md"}); err != nil {
				t.Fatalf("RunGenerate failed: %v", err)
			}
		})

		var summary RunSummary
		if err := json.Unmarshal([]byte(out), &summary); err != nil {
			t.Fatalf("failed to decode summary: %v\n%s", err, out)
		}
		if summary.Mode != "generate" || summary.RunID == "" {
			t.Fatalf("unexpected summary: %+v", summary)
		}
		if summary.Lines != len(parser.SplitLines(prdDocument())) {
			t.Fatalf("expected %d source lines, got %d", len(parser.SplitLines(prdDocument())), summary.Lines)
		}
		if summary.CrossReferences == 0 {
			t.Fatalf("expected cross-references between requirements, design and tests")
		}
		if summary.Files != summary.Epics+summary.Stories+summary.Tasks+3 {
			t.Fatalf("expected one file per shard plus three indices, got %+v", summary)
		}
	})
}

func TestGenerateDirectoryHonorsIgnoreFile(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "docs", "prd.md"), prdDocument())
	mustWriteFile(t, filepath.Join(root, "docs", "api.md"), "# API Reference\nGET /invoices\n")
	mustWriteFile(t, filepath.Join(root, "docs", "drafts", "idea.md"), "# Idea\nlater\n")
	mustWriteFile(t, filepath.Join(root, "docs", ignore.FileName), "drafts/\n")

	withWorkingDir(t, root, func() {
		out := captureStdout(t, func() {
			if err := RunGenerate(newGenerateCmdForTest(), []string{"docs"}); err != nil {
				t.Fatalf("RunGenerate failed: %v", err)
			}
		})
		if strings.Count(out, "generate complete") != 2 {
			t.Fatalf("expected two documents sharded, got:\n%s", out)
		}
		assertExists(t, filepath.Join(root, "shards", "prd", output.IndexFile))
		assertExists(t, filepath.Join(root, "shards", "api", output.IndexFile))
		assertNotExists(t, filepath.Join(root, "shards", "idea"))
	})
}

func TestGenerateRejectsInvalidConfig(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "prd.md"), prdDocument())
	mustWriteFile(t, filepath.Join(root, config.FileName), "hierarchyLevels: [epic, story]\n")

	withWorkingDir(t, root, func() {
		err := RunGenerate(newGenerateCmdForTest(), []string{"prd.md"})
		if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
			t.Fatalf("expected invalid configuration error, got %v", err)
		}
		assertNotExists(t, filepath.Join(root, "shards"))
	})
}

func TestGenerateMissingSource(t *testing.T) {
	withWorkingDir(t, t.TempDir(), func() {
		err := RunGenerate(newGenerateCmdForTest(), []string{"missing.md"})
		if err == nil || !strings.Contains(err.Error(), parser.ErrSourceUnreadable.Error()) {
			t.Fatalf("expected unreadable source error, got %v", err)
		}
	})
}

func TestReassembleRoundTrip(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "prd.md"), prdDocument())

	withWorkingDir(t, root, func() {
		genCmd := newGenerateCmdForTest()
		mustSetFlag(t, genCmd, "max-lines", "20")
		if err := RunGenerate(genCmd, []string{"prd.md"}); err != nil {
			t.Fatalf("RunGenerate failed: %v", err)
		}

		cmd := newReassembleCmdForTest()
		mustSetFlag(t, cmd, "out", "rebuilt.md")
		if err := RunReassemble(cmd, []string{filepath.Join("shards", "prd")}); err != nil {
			t.Fatalf("RunReassemble failed: %v", err)
		}
		rebuilt, err := os.ReadFile(filepath.Join(root, "rebuilt.md"))
		if err != nil {
			t.Fatalf("failed to read reassembled file: %v", err)
		}
		if string(rebuilt) != prdDocument() {
			t.Fatalf("reassembled document differs from source:\n%s", rebuilt)
		}
	})
}

func TestNavigationCommandsJSON(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "prd.md"), prdDocument())

	withWorkingDir(t, root, func() {
		genCmd := newGenerateCmdForTest()
		mustSetFlag(t, genCmd, "max-lines", "30")
		if err := RunGenerate(genCmd, []string{"prd.md"}); err != nil {
			t.Fatalf("RunGenerate failed: %v", err)
		}
		docDir := filepath.Join("shards", "prd")

		searchCmd := newSearchCmdForTest()
		mustSetFlag(t, searchCmd, "json", "true")
		var matches []searchMatch
		decodeJSON(t, captureStdout(t, func() {
			if err := RunSearch(searchCmd, []string{docDir, "req-105"}); err != nil {
				t.Fatalf("RunSearch failed: %v", err)
			}
		}), &matches)
		if len(matches) < 2 {
			t.Fatalf("expected REQ-105 in requirements and tests, got %+v", matches)
		}

		rankCmd := newSearchCmdForTest()
		mustSetFlag(t, rankCmd, "json", "true")
		mustSetFlag(t, rankCmd, "rank", "true")
		var ranked []searchMatch
		decodeJSON(t, captureStdout(t, func() {
			if err := RunSearch(rankCmd, []string{docDir, "Test", "Strategy"}); err != nil {
				t.Fatalf("RunSearch --rank failed: %v", err)
			}
		}), &ranked)
		if len(ranked) == 0 || ranked[0].Score <= 0 {
			t.Fatalf("expected ranked matches, got %+v", ranked)
		}

		epicCmd := newSearchCmdForTest()
		mustSetFlag(t, epicCmd, "json", "true")
		mustSetFlag(t, epicCmd, "type", "epic")
		var epics []searchMatch
		decodeJSON(t, captureStdout(t, func() {
			if err := RunSearch(epicCmd, []string{docDir, "req-105"}); err != nil {
				t.Fatalf("RunSearch --type failed: %v", err)
			}
		}), &epics)
		for _, match := range epics {
			if match.Type != "epic" {
				t.Fatalf("expected only epic matches, got %+v", match)
			}
		}

		goCmd := newSearchCmdForTest()
		mustSetFlag(t, goCmd, "json", "true")
		mustSetFlag(t, goCmd, "rank", "true")
		mustSetFlag(t, goCmd, "context", "lang:go")
		var goMatches []searchMatch
		decodeJSON(t, captureStdout(t, func() {
			if err := RunSearch(goCmd, []string{docDir, "var"}); err != nil {
				t.Fatalf("RunSearch --context failed: %v", err)
			}
		}), &goMatches)
		if len(goMatches) == 0 {
			t.Fatalf("expected shards tagged lang:go to match var")
		}

		showCmd := newShowCmdForTest()
		mustSetFlag(t, showCmd, "json", "true")
		var view shardView
		decodeJSON(t, captureStdout(t, func() {
			if err := RunShow(showCmd, []string{docDir, "Test Strategy"}); err != nil {
				t.Fatalf("RunShow failed: %v", err)
			}
		}), &view)
		if view.Title != "Test Strategy" || !strings.Contains(view.Content, "REQ-105") {
			t.Fatalf("unexpected shard view: %+v", view)
		}
		if len(view.Breadcrumb) == 0 {
			t.Fatalf("expected breadcrumb for a story, got %+v", view)
		}

		pathCmd := newJSONCmdForTest()
		var path []nav.ShardRecord
		decodeJSON(t, captureStdout(t, func() {
			if err := RunPath(pathCmd, []string{docDir, view.Breadcrumb[0].ID, view.ID}); err != nil {
				t.Fatalf("RunPath failed: %v", err)
			}
		}), &path)
		if len(path) != 2 || path[1].ID != view.ID {
			t.Fatalf("expected direct parent to child path, got %+v", path)
		}

		traceCmd := newTraceCmdForTest()
		mustSetFlag(t, traceCmd, "json", "true")
		var hops []nav.TraceHop
		decodeJSON(t, captureStdout(t, func() {
			if err := RunTrace(traceCmd, []string{docDir, view.ID}); err != nil {
				t.Fatalf("RunTrace failed: %v", err)
			}
		}), &hops)
		if len(view.Related) > 0 && len(hops) == 0 {
			t.Fatalf("expected trace hops for a cross-referenced shard")
		}

		tree := captureStdout(t, func() {
			if err := RunTree(&cobra.Command{}, []string{docDir}); err != nil {
				t.Fatalf("RunTree failed: %v", err)
			}
		})
		if !strings.Contains(tree, "Test Strategy") || !strings.Contains(tree, "requirements") {
			t.Fatalf("expected tree to list epics and stories, got:\n%s", tree)
		}
	})
}

func TestDoctorReportsHealthyAndBrokenOutput(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "prd.md"), prdDocument())

	withWorkingDir(t, root, func() {
		genCmd := newGenerateCmdForTest()
		mustSetFlag(t, genCmd, "max-lines", "30")
		if err := RunGenerate(genCmd, []string{"prd.md"}); err != nil {
			t.Fatalf("RunGenerate failed: %v", err)
		}
		docDir := filepath.Join("shards", "prd")

		summary := runDoctorJSON(t, docDir)
		if !summary.Healthy {
			t.Fatalf("expected healthy output, got %+v", summary)
		}

		index, err := output.LoadIndex(docDir)
		if err != nil {
			t.Fatalf("LoadIndex failed: %v", err)
		}
		if err := os.Remove(filepath.Join(docDir, index.Shards[len(index.Shards)-1].File)); err != nil {
			t.Fatalf("failed to remove shard file: %v", err)
		}
		summary = runDoctorJSON(t, docDir)
		if summary.Healthy || len(summary.Checks) == 0 || summary.Checks[0].OK {
			t.Fatalf("expected missing shard file to be reported, got %+v", summary)
		}

		mustWriteFile(t, filepath.Join(root, "prd.md"), prdDocument()+"extra\n")
		if err := RunGenerate(genCmd, []string{"prd.md"}); err != nil {
			t.Fatalf("RunGenerate failed: %v", err)
		}
		mustWriteFile(t, filepath.Join(root, "prd.md"), prdDocument())
		summary = runDoctorJSON(t, docDir)
		if summary.Healthy {
			t.Fatalf("expected changed source to be reported")
		}
	})
}

func TestExportWritesCatalogAndJSONL(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "prd.md"), prdDocument())

	withWorkingDir(t, root, func() {
		genCmd := newGenerateCmdForTest()
		mustSetFlag(t, genCmd, "max-lines", "30")
		if err := RunGenerate(genCmd, []string{"prd.md"}); err != nil {
			t.Fatalf("RunGenerate failed: %v", err)
		}
		docDir := filepath.Join("shards", "prd")

		cmd := newExportCmdForTest()
		mustSetFlag(t, cmd, "db", "catalog.db")
		mustSetFlag(t, cmd, "jsonl", "shards.jsonl")
		if err := RunExport(cmd, []string{docDir}); err != nil {
			t.Fatalf("RunExport failed: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(root, "shards.jsonl"))
		if err != nil {
			t.Fatalf("failed to read jsonl: %v", err)
		}
		index, err := output.LoadIndex(docDir)
		if err != nil {
			t.Fatalf("LoadIndex failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != len(index.Shards) {
			t.Fatalf("expected %d jsonl records, got %d", len(index.Shards), len(lines))
		}
		var first ExportRecord
		decodeJSON(t, lines[0], &first)
		if first.ID != index.Shards[0].ID {
			t.Fatalf("expected records in hierarchy order, got %s first", first.ID)
		}

		store, err := catalog.Open(filepath.Join(root, "catalog.db"), nil)
		if err != nil {
			t.Fatalf("catalog.Open failed: %v", err)
		}
		defer store.Close()
		counts, err := store.Counts(commandContext(nil), "prd")
		if err != nil {
			t.Fatalf("Counts failed: %v", err)
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		if total != len(index.Shards) {
			t.Fatalf("expected %d catalog rows, got %v", len(index.Shards), counts)
		}

		if err := RunExport(newExportCmdForTest(), []string{docDir}); err == nil {
			t.Fatalf("expected export without targets to fail")
		}
	})
}

func TestNewRootCommandRegistersCommands(t *testing.T) {
	root := NewRootCommand("test")
	for _, name := range []string{"init", "generate", "update", "watch", "status", "doctor", "show", "search", "tree", "path", "trace", "reassemble", "export", "install-hook", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Fatalf("expected %s command to be registered", name)
		}
	}
}

func runStatusJSON(t *testing.T, maxLines string) RunSummary {
	t.Helper()
	cmd := newStatusCmdForTest()
	mustSetFlag(t, cmd, "json", "true")
	mustSetFlag(t, cmd, "max-lines", maxLines)
	var summary RunSummary
	decodeJSON(t, captureStdout(t, func() {
		if err := RunStatus(cmd, []string{"prd.md"}); err != nil {
			t.Fatalf("RunStatus failed: %v", err)
		}
	}), &summary)
	return summary
}

func runUpdateJSON(t *testing.T, maxLines string) RunSummary {
	t.Helper()
	cmd := newUpdateCmdForTest()
	mustSetFlag(t, cmd, "json", "true")
	mustSetFlag(t, cmd, "max-lines", maxLines)
	var summary RunSummary
	decodeJSON(t, captureStdout(t, func() {
		if err := RunUpdate(cmd, []string{"prd.md"}); err != nil {
			t.Fatalf("RunUpdate failed: %v", err)
		}
	}), &summary)
	return summary
}

func runDoctorJSON(t *testing.T, docDir string) DoctorSummary {
	t.Helper()
	cmd := newJSONCmdForTest()
	var summary DoctorSummary
	decodeJSON(t, captureStdout(t, func() {
		if err := RunDoctor(cmd, []string{docDir}); err != nil {
			t.Fatalf("RunDoctor failed: %v", err)
		}
	}), &summary)
	return summary
}

func newShardCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	addShardFlags(cmd)
	cmd.Flags().Bool("json", false, "")
	return cmd
}

func newGenerateCmdForTest() *cobra.Command { return newShardCmdForTest() }
func newUpdateCmdForTest() *cobra.Command   { return newShardCmdForTest() }
func newStatusCmdForTest() *cobra.Command   { return newShardCmdForTest() }

func TestInitWritesLLMIntegrationFiles(t *testing.T) {
	root := t.TempDir()

	withWorkingDir(t, root, func() {
		cmd := newInitCmdForTest()
		mustSetFlag(t, cmd, "llm", "codex,cursor")
		if err := RunInit(cmd, nil); err != nil {
			t.Fatalf("RunInit failed: %v", err)
		}
	})

	assertExists(t, filepath.Join(root, "CONTEXT.md"))
	assertExists(t, filepath.Join(root, "AGENTS.md"))
	assertExists(t, filepath.Join(root, ".cursor", "rules", "docshard-shards.mdc"))
	assertNotExists(t, filepath.Join(root, "CLAUDE.md"))

	withWorkingDir(t, root, func() {
		cmd := newInitCmdForTest()
		mustSetFlag(t, cmd, "llm", "copilot")
		if err := RunInit(cmd, nil); err == nil {
			t.Fatalf("expected unsupported provider error")
		}
	})
}

func newInitCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("force", false, "")
	cmd.Flags().String("llm", "", "")
	return cmd
}

func newJSONCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", true, "")
	return cmd
}

func newSearchCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", false, "")
	cmd.Flags().Bool("rank", false, "")
	cmd.Flags().Int("limit", 10, "")
	cmd.Flags().String("type", "", "")
	cmd.Flags().String("context", "", "")
	return cmd
}

func newShowCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", false, "")
	cmd.Flags().Bool("plain", false, "")
	return cmd
}

func newTraceCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Int("depth", 2, "")
	cmd.Flags().Bool("json", false, "")
	return cmd
}

func newReassembleCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().StringP("out", "o", "", "")
	return cmd
}

func newExportCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("db", "", "")
	cmd.Flags().String("jsonl", "", "")
	return cmd
}

func withWorkingDir(t *testing.T, dir string, fn func()) {
	t.Helper()

	originalWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get cwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer func() {
		_ = os.Chdir(originalWD)
	}()

	fn()
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func assertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected %s to not exist", path)
	} else if !os.IsNotExist(err) {
		t.Fatalf("expected %s to be absent: %v", path, err)
	}
}

func mustSetFlag(t *testing.T, cmd *cobra.Command, key, value string) {
	t.Helper()
	if err := cmd.Flags().Set(key, value); err != nil {
		t.Fatalf("failed to set --%s=%s: %v", key, value, err)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	original := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create stdout pipe: %v", err)
	}
	os.Stdout = writer
	defer func() {
		os.Stdout = original
		_ = writer.Close()
		_ = reader.Close()
	}()

	done := make(chan []byte)
	go func() {
		data, _ := io.ReadAll(reader)
		done <- data
	}()

	fn()

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close stdout writer: %v", err)
	}
	return string(<-done)
}

func decodeJSON(t *testing.T, data string, target any) {
	t.Helper()
	if err := json.Unmarshal([]byte(data), target); err != nil {
		t.Fatalf("failed to decode JSON: %v\n%s", err, data)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}
