package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/docshard/internal/fileutil"
)

const (
	HookStart = "# >>> docshard update hook >>>"
	HookEnd   = "# <<< docshard update hook <<<"
)

func RunInstallHook(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}

	repoRoot, gitDir, err := ResolveGitPaths(rootPath)
	if err != nil {
		return err
	}

	documents := make([]string, 0, len(args))
	for _, arg := range args {
		document, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", arg, err)
		}
		relDocument, err := filepath.Rel(repoRoot, document)
		if err != nil || strings.HasPrefix(relDocument, "..") {
			return fmt.Errorf("%s is outside the repository %s", arg, repoRoot)
		}
		documents = append(documents, filepath.ToSlash(relDocument))
	}

	hookPath := filepath.Join(gitDir, "hooks", "pre-commit")
	if err := os.MkdirAll(filepath.Dir(hookPath), 0755); err != nil {
		return fmt.Errorf("failed to create hook directory: %w", err)
	}

	existing := ""
	if data, err := os.ReadFile(hookPath); err == nil {
		existing = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read existing hook: %w", err)
	}

	updated := UpsertHook(existing, repoRoot, documents)
	if err := os.WriteFile(hookPath, []byte(updated), 0755); err != nil {
		return fmt.Errorf("failed to write hook: %w", err)
	}

	fmt.Printf("Installed pre-commit hook at %s (%s)\n", hookPath, strings.Join(documents, ", "))
	return nil
}

func ResolveGitPaths(workingDir string) (repoRoot string, gitDir string, err error) {
	repoRootOut, err := exec.Command("git", "-C", workingDir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", "", fmt.Errorf("not inside a git repository")
	}

	gitDirOut, err := exec.Command("git", "-C", workingDir, "rev-parse", "--git-dir").Output()
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve git directory: %w", err)
	}

	repoRoot = strings.TrimSpace(string(repoRootOut))
	gitDir = strings.TrimSpace(string(gitDirOut))
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(repoRoot, gitDir)
	}
	return repoRoot, gitDir, nil
}

// UpsertHook installs or replaces the docshard block. Documents already
// named by an existing block are kept.
func UpsertHook(existingHook, repoRoot string, documents []string) string {
	start := strings.Index(existingHook, HookStart)
	end := strings.Index(existingHook, HookEnd)
	if start >= 0 && end >= start {
		documents = append(hookDocuments(existingHook[start:end]), documents...)
	}
	block := BuildHookBlock(repoRoot, fileutil.DedupeStrings(documents))

	if existingHook == "" {
		return "#!/bin/sh\n\n" + block + "\n"
	}

	if start >= 0 && end >= start {
		end += len(HookEnd)
		updated := existingHook[:start] + block + existingHook[end:]
		return fileutil.EnsureTrailingNewline(updated)
	}

	base := fileutil.EnsureTrailingNewline(existingHook)
	if !strings.HasPrefix(base, "#!") {
		base = "#!/bin/sh\n" + base
	}
	return base + "\n" + block + "\n"
}

func BuildHookBlock(repoRoot string, documents []string) string {
	var b strings.Builder
	b.WriteString(HookStart + "\n")
	fmt.Fprintf(&b, "repo_root=%q\n", repoRoot)
	b.WriteString("if command -v docshard >/dev/null 2>&1; then\n")
	for _, document := range documents {
		fmt.Fprintf(&b, "  (cd \"$repo_root\" && docshard update %q) || exit 1\n", document)
	}
	b.WriteString("fi\n")
	b.WriteString(HookEnd)
	return b.String()
}

var hookUpdateLine = regexp.MustCompile(`^\(cd "\$repo_root" && docshard update ("(?:[^"\\]|\\.)*")\) \|\| exit 1$`)

// hookDocuments extracts the documents named by an existing block.
func hookDocuments(block string) []string {
	documents := make([]string, 0)
	for _, line := range strings.Split(block, "\n") {
		match := hookUpdateLine.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		document, err := strconv.Unquote(match[1])
		if err != nil || document == "" {
			continue
		}
		documents = append(documents, document)
	}
	return documents
}
