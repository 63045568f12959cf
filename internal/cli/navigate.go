package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/docshard/internal/fileutil"
	"github.com/morozRed/docshard/internal/nav"
	"github.com/morozRed/docshard/internal/output"
	"github.com/morozRed/docshard/internal/search"
	"github.com/morozRed/docshard/internal/ui"
)

type shardView struct {
	nav.ShardRecord
	Breadcrumb []nav.ShardRecord `json:"breadcrumb"`
	Children   []nav.ShardRecord `json:"children"`
	Related    []nav.ShardRecord `json:"related"`
	Context    []string          `json:"context,omitempty"`
	Content    string            `json:"content"`
}

type searchMatch struct {
	nav.ShardRecord
	Score   float64  `json:"score,omitempty"`
	Matched []string `json:"matched,omitempty"`
	Fuzzy   bool     `json:"fuzzy,omitempty"`
}

func RunShow(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	plain, err := OptionalBoolFlag(cmd, "plain", false)
	if err != nil {
		return err
	}

	docDir := args[0]
	lookup, err := nav.LoadLookup(docDir)
	if err != nil {
		return err
	}
	node, err := nav.ResolveSingleShard(lookup, args[1])
	if err != nil {
		return err
	}
	index, err := output.LoadIndex(docDir)
	if err != nil {
		return err
	}
	entry, ok := index.Entry(node.ID)
	if !ok {
		return fmt.Errorf("%w: %s is not listed in %s", output.ErrShardNotFound, node.ID, output.IndexFile)
	}
	sh, err := output.ReadShard(docDir, entry)
	if err != nil {
		return err
	}

	view := shardView{
		ShardRecord: nav.ShardRecordFromNode(node),
		Breadcrumb:  nav.Breadcrumb(lookup, node),
		Children:    nav.CollectChildren(lookup, node),
		Related:     nav.CollectRelated(lookup, node),
		Context:     node.Context,
		Content:     sh.Content,
	}
	if asJSON {
		return fileutil.PrintJSON(view)
	}

	crumbs := make([]string, 0, len(view.Breadcrumb)+1)
	for _, record := range view.Breadcrumb {
		crumbs = append(crumbs, record.Title)
	}
	crumbs = append(crumbs, ui.AccentStyle.Render(view.Title))
	fmt.Println(strings.Join(crumbs, ui.RenderMuted(" > ")))
	fmt.Println(ui.RenderMuted(fmt.Sprintf("%s %s  %d lines  %s", view.Type, view.ID, view.LineCount, view.File)))
	printRecords("children", view.Children)
	printRecords("related", view.Related)
	fmt.Println()
	fmt.Print(ui.RenderMarkdown(fileutil.EnsureTrailingNewline(view.Content), plain || !ui.StdoutIsTerminal()))
	return nil
}

func printRecords(label string, records []nav.ShardRecord) {
	if len(records) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for _, record := range records {
		fmt.Printf("  %s %s\n", record.ID, record.Title)
	}
}

func RunSearch(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	rank, err := OptionalBoolFlag(cmd, "rank", false)
	if err != nil {
		return err
	}
	limit, err := OptionalIntFlag(cmd, "limit", 10)
	if err != nil {
		return err
	}
	levelType, err := OptionalStringFlag(cmd, "type")
	if err != nil {
		return err
	}
	contextTag, err := OptionalStringFlag(cmd, "context")
	if err != nil {
		return err
	}

	docDir := args[0]
	query := strings.Join(args[1:], " ")
	lookup, err := nav.LoadLookup(docDir)
	if err != nil {
		return err
	}

	allowed := searchScope(lookup, levelType, contextTag)
	matches := make([]searchMatch, 0)
	if rank {
		index, err := search.Load(docDir)
		if err != nil {
			return err
		}
		for _, hit := range index.Search(search.Query{Text: query, Type: levelType, Limit: limit}) {
			if allowed != nil && !allowed[hit.ID] {
				continue
			}
			if node, ok := lookup.Get(hit.ID); ok {
				matches = append(matches, searchMatch{
					ShardRecord: nav.ShardRecordFromNode(node),
					Score:       hit.Score,
					Matched:     hit.Matched,
					Fuzzy:       hit.Fuzzy,
				})
			}
		}
	} else {
		for _, node := range lookup.Search(query) {
			if allowed != nil && !allowed[node.ID] {
				continue
			}
			matches = append(matches, searchMatch{ShardRecord: nav.ShardRecordFromNode(node)})
		}
	}

	if asJSON {
		return fileutil.PrintJSON(matches)
	}
	if len(matches) == 0 {
		fmt.Fprintf(os.Stderr, "no shards match %q\n", query)
		return nil
	}
	for _, match := range matches {
		if rank {
			fmt.Printf("%s %-5s %s %s\n", match.ID, match.Type, match.Title, ui.RenderMuted(fmt.Sprintf("(%.3f)", match.Score)))
			continue
		}
		fmt.Printf("%s %-5s %s\n", match.ID, match.Type, match.Title)
	}
	return nil
}

// searchScope returns the shard ids passing the level and context filters,
// or nil when neither is set.
func searchScope(lookup *nav.Lookup, levelType, contextTag string) map[string]bool {
	if levelType == "" && contextTag == "" {
		return nil
	}
	var scope map[string]bool
	narrow := func(nodes []*nav.IndexNode) {
		next := make(map[string]bool, len(nodes))
		for _, node := range nodes {
			if scope == nil || scope[node.ID] {
				next[node.ID] = true
			}
		}
		scope = next
	}
	if levelType != "" {
		narrow(lookup.ByType(levelType))
	}
	if contextTag != "" {
		narrow(lookup.ByContext(contextTag))
	}
	return scope
}

func RunTree(cmd *cobra.Command, args []string) error {
	result, _, err := output.Load(args[0])
	if err != nil {
		return err
	}
	return ui.RenderTree(os.Stdout, result)
}

func RunPath(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	lookup, err := nav.LoadLookup(args[0])
	if err != nil {
		return err
	}
	from, err := nav.ResolveSingleShard(lookup, args[1])
	if err != nil {
		return err
	}
	to, err := nav.ResolveSingleShard(lookup, args[2])
	if err != nil {
		return err
	}

	ids := nav.ShortestPath(lookup, from.ID, to.ID)
	records := make([]nav.ShardRecord, 0, len(ids))
	for _, id := range ids {
		if node, ok := lookup.Get(id); ok {
			records = append(records, nav.ShardRecordFromNode(node))
		}
	}
	if asJSON {
		return fileutil.PrintJSON(records)
	}
	if len(records) == 0 {
		fmt.Printf("no path from %s to %s\n", from.ID, to.ID)
		return nil
	}
	for i, record := range records {
		fmt.Printf("%d. %s %s\n", i+1, record.ID, record.Title)
	}
	return nil
}

func RunTrace(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	depth, err := OptionalIntFlag(cmd, "depth", 2)
	if err != nil {
		return err
	}
	if depth < 1 {
		return fmt.Errorf("--depth must be >= 1")
	}
	lookup, err := nav.LoadLookup(args[0])
	if err != nil {
		return err
	}
	start, err := nav.ResolveSingleShard(lookup, args[1])
	if err != nil {
		return err
	}

	hops := nav.Trace(lookup, start, depth)
	if asJSON {
		return fileutil.PrintJSON(hops)
	}
	if len(hops) == 0 {
		fmt.Printf("%s has no cross-references\n", start.ID)
		return nil
	}
	for _, hop := range hops {
		fmt.Printf("%s%s %s -> %s %s\n", strings.Repeat("  ", hop.Depth-1), hop.From.ID, hop.From.Title, hop.To.ID, hop.To.Title)
	}
	return nil
}
