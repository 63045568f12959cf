package cli

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/morozRed/docshard/internal/catalog"
	"github.com/morozRed/docshard/internal/fileutil"
	"github.com/morozRed/docshard/internal/nav"
	"github.com/morozRed/docshard/internal/output"
	"github.com/morozRed/docshard/internal/rules"
	"github.com/morozRed/docshard/internal/shard"
)

// ExportRecord is one JSONL line of an export.
type ExportRecord struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Title           string   `json:"title"`
	Parent          string   `json:"parent,omitempty"`
	Children        []string `json:"children,omitempty"`
	CrossReferences []string `json:"cross_references,omitempty"`
	Context         []string `json:"context,omitempty"`
	LineCount       int      `json:"line_count"`
	StartLine       int      `json:"start_line"`
	EndLine         int      `json:"end_line"`
	Content         string   `json:"content"`
}

func RunExport(cmd *cobra.Command, args []string) error {
	dbPath, err := OptionalStringFlag(cmd, "db")
	if err != nil {
		return err
	}
	jsonlPath, err := OptionalStringFlag(cmd, "jsonl")
	if err != nil {
		return err
	}
	if dbPath == "" && jsonlPath == "" {
		return fmt.Errorf("export needs --db or --jsonl")
	}

	docDir := args[0]
	result, index, err := output.Load(docDir)
	if err != nil {
		return err
	}

	if dbPath != "" {
		identifier, err := exportIdentifier(docDir)
		if err != nil {
			return err
		}
		store, err := catalog.Open(dbPath, Logger(cmd))
		if err != nil {
			return err
		}
		defer store.Close()
		ctx := commandContext(cmd)
		if err := store.Import(ctx, index.Source.Name, result, identifier); err != nil {
			return err
		}
		xrefs, err := store.CrossReferenceCount(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "export: %d shards, %d cross-reference links -> %s\n", len(result.Shards), xrefs, dbPath)
	}

	if jsonlPath != "" {
		records := exportRecords(result)
		if jsonlPath == "-" {
			return fileutil.WriteJSONL(os.Stdout, records)
		}
		data, err := fileutil.EncodeJSONL(records)
		if err != nil {
			return err
		}
		if err := fileutil.WriteAtomic(jsonlPath, data); err != nil {
			return fmt.Errorf("failed to write %s: %w", jsonlPath, err)
		}
		fmt.Fprintf(os.Stderr, "export: %d shards -> %s\n", len(records), jsonlPath)
	}
	return nil
}

// exportIdentifier reuses the identifier pattern recorded at generation.
func exportIdentifier(docDir string) (*regexp.Regexp, error) {
	lookup, err := nav.LoadLookup(docDir)
	if err != nil {
		return nil, err
	}
	pattern := lookup.Index.IdentifierPattern
	if pattern == "" {
		pattern = rules.DefaultIdentifierPattern
	}
	identifier, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile identifier pattern %q: %w", pattern, err)
	}
	return identifier, nil
}

func exportRecords(result *shard.Result) []ExportRecord {
	shards := result.All()
	records := make([]ExportRecord, 0, len(shards))
	for _, sh := range shards {
		records = append(records, ExportRecord{
			ID:              sh.ID,
			Type:            sh.Type,
			Title:           sh.Title,
			Parent:          sh.Parent,
			Children:        sh.Children,
			CrossReferences: sh.CrossReferences,
			Context:         sh.ContextScope,
			LineCount:       sh.LineCount,
			StartLine:       sh.Metadata.StartLine,
			EndLine:         sh.Metadata.EndLine,
			Content:         sh.Content,
		})
	}
	return records
}
