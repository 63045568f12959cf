package ui

import (
	"fmt"
	"io"

	"github.com/morozRed/docshard/internal/shard"
)

// RenderTree writes the epic/story/task hierarchy of result to w.
func RenderTree(w io.Writer, result *shard.Result) error {
	for _, id := range result.Epics {
		epic, ok := result.Get(id)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintln(w, treeLabel(epic, 0)); err != nil {
			return err
		}
		if err := renderChildren(w, result, epic, "", 1); err != nil {
			return err
		}
	}
	return nil
}

func renderChildren(w io.Writer, result *shard.Result, parent *shard.Shard, prefix string, depth int) error {
	children := result.Children(parent.ID)
	for i, child := range children {
		branch, next := TreeBranch, TreePipe
		if i == len(children)-1 {
			branch, next = TreeLast, TreeIndent
		}
		if _, err := fmt.Fprintln(w, MutedStyle.Render(prefix+branch)+treeLabel(child, depth)); err != nil {
			return err
		}
		if err := renderChildren(w, result, child, prefix+next, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func treeLabel(sh *shard.Shard, depth int) string {
	style := LevelStyles[len(LevelStyles)-1]
	if depth < len(LevelStyles) {
		style = LevelStyles[depth]
	}
	label := style.Render(sh.Title)
	suffix := fmt.Sprintf(" %s (%d lines)", sh.ID, sh.LineCount)
	if sh.Metadata.Overview {
		suffix += " overview"
	}
	return label + MutedStyle.Render(suffix)
}
