// Package shard turns a parsed document into the epic/story/task hierarchy.
package shard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/morozRed/docshard/internal/chunk"
	"github.com/morozRed/docshard/internal/graph"
	"github.com/morozRed/docshard/internal/languages"
	"github.com/morozRed/docshard/internal/parser"
	"github.com/morozRed/docshard/internal/rules"
)

// Options configures a sharding session.
type Options struct {
	MaxLines        int
	PreserveContext bool
	Levels          Levels
	Rules           *rules.Set
	// Analyzer adds lang:<name> context tags when set.
	Analyzer *languages.Analyzer
	Logger   *zap.Logger
	// Now and RunID are provenance only and never influence ids.
	Now   func() time.Time
	RunID string
}

// Session owns the shard set of one sharding run. It is not safe for
// concurrent use; independent sessions may run in parallel.
type Session struct {
	opts       Options
	thresholds chunk.Thresholds
	logger     *zap.Logger

	result *Result
	fences []languages.Fence
	now    time.Time
}

// NewSession validates options and fills in defaults.
func NewSession(opts Options) (*Session, error) {
	if opts.MaxLines < 1 {
		return nil, fmt.Errorf("maxLines must be at least 1, got %d", opts.MaxLines)
	}
	if opts.Levels == (Levels{}) {
		opts.Levels = DefaultLevels()
	}
	if _, err := ParseLevels(opts.Levels.Names()); err != nil {
		return nil, err
	}
	if opts.Rules == nil {
		opts.Rules = rules.Default()
	}
	if err := opts.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		opts:       opts,
		thresholds: chunk.NewThresholds(opts.MaxLines),
		logger:     logger,
	}, nil
}

// Thresholds returns the per-level split targets in use.
func (s *Session) Thresholds() chunk.Thresholds {
	return s.thresholds
}

// sourceLine ties a line of shard text back to the document.
type sourceLine struct {
	text    string
	line    int // 1-based
	section string
}

// Run shards doc. Each call starts a fresh shard set.
func (s *Session) Run(ctx context.Context, doc *parser.Document) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("no document to shard")
	}
	runID := s.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	s.now = s.opts.Now()
	s.result = newResult(doc, s.opts.Levels, runID)
	s.fences = s.detectFences(ctx, doc)

	groups := s.opts.Rules.Group(doc.SectionTitles())
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines := make([]sourceLine, 0)
		for _, title := range group.Sections {
			section, _ := doc.Section(title)
			for i, text := range section.Text() {
				lines = append(lines, sourceLine{text: text, line: section.StartLine + i, section: title})
			}
		}
		s.buildEpic(group, lines)
	}

	s.linkReferences()

	s.logger.Debug("sharded document",
		zap.String("source", doc.Path),
		zap.String("run_id", runID),
		zap.Int("epics", len(s.result.Epics)),
		zap.Int("shards", len(s.result.order)),
		zap.Int("cross_references", s.result.Graph.EdgeCount()),
	)
	return s.result, nil
}

func (s *Session) detectFences(ctx context.Context, doc *parser.Document) []languages.Fence {
	if s.opts.Analyzer == nil || len(doc.Lines) == 0 {
		return nil
	}
	fences, err := s.opts.Analyzer.Fences(ctx, []byte(strings.Join(doc.Lines, "\n")+"\n"))
	if err != nil {
		s.logger.Warn("fence language detection failed", zap.String("source", doc.Path), zap.Error(err))
		return nil
	}
	return fences
}

func (s *Session) buildEpic(group rules.Group, lines []sourceLine) {
	levels := s.opts.Levels
	epic := s.newShard(levels.Epic, group.Name, lines, nil)
	if len(lines) > s.thresholds.Max {
		epic.Content, epic.LineCount = s.overview(group, lines)
		epic.Metadata.Overview = true
	}
	s.register(epic, "")

	for i, span := range s.split(lines, s.thresholds.Story) {
		storyLines := lines[span.Start:span.End]
		title := chunkTitle(storyLines, epic.Title, i)
		story := s.newShard(levels.Story, title, storyLines, epic)
		s.register(story, epic.ID)

		if story.LineCount <= s.thresholds.TaskTrigger {
			continue
		}
		for j, taskSpan := range s.split(storyLines, s.thresholds.Task) {
			taskLines := storyLines[taskSpan.Start:taskSpan.End]
			task := s.newShard(levels.Task, chunkTitle(taskLines, story.Title, j), taskLines, story)
			s.register(task, story.ID)
		}
	}
}

func (s *Session) split(lines []sourceLine, target int) []chunk.Span {
	texts := make([]string, len(lines))
	for i, line := range lines {
		texts[i] = line.text
	}
	return chunk.Split(texts, chunk.Options{Target: target, PreserveContext: s.opts.PreserveContext})
}

// chunkTitle names a story or task after the first heading it contains, or
// after its parent when it holds none. The first chunk keeps the parent name.
func chunkTitle(lines []sourceLine, parentTitle string, index int) string {
	for _, line := range lines {
		if text, _, ok := parser.HeadingText(line.text); ok {
			return text
		}
	}
	if index == 0 {
		return parentTitle
	}
	return fmt.Sprintf("%s (part %d)", parentTitle, index+1)
}

func (s *Session) newShard(levelType, title string, lines []sourceLine, parent *Shard) *Shard {
	texts := make([]string, len(lines))
	for i, line := range lines {
		texts[i] = line.text
	}

	sh := &Shard{
		Type:         levelType,
		Title:        title,
		Content:      strings.Join(texts, "\n"),
		LineCount:    len(texts),
		ContextScope: s.contextTags(lines),
		Metadata: Metadata{
			Source:    s.result.Document.Path,
			CreatedAt: s.now,
			Version:   FormatVersion,
			RunID:     s.result.RunID,
		},
	}
	if parent != nil {
		sh.Parent = parent.ID
	}
	if len(lines) > 0 {
		sh.Metadata.StartLine, sh.Metadata.EndLine = lines[0].line, lines[0].line
		for _, line := range lines {
			if line.line < sh.Metadata.StartLine {
				sh.Metadata.StartLine = line.line
			}
			if line.line > sh.Metadata.EndLine {
				sh.Metadata.EndLine = line.line
			}
		}
	}
	return sh
}

// contextTags lists the originating section titles in order of appearance,
// followed by the languages of fences opening inside the lines.
func (s *Session) contextTags(lines []sourceLine) []string {
	tags := make([]string, 0)
	seen := make(map[string]bool)
	for _, line := range lines {
		if !seen[line.section] {
			seen[line.section] = true
			tags = append(tags, line.section)
		}
	}

	if len(s.fences) > 0 {
		langs := make(map[string]bool)
		for _, line := range lines {
			for _, language := range languages.LanguagesBetween(s.fences, line.line, line.line) {
				langs[language] = true
			}
		}
		names := make([]string, 0, len(langs))
		for language := range langs {
			names = append(names, language)
		}
		sort.Strings(names)
		tags = append(tags, languages.Tags(names)...)
	}
	return tags
}

// overview renders the outline stored in place of an oversized epic's text.
func (s *Session) overview(group rules.Group, lines []sourceLine) (string, int) {
	type sectionRange struct{ start, end int }
	ranges := make(map[string]*sectionRange, len(group.Sections))
	for _, line := range lines {
		r, ok := ranges[line.section]
		if !ok {
			ranges[line.section] = &sectionRange{start: line.line, end: line.line}
			continue
		}
		if line.line > r.end {
			r.end = line.line
		}
	}

	entries := make([]string, 0, len(group.Sections))
	for _, title := range group.Sections {
		if r := ranges[title]; r != nil {
			entries = append(entries, fmt.Sprintf("- %s (lines %d-%d)", title, r.start, r.end))
		}
	}
	if room := s.thresholds.Max - 1; len(entries) > room {
		if room < 1 {
			entries = nil
		} else {
			more := len(entries) - (room - 1)
			entries = append(entries[:room-1], fmt.Sprintf("- ... %d more sections", more))
		}
	}

	out := append([]string{fmt.Sprintf("# %s (overview, %d lines)", group.Name, len(lines))}, entries...)
	return strings.Join(out, "\n"), len(out)
}

// register assigns a stable id and links the shard under its parent.
func (s *Session) register(sh *Shard, parentID string) {
	for nonce := 0; ; nonce++ {
		id := hashID(sh.Type, sh.Title, sh.Content, nonce)
		if _, taken := s.result.Shards[id]; !taken {
			sh.ID = id
			break
		}
	}
	s.result.add(sh)
	if parentID == "" {
		s.result.Epics = append(s.result.Epics, sh.ID)
		return
	}
	parent := s.result.Shards[parentID]
	parent.Children = append(parent.Children, sh.ID)
}

func (s *Session) linkReferences() {
	g := graph.NewGraph()
	for _, id := range s.result.order {
		sh := s.result.Shards[id]
		g.Add(sh.ID, sh.Title, sh.Content, s.result.Ancestors(sh.ID))
	}
	g.Detect(graph.Detector{
		Phrase:     s.opts.Rules.PhraseRegexp(),
		Identifier: s.opts.Rules.IdentifierRegexp(),
	})
	for _, id := range s.result.order {
		s.result.Shards[id].CrossReferences = g.Related(id)
	}
	s.result.Graph = g
}
