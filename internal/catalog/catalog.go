// Package catalog exports a shard set into a SQLite database for ad-hoc
// querying.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/morozRed/docshard/internal/nav"
	"github.com/morozRed/docshard/internal/shard"
)

const schemaVersion = 1

const schema = `
	CREATE TABLE IF NOT EXISTS shards (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		parent TEXT,
		position INTEGER NOT NULL,
		line_count INTEGER NOT NULL,
		start_line INTEGER,
		end_line INTEGER,
		overview INTEGER NOT NULL DEFAULT 0,
		run_id TEXT,
		created_at TEXT,
		content TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_shards_type ON shards(type);
	CREATE INDEX IF NOT EXISTS idx_shards_document ON shards(document);

	CREATE TABLE IF NOT EXISTS children (
		parent TEXT NOT NULL,
		child TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (parent, child)
	);

	CREATE TABLE IF NOT EXISTS xrefs (
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		PRIMARY KEY (source, target)
	);

	CREATE TABLE IF NOT EXISTS contexts (
		shard TEXT NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (shard, tag)
	);
	CREATE INDEX IF NOT EXISTS idx_contexts_tag ON contexts(tag);

	CREATE TABLE IF NOT EXISTS tokens (
		token TEXT NOT NULL,
		shard TEXT NOT NULL,
		PRIMARY KEY (token, shard)
	);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
`

// Store is an open catalog database.
type Store struct {
	conn   *sql.DB
	logger *zap.Logger
	dbPath string
}

// Open opens or creates the catalog at dbPath.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	if _, err := conn.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to record schema version: %w", err)
	}

	return &Store{conn: conn, logger: logger, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Import replaces every row of document with the shards of result in one
// transaction.
func (s *Store) Import(ctx context.Context, document string, result *shard.Result, identifier *regexp.Regexp) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin catalog transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteDocument(ctx, tx, document); err != nil {
		return err
	}

	shardStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shards (id, document, type, title, parent, position, line_count, start_line, end_line, overview, run_id, created_at, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare shard insert: %w", err)
	}
	defer shardStmt.Close()

	for position, sh := range result.All() {
		if _, err := shardStmt.ExecContext(ctx,
			sh.ID,
			document,
			sh.Type,
			sh.Title,
			nullString(sh.Parent),
			position,
			sh.LineCount,
			sh.Metadata.StartLine,
			sh.Metadata.EndLine,
			boolInt(sh.Metadata.Overview),
			nullString(sh.Metadata.RunID),
			sh.Metadata.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			sh.Content,
		); err != nil {
			return fmt.Errorf("failed to insert shard %s: %w", sh.ID, err)
		}

		for i, child := range sh.Children {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO children (parent, child, position) VALUES (?, ?, ?)`, sh.ID, child, i); err != nil {
				return fmt.Errorf("failed to insert children of %s: %w", sh.ID, err)
			}
		}
		for _, target := range sh.CrossReferences {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO xrefs (source, target) VALUES (?, ?)`, sh.ID, target); err != nil {
				return fmt.Errorf("failed to insert cross-references of %s: %w", sh.ID, err)
			}
		}
		for _, tag := range sh.ContextScope {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO contexts (shard, tag) VALUES (?, ?)`, sh.ID, tag); err != nil {
				return fmt.Errorf("failed to insert context of %s: %w", sh.ID, err)
			}
		}
		for _, token := range nav.Tokenize(sh.Content, identifier) {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tokens (token, shard) VALUES (?, ?)`, token, sh.ID); err != nil {
				return fmt.Errorf("failed to insert tokens of %s: %w", sh.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	s.logger.Info("exported shards to catalog",
		zap.String("db", s.dbPath),
		zap.String("document", document),
		zap.Int("shards", len(result.Shards)),
	)
	return nil
}

func deleteDocument(ctx context.Context, tx *sql.Tx, document string) error {
	statements := []string{
		`DELETE FROM children WHERE parent IN (SELECT id FROM shards WHERE document = ?)`,
		`DELETE FROM xrefs WHERE source IN (SELECT id FROM shards WHERE document = ?)`,
		`DELETE FROM contexts WHERE shard IN (SELECT id FROM shards WHERE document = ?)`,
		`DELETE FROM tokens WHERE shard IN (SELECT id FROM shards WHERE document = ?)`,
		`DELETE FROM shards WHERE document = ?`,
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement, document); err != nil {
			return fmt.Errorf("failed to clear previous export of %s: %w", document, err)
		}
	}
	return nil
}

// Row is a shard as stored in the catalog, without content.
type Row struct {
	ID        string
	Type      string
	Title     string
	LineCount int
}

// ShardsByToken returns the shards indexed under token, in hierarchy order.
func (s *Store) ShardsByToken(ctx context.Context, token string) ([]Row, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT s.id, s.type, s.title, s.line_count
		FROM tokens t JOIN shards s ON s.id = t.shard
		WHERE t.token = ?
		ORDER BY s.document, s.position
	`, token)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.Type, &row.Title, &row.LineCount); err != nil {
			return nil, fmt.Errorf("failed to scan shard row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Counts returns the number of shards per level for a document.
func (s *Store) Counts(ctx context.Context, document string) (map[string]int, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT type, COUNT(*) FROM shards WHERE document = ? GROUP BY type`, document)
	if err != nil {
		return nil, fmt.Errorf("failed to count shards: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var levelType string
		var count int
		if err := rows.Scan(&levelType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[levelType] = count
	}
	return counts, rows.Err()
}

// CrossReferenceCount returns the number of stored directed edges.
func (s *Store) CrossReferenceCount(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM xrefs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cross-references: %w", err)
	}
	return count, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
