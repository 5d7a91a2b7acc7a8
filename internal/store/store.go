// Package store persists the flattened symbol index in sqlite. The in-memory
// program graph stays authoritative; the store exists for fast queries and
// for keeping audit history across runs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"symgraph/internal/symgraph"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	full_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	file_path TEXT NOT NULL,
	line_start INTEGER NOT NULL DEFAULT 0,
	line_end INTEGER NOT NULL DEFAULT 0,
	col_start INTEGER NOT NULL DEFAULT 0,
	col_end INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
CREATE INDEX IF NOT EXISTS idx_nodes_full_name ON nodes(full_name);
CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file_path);

CREATE TABLE IF NOT EXISTS edges (
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	relation TEXT NOT NULL,
	PRIMARY KEY (source_id, target_id, relation)
);

CREATE TABLE IF NOT EXISTS audits (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	status TEXT NOT NULL,
	kind TEXT,
	full_name TEXT,
	detail TEXT
);
`

// Store wraps the sqlite index database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the index database at path. Use ":memory:"
// for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create index db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init index schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// BulkUpsertNodes inserts or updates symbol rows in one transaction.
func (s *Store) BulkUpsertNodes(ctx context.Context, rows []*symgraph.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, name, full_name, kind, file_path, line_start, line_end, col_start, col_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			full_name = excluded.full_name,
			kind = excluded.kind,
			file_path = excluded.file_path,
			line_start = excluded.line_start,
			line_end = excluded.line_end,
			col_start = excluded.col_start,
			col_end = excluded.col_end`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.ID, row.Name, row.FullName, row.Kind, row.FilePath,
			row.LineStart, row.LineEnd, row.ColStart, row.ColEnd); err != nil {
			return fmt.Errorf("upsert node %s: %w", row.FullName, err)
		}
	}
	return tx.Commit()
}

// BulkUpsertEdges inserts or replaces reference edges in one transaction.
func (s *Store) BulkUpsertEdges(ctx context.Context, refs []*symgraph.Ref) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO edges (source_id, target_id, relation) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ref := range refs {
		if _, err := stmt.ExecContext(ctx, ref.SourceID, ref.TargetID, ref.Relation); err != nil {
			return fmt.Errorf("upsert edge %s->%s: %w", ref.SourceID, ref.TargetID, err)
		}
	}
	return tx.Commit()
}

// PruneStaleFiles deletes rows for files no longer present in the workspace,
// together with any edges touching them.
func (s *Store) PruneStaleFiles(ctx context.Context, validFiles []string) error {
	if len(validFiles) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(validFiles)), ",")
	args := make([]any, len(validFiles))
	for i, f := range validFiles {
		args[i] = f
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM edges WHERE source_id IN (SELECT id FROM nodes WHERE file_path NOT IN (`+placeholders+`))
		   OR target_id IN (SELECT id FROM nodes WHERE file_path NOT IN (`+placeholders+`))`,
		append(append([]any{}, args...), args...)...); err != nil {
		return fmt.Errorf("prune stale edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM nodes WHERE file_path NOT IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("prune stale nodes: %w", err)
	}
	return tx.Commit()
}

// GetSymbolsInFile returns every stored symbol of one file, in source order.
func (s *Store) GetSymbolsInFile(ctx context.Context, filePath string) ([]*symgraph.Row, error) {
	return s.queryRows(ctx,
		`SELECT id, name, full_name, kind, file_path, line_start, line_end, col_start, col_end
		 FROM nodes WHERE file_path = ? ORDER BY line_start`, filePath)
}

// GetSymbolLocation finds symbols by short or fully-qualified name.
func (s *Store) GetSymbolLocation(ctx context.Context, symbolName string) ([]*symgraph.Row, error) {
	return s.queryRows(ctx,
		`SELECT id, name, full_name, kind, file_path, line_start, line_end, col_start, col_end
		 FROM nodes WHERE name = ? OR full_name = ? ORDER BY full_name`, symbolName, symbolName)
}

// GetSymbolAt returns the innermost symbol enclosing a file position.
func (s *Store) GetSymbolAt(ctx context.Context, filePath string, line int) (*symgraph.Row, error) {
	rows, err := s.queryRows(ctx,
		`SELECT id, name, full_name, kind, file_path, line_start, line_end, col_start, col_end
		 FROM nodes
		 WHERE file_path = ? AND line_start <= ? AND line_end >= ?
		 ORDER BY (line_end - line_start) ASC LIMIT 1`, filePath, line, line)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FindImpact returns the symbols that reference the named symbol.
func (s *Store) FindImpact(ctx context.Context, symbolName string) ([]*symgraph.Row, error) {
	return s.queryRows(ctx,
		`SELECT DISTINCT n.id, n.name, n.full_name, n.kind, n.file_path, n.line_start, n.line_end, n.col_start, n.col_end
		 FROM nodes n
		 JOIN edges e ON e.source_id = n.id
		 JOIN nodes target ON target.id = e.target_id
		 WHERE target.name = ? OR target.full_name = ?`, symbolName, symbolName)
}

// AuditRecord is one persisted consistency-audit outcome.
type AuditRecord struct {
	ID        string
	CreatedAt time.Time
	Status    string // "ok" or "violation"
	Kind      string
	FullName  string
	Detail    string
}

// RecordAudit stores the outcome of one consistency audit and returns its ID.
func (s *Store) RecordAudit(ctx context.Context, rec AuditRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audits (id, created_at, status, kind, full_name, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.Format(time.RFC3339), rec.Status, rec.Kind, rec.FullName, rec.Detail)
	if err != nil {
		return "", fmt.Errorf("record audit: %w", err)
	}
	return rec.ID, nil
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]*symgraph.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*symgraph.Row
	for rows.Next() {
		r := &symgraph.Row{}
		if err := rows.Scan(&r.ID, &r.Name, &r.FullName, &r.Kind, &r.FilePath,
			&r.LineStart, &r.LineEnd, &r.ColStart, &r.ColEnd); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
