// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records which pages have been imported, and how each
// attempt ended, in a SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/blog-importer/pkg/types"
)

// Ledger is the import ledger. It is safe for concurrent use.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path, creating parent
// directories as needed. An empty path opens a private in-memory ledger.
func Open(path string) (*Ledger, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	if path == "" {
		// each connection to :memory: is its own database
		db.SetMaxOpenConns(1)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS imports (
			url TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			path TEXT,
			status TEXT NOT NULL,
			error TEXT,
			imported_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_imports_status ON imports(status)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Put inserts or replaces the record for rec.URL. A zero ImportedAt is set
// to the current time.
func (l *Ledger) Put(ctx context.Context, rec types.ImportRecord) error {
	if rec.URL == "" {
		return errors.New("ledger record has no URL")
	}
	if rec.ImportedAt.IsZero() {
		rec.ImportedAt = time.Now().UTC()
	}
	if rec.Date == "" {
		rec.Date = "unknown"
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO imports (url, date, path, status, error, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.URL, rec.Date, rec.Path, string(rec.Status), rec.Error,
		rec.ImportedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", rec.URL, err)
	}
	return nil
}

// Get returns the record for url. ok is false when the page was never
// recorded.
func (l *Ledger) Get(ctx context.Context, url string) (rec types.ImportRecord, ok bool, err error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT url, date, path, status, error, imported_at FROM imports WHERE url = ?`, url)
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ImportRecord{}, false, nil
	}
	if err != nil {
		return types.ImportRecord{}, false, fmt.Errorf("looking up %s: %w", url, err)
	}
	return rec, true, nil
}

// List returns records ordered by publish date then URL. An empty status
// lists every record.
func (l *Ledger) List(ctx context.Context, status types.ImportStatus) ([]types.ImportRecord, error) {
	query := `SELECT url, date, path, status, error, imported_at FROM imports`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY date, url`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing imports: %w", err)
	}
	defer rows.Close()

	var out []types.ImportRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning import: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ExportYAML writes the records matching status to w as a YAML list.
func (l *Ledger) ExportYAML(ctx context.Context, w io.Writer, status types.ImportStatus) error {
	recs, err := l.List(ctx, status)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []types.ImportRecord{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (types.ImportRecord, error) {
	var (
		rec        types.ImportRecord
		status     string
		path, msg  sql.NullString
		importedAt string
	)
	if err := s.Scan(&rec.URL, &rec.Date, &path, &status, &msg, &importedAt); err != nil {
		return types.ImportRecord{}, err
	}
	rec.Path = path.String
	rec.Error = msg.String
	rec.Status = types.ImportStatus(status)
	if t, err := time.Parse(time.RFC3339Nano, importedAt); err == nil {
		rec.ImportedAt = t
	}
	return rec, nil
}
