// Package store caches ingested documents in SQLite, keyed by document ID
// and indexed by content hash for duplicate detection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/fingest/internal/extract"
)

var ErrNotFound = errors.New("document not found")

// Document is one ingested file and its rendered text report.
type Document struct {
	ID              string    `json:"doc_id"`
	Filename        string    `json:"filename"`
	Title           string    `json:"title"`
	ContentHash     string    `json:"content_hash"`
	Pages           int       `json:"pages"`
	Successful      int       `json:"successful_pages"`
	FinancialTables int       `json:"financial_tables"`
	SuccessRate     float64   `json:"success_rate"`
	FactCount       int       `json:"fact_count"`
	CreatedAt       time.Time `json:"created_at"`

	Report string         `json:"-"` // plain-text report
	Detail []byte         `json:"-"` // JSON-encoded report.Report
	Facts  []extract.Fact `json:"-"`
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id               TEXT PRIMARY KEY,
	filename         TEXT NOT NULL,
	title            TEXT NOT NULL,
	content_hash     TEXT NOT NULL,
	pages            INTEGER NOT NULL,
	successful       INTEGER NOT NULL,
	financial_tables INTEGER NOT NULL,
	success_rate     REAL NOT NULL,
	report           TEXT NOT NULL,
	detail           BLOB,
	created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_content_hash ON documents(content_hash);
CREATE TABLE IF NOT EXISTS facts (
	doc_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	seq      INTEGER NOT NULL,
	category TEXT NOT NULL,
	value    REAL NOT NULL,
	page     INTEGER NOT NULL,
	context  TEXT NOT NULL,
	PRIMARY KEY (doc_id, seq)
);
`

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. An empty path
// uses a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file::memory:"
	if path != "" {
		dsn = "file:" + path
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection: in-memory databases are per connection, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put inserts or replaces doc and its facts.
func (s *Store) Put(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM facts WHERE doc_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("clear facts: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, filename, title, content_hash, pages, successful, financial_tables, success_rate, report, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			title = excluded.title,
			content_hash = excluded.content_hash,
			pages = excluded.pages,
			successful = excluded.successful,
			financial_tables = excluded.financial_tables,
			success_rate = excluded.success_rate,
			report = excluded.report,
			detail = excluded.detail,
			created_at = excluded.created_at`,
		doc.ID, doc.Filename, doc.Title, doc.ContentHash, doc.Pages, doc.Successful,
		doc.FinancialTables, doc.SuccessRate, doc.Report, doc.Detail, doc.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}

	for i, f := range doc.Facts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO facts (doc_id, seq, category, value, page, context) VALUES (?, ?, ?, ?, ?, ?)`,
			doc.ID, i, string(f.Category), f.Value, f.Page, f.Context)
		if err != nil {
			return fmt.Errorf("insert fact %d: %w", i, err)
		}
	}
	return tx.Commit()
}

const selectDocument = `
	SELECT d.id, d.filename, d.title, d.content_hash, d.pages, d.successful, d.financial_tables,
	       d.success_rate, d.report, d.detail, d.created_at,
	       (SELECT COUNT(*) FROM facts f WHERE f.doc_id = d.id)
	FROM documents d`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	var created int64
	err := row.Scan(&d.ID, &d.Filename, &d.Title, &d.ContentHash, &d.Pages, &d.Successful,
		&d.FinancialTables, &d.SuccessRate, &d.Report, &d.Detail, &created, &d.FactCount)
	if err != nil {
		return Document{}, err
	}
	d.CreatedAt = time.UnixMilli(created)
	return d, nil
}

// Get returns the document with id, including its report and facts.
func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx, selectDocument+` WHERE d.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	if d.Facts, err = s.facts(ctx, id); err != nil {
		return Document{}, err
	}
	return d, nil
}

// FindByHash returns the most recent document with the given content hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		selectDocument+` WHERE d.content_hash = ? ORDER BY d.created_at DESC LIMIT 1`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}
	if err != nil {
		return Document{}, fmt.Errorf("find by hash: %w", err)
	}
	return d, nil
}

// List returns all documents, newest first, without reports or facts.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, selectDocument+` ORDER BY d.created_at DESC, d.id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Report, d.Detail = "", nil
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes a document and its facts.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) facts(ctx context.Context, id string) ([]extract.Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, value, page, context FROM facts WHERE doc_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("load facts for %s: %w", id, err)
	}
	defer rows.Close()

	var facts []extract.Fact
	for rows.Next() {
		var f extract.Fact
		var cat string
		if err := rows.Scan(&cat, &f.Value, &f.Page, &f.Context); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.Category = extract.Category(cat)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
