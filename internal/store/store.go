// Copyright MMU Library, 2026. All rights reserved.

// Package store persists canonical Resources in SQLite and provides the
// query primitives the search engine needs: identifier lookup, a
// BM25 lexical channel over an FTS5 index, and a vector-similarity
// scan over stored embeddings with facet pre-filtering.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// Store manages the resource database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at cfg.Path and ensures the
// schema exists.
func Open(cfg types.StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS resources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			isbn TEXT NOT NULL DEFAULT '',
			issn TEXT NOT NULL DEFAULT '',
			oclc_number TEXT NOT NULL DEFAULT '',
			doi TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			title_key TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			publisher TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			resource_type TEXT NOT NULL,
			raw_type TEXT NOT NULL DEFAULT '',
			format TEXT NOT NULL DEFAULT '',
			license TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			raw_identifier TEXT NOT NULL DEFAULT '',
			embedding TEXT,
			embedded_hash TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '[]',
			summary TEXT NOT NULL DEFAULT '',
			quality_score REAL NOT NULL DEFAULT 2.5,
			content_hash TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resources_isbn ON resources(isbn) WHERE isbn != ''`,
		`CREATE INDEX IF NOT EXISTS idx_resources_issn ON resources(issn) WHERE issn != ''`,
		`CREATE INDEX IF NOT EXISTS idx_resources_oclc ON resources(oclc_number) WHERE oclc_number != ''`,
		`CREATE INDEX IF NOT EXISTS idx_resources_doi ON resources(doi) WHERE doi != ''`,
		`CREATE INDEX IF NOT EXISTS idx_resources_title_key ON resources(title_key)`,
		`CREATE INDEX IF NOT EXISTS idx_resources_source ON resources(source)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='resources_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE resources_fts USING fts5(
				title, description, keywords, subject,
				content=resources, content_rowid=id)`,
			`CREATE TRIGGER resources_ai AFTER INSERT ON resources BEGIN
				INSERT INTO resources_fts(rowid, title, description, keywords, subject)
				VALUES (new.id, new.title, new.description, new.keywords, new.subject);
			END`,
			`CREATE TRIGGER resources_ad AFTER DELETE ON resources BEGIN
				INSERT INTO resources_fts(resources_fts, rowid, title, description, keywords, subject)
				VALUES('delete', old.id, old.title, old.description, old.keywords, old.subject);
			END`,
			`CREATE TRIGGER resources_au AFTER UPDATE ON resources BEGIN
				INSERT INTO resources_fts(resources_fts, rowid, title, description, keywords, subject)
				VALUES('delete', old.id, old.title, old.description, old.keywords, old.subject);
				INSERT INTO resources_fts(rowid, title, description, keywords, subject)
				VALUES (new.id, new.title, new.description, new.keywords, new.subject);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}
	return nil
}

const resourceColumns = `id, isbn, issn, oclc_number, doi, title, description, author,
	publisher, subject, resource_type, raw_type, format, license, language, level,
	source, url, raw_identifier, embedding, keywords, summary, quality_score,
	content_hash, is_active, created_at, updated_at`

// Insert stores a new Resource and returns its assigned id. CreatedAt
// and UpdatedAt are set here.
func (s *Store) Insert(ctx context.Context, r *types.Resource) (int64, error) {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	keywordsJSON, _ := json.Marshal(r.Keywords)
	embJSON := embeddingJSON(r.Embedding)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO resources (isbn, issn, oclc_number, doi, title, title_key,
			description, author, publisher, subject, resource_type, raw_type,
			format, license, language, level, source, url, raw_identifier,
			embedding, keywords, summary, quality_score, content_hash,
			is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Identifiers.ISBN, r.Identifiers.ISSN, r.Identifiers.OCLCNumber, r.Identifiers.DOI,
		r.Title, TitleKey(r.Title),
		r.Description, r.Author, r.Publisher, r.Subject, string(r.Type), r.RawType,
		r.Format, r.License, r.Language, r.Level, r.Source, r.URL, r.RawIdentifier,
		embJSON, string(keywordsJSON), r.Summary, r.QualityScore, r.ContentHash,
		boolInt(r.IsActive), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting resource: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading insert id: %w", err)
	}
	r.ID = id
	return id, nil
}

// Update rewrites an existing Resource's fields. The embedding column
// is left alone; SetEmbedding owns it.
func (s *Store) Update(ctx context.Context, r *types.Resource) error {
	if r.ID == 0 {
		return fmt.Errorf("updating resource: id not set")
	}
	now := time.Now().UTC()
	r.UpdatedAt = now
	keywordsJSON, _ := json.Marshal(r.Keywords)

	_, err := s.db.ExecContext(ctx,
		`UPDATE resources SET isbn=?, issn=?, oclc_number=?, doi=?, title=?, title_key=?,
			description=?, author=?, publisher=?, subject=?, resource_type=?, raw_type=?,
			format=?, license=?, language=?, level=?, source=?, url=?, raw_identifier=?,
			keywords=?, summary=?, quality_score=?, content_hash=?, is_active=?, updated_at=?
		 WHERE id=?`,
		r.Identifiers.ISBN, r.Identifiers.ISSN, r.Identifiers.OCLCNumber, r.Identifiers.DOI,
		r.Title, TitleKey(r.Title),
		r.Description, r.Author, r.Publisher, r.Subject, string(r.Type), r.RawType,
		r.Format, r.License, r.Language, r.Level, r.Source, r.URL, r.RawIdentifier,
		string(keywordsJSON), r.Summary, r.QualityScore, r.ContentHash,
		boolInt(r.IsActive), now.Format(time.RFC3339Nano), r.ID,
	)
	if err != nil {
		return fmt.Errorf("updating resource %d: %w", r.ID, err)
	}
	return nil
}

// GetByID returns one Resource, or sql.ErrNoRows wrapped when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*types.Resource, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	r, err := scanResource(row)
	if err != nil {
		return nil, fmt.Errorf("resource %d: %w", id, err)
	}
	return r, nil
}

// FindByIdentifier looks up an active Resource by external identifier
// in precedence order ISBN, ISSN, OCLC, DOI. Returns (nil, nil) when
// nothing matches.
func (s *Store) FindByIdentifier(ctx context.Context, ids types.Identifiers) (*types.Resource, error) {
	lookups := []struct {
		column, value string
	}{
		{"isbn", ids.ISBN},
		{"issn", ids.ISSN},
		{"oclc_number", ids.OCLCNumber},
		{"doi", ids.DOI},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		row := s.db.QueryRowContext(ctx,
			`SELECT `+resourceColumns+` FROM resources WHERE `+l.column+` = ? AND is_active = 1 LIMIT 1`,
			l.value)
		r, err := scanResource(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("identifier lookup %s=%s: %w", l.column, l.value, err)
		}
		return r, nil
	}
	return nil, nil
}

// TitleCandidates returns active resources whose indexed text matches
// tokens from the given title, for fuzzy dedup comparison. Recall over
// precision: callers apply the similarity threshold.
func (s *Store) TitleCandidates(ctx context.Context, title string, k int) ([]*types.Resource, error) {
	match := ftsQuery(title, " OR ")
	if match == "" {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixed(resourceColumns, "r.")+`
		 FROM resources_fts
		 JOIN resources r ON r.id = resources_fts.rowid
		 WHERE resources_fts MATCH ? AND r.is_active = 1
		 ORDER BY bm25(resources_fts) LIMIT ?`,
		"title:("+match+")", k)
	if err != nil {
		return nil, fmt.Errorf("title candidate query: %w", err)
	}
	defer rows.Close()
	return collectResources(rows)
}

// TitleKey returns the normalized form of a title used for dedup
// comparison: lowercased, punctuation stripped, whitespace collapsed.
func TitleKey(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r == '-', r == ':':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Archive deactivates a resource. Resources are never hard-deleted so
// existing coverage reports stay resolvable.
func (s *Store) Archive(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE resources SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("archiving resource %d: %w", id, err)
	}
	return nil
}

// CountActive returns the number of active resources.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM resources WHERE is_active = 1`).Scan(&n)
	return n, err
}

// Facets returns the distinct values of the filterable categorical
// attributes across active resources.
func (s *Store) Facets(ctx context.Context) (map[string][]string, error) {
	facets := make(map[string][]string)
	for name, column := range map[string]string{
		"sources":   "source",
		"languages": "language",
		"types":     "resource_type",
		"licenses":  "license",
	} {
		rows, err := s.db.QueryContext(ctx,
			`SELECT DISTINCT `+column+` FROM resources WHERE is_active = 1 AND `+column+` != '' ORDER BY `+column)
		if err != nil {
			return nil, fmt.Errorf("facet query %s: %w", name, err)
		}
		var vals []string
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, err
			}
			vals = append(vals, v)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		facets[name] = vals
	}
	return facets, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func embeddingJSON(vec []float32) any {
	if vec == nil {
		return nil
	}
	data, _ := json.Marshal(vec)
	return string(data)
}

// prefixed rewrites a comma-separated column list with a table alias.
func prefixed(columns, prefix string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanResource.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*types.Resource, error) {
	var (
		r            types.Resource
		resourceType string
		embJSON      sql.NullString
		keywordsJSON string
		isActive     int
		createdAt    string
		updatedAt    string
	)
	err := row.Scan(
		&r.ID, &r.Identifiers.ISBN, &r.Identifiers.ISSN, &r.Identifiers.OCLCNumber,
		&r.Identifiers.DOI, &r.Title, &r.Description, &r.Author,
		&r.Publisher, &r.Subject, &resourceType, &r.RawType, &r.Format, &r.License,
		&r.Language, &r.Level, &r.Source, &r.URL, &r.RawIdentifier,
		&embJSON, &keywordsJSON, &r.Summary, &r.QualityScore,
		&r.ContentHash, &isActive, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Type = types.ResourceType(resourceType)
	r.IsActive = isActive != 0
	if embJSON.Valid {
		json.Unmarshal([]byte(embJSON.String), &r.Embedding)
	}
	json.Unmarshal([]byte(keywordsJSON), &r.Keywords)
	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		r.CreatedAt = t
	}
	if t, perr := time.Parse(time.RFC3339Nano, updatedAt); perr == nil {
		r.UpdatedAt = t
	}
	return &r, nil
}

func collectResources(rows *sql.Rows) ([]*types.Resource, error) {
	var out []*types.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning resource row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
