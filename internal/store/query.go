// Copyright MMU Library, 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// Filter is the facet pre-filter applied before scoring. The zero value
// matches all active resources. Identifier fields make the filter
// identifier-exact, which the coverage analyzer relies on.
type Filter struct {
	Source       string
	Language     string
	ResourceType types.ResourceType
	Subject      string
	License      string

	ISBN       string
	ISSN       string
	OCLCNumber string
	DOI        string
}

// Empty reports whether no facet at all is set.
func (f Filter) Empty() bool {
	return f == Filter{}
}

// HasIdentifier reports whether any identifier-exact field is set.
func (f Filter) HasIdentifier() bool {
	return f.ISBN != "" || f.ISSN != "" || f.OCLCNumber != "" || f.DOI != ""
}

// where builds the SQL conditions for the filter over table alias r.
func (f Filter) where() (string, []any) {
	var (
		conds = []string{"r.is_active = 1"}
		args  []any
	)
	add := func(cond string, val any) {
		conds = append(conds, cond)
		args = append(args, val)
	}
	if f.Source != "" {
		add("r.source = ?", f.Source)
	}
	if f.Language != "" {
		add("r.language = ?", f.Language)
	}
	if f.ResourceType != "" {
		add("r.resource_type = ?", string(f.ResourceType))
	}
	if f.Subject != "" {
		add("r.subject LIKE ?", "%"+f.Subject+"%")
	}
	if f.License != "" {
		add("r.license = ?", f.License)
	}
	if f.ISBN != "" {
		add("r.isbn = ?", f.ISBN)
	}
	if f.ISSN != "" {
		add("r.issn = ?", f.ISSN)
	}
	if f.OCLCNumber != "" {
		add("r.oclc_number = ?", f.OCLCNumber)
	}
	if f.DOI != "" {
		add("r.doi = ?", f.DOI)
	}
	return strings.Join(conds, " AND "), args
}

// Scored pairs a resource with a channel score in [0, 1].
type Scored struct {
	Resource *types.Resource
	Score    float64
}

// Lexical runs a BM25 term query over title, description, keywords and
// subject, restricted by the facet filter, returning up to k results.
// BM25 rank is mapped into (0, 1] so channels combine on one scale.
func (s *Store) Lexical(ctx context.Context, query string, filter Filter, k int) ([]Scored, error) {
	match := ftsQuery(query, " OR ")
	if match == "" {
		return nil, nil
	}
	if k <= 0 {
		k = 20
	}
	where, args := filter.where()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixed(resourceColumns, "r.")+`, bm25(resources_fts) AS rank
		 FROM resources_fts
		 JOIN resources r ON r.id = resources_fts.rowid
		 WHERE resources_fts MATCH ? AND `+where+`
		 ORDER BY rank LIMIT ?`,
		append(append([]any{match}, args...), k)...)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	defer rows.Close()

	var out []Scored
	for rows.Next() {
		r, rank, err := scanScored(rows)
		if err != nil {
			return nil, err
		}
		// bm25() returns a negative rank, more negative = better.
		out = append(out, Scored{Resource: r, Score: 1 - 1/(1-rank)})
	}
	return out, rows.Err()
}

// Nearest returns the k active resources with stored embeddings closest
// to vec by cosine similarity, after applying the facet filter in SQL.
// Resources without an embedding are not eligible for this channel.
func (s *Store) Nearest(ctx context.Context, vec []float32, k int, filter Filter) ([]Scored, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("nearest: empty query vector")
	}
	if k <= 0 {
		k = 20
	}
	where, args := filter.where()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixed(resourceColumns, "r.")+`
		 FROM resources r
		 WHERE r.embedding IS NOT NULL AND `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("nearest query: %w", err)
	}
	defer rows.Close()

	var scored []Scored
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning resource row: %w", err)
		}
		if len(r.Embedding) != len(vec) {
			continue
		}
		scored = append(scored, Scored{Resource: r, Score: Cosine(vec, r.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// ByQuality returns filter-matching resources ranked by quality score,
// then recency. Used when a search has filters but no query text.
func (s *Store) ByQuality(ctx context.Context, filter Filter, k int) ([]*types.Resource, error) {
	if k <= 0 {
		k = 20
	}
	where, args := filter.where()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixed(resourceColumns, "r.")+`
		 FROM resources r
		 WHERE `+where+`
		 ORDER BY r.quality_score DESC, r.created_at DESC LIMIT ?`,
		append(args, k)...)
	if err != nil {
		return nil, fmt.Errorf("quality query: %w", err)
	}
	defer rows.Close()
	return collectResources(rows)
}

// SetEmbedding stores the computed vector and records which content
// hash it was computed from, so staleness is detectable.
func (s *Store) SetEmbedding(ctx context.Context, id int64, vec []float32, contentHash string) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE resources SET embedding = ?, embedded_hash = ?, updated_at = ? WHERE id = ?`,
		string(data), contentHash, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("storing embedding for resource %d: %w", id, err)
	}
	return nil
}

// MissingEmbeddings returns active resources whose embedding is absent
// or was computed from different descriptive text, up to limit.
func (s *Store) MissingEmbeddings(ctx context.Context, limit int) ([]*types.Resource, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixed(resourceColumns, "r.")+`
		 FROM resources r
		 WHERE r.is_active = 1 AND (r.embedding IS NULL OR r.embedded_hash != r.content_hash)
		 ORDER BY r.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("missing embeddings query: %w", err)
	}
	defer rows.Close()
	return collectResources(rows)
}

// Cosine returns the cosine similarity of two equal-length vectors,
// clamped into [0, 1] (negative similarity scores as 0).
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// ftsQuery turns free text into a safe FTS5 match expression: tokens
// are quoted and joined with the given operator. Returns "" when the
// text has no usable tokens.
func ftsQuery(text, op string) string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r > 127)
	})
	var tokens []string
	for _, f := range fields {
		if f == "" {
			continue
		}
		tokens = append(tokens, `"`+f+`"`)
	}
	return strings.Join(tokens, op)
}

func scanScored(rows rowScanner) (*types.Resource, float64, error) {
	// Same columns as scanResource plus the trailing rank.
	var (
		r            types.Resource
		resourceType string
		embJSON      *string
		keywordsJSON string
		isActive     int
		createdAt    string
		updatedAt    string
		rank         float64
	)
	err := rows.Scan(
		&r.ID, &r.Identifiers.ISBN, &r.Identifiers.ISSN, &r.Identifiers.OCLCNumber,
		&r.Identifiers.DOI, &r.Title, &r.Description, &r.Author,
		&r.Publisher, &r.Subject, &resourceType, &r.RawType, &r.Format, &r.License,
		&r.Language, &r.Level, &r.Source, &r.URL, &r.RawIdentifier,
		&embJSON, &keywordsJSON, &r.Summary, &r.QualityScore,
		&r.ContentHash, &isActive, &createdAt, &updatedAt, &rank,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("scanning scored row: %w", err)
	}
	r.Type = types.ResourceType(resourceType)
	r.IsActive = isActive != 0
	if embJSON != nil {
		json.Unmarshal([]byte(*embJSON), &r.Embedding)
	}
	json.Unmarshal([]byte(keywordsJSON), &r.Keywords)
	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		r.CreatedAt = t
	}
	if t, perr := time.Parse(time.RFC3339Nano, updatedAt); perr == nil {
		r.UpdatedAt = t
	}
	return &r, rank, nil
}
