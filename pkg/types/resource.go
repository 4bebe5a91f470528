// Copyright MMU Library, 2026. All rights reserved.

// Package types defines shared data structures for the OER aggregation
// pipeline: the canonical Resource record, harvest run bookkeeping,
// search results, coverage reports, and per-stage configuration.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ResourceType is the closed set of normalized resource categories.
// Harvester-specific raw type strings are mapped into this set at
// normalization time; anything unrecognized becomes TypeOther.
type ResourceType string

const (
	TypeBook    ResourceType = "book"
	TypeChapter ResourceType = "chapter"
	TypeArticle ResourceType = "article"
	TypeVideo   ResourceType = "video"
	TypeCourse  ResourceType = "course"
	TypeOther   ResourceType = "other"
)

// ValidResourceType reports whether t is a member of the closed set.
func ValidResourceType(t ResourceType) bool {
	switch t {
	case TypeBook, TypeChapter, TypeArticle, TypeVideo, TypeCourse, TypeOther:
		return true
	}
	return false
}

// DefaultQualityScore is the neutral quality score assigned to a
// Resource until an assessment updates it. Scores range 0-5.
const DefaultQualityScore = 2.5

// Identifiers holds the external identifiers used for cross-source
// matching. Zero or more may be present on any Resource.
type Identifiers struct {
	ISBN       string `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	ISSN       string `json:"issn,omitempty" yaml:"issn,omitempty"`
	OCLCNumber string `json:"oclc_number,omitempty" yaml:"oclc_number,omitempty"`
	DOI        string `json:"doi,omitempty" yaml:"doi,omitempty"`
}

// Empty reports whether no identifier is set.
func (id Identifiers) Empty() bool {
	return id.ISBN == "" && id.ISSN == "" && id.OCLCNumber == "" && id.DOI == ""
}

// Resource is the canonical normalized OER metadata record.
//
// A Resource is created by the deduplication index on first sighting of
// a normalized candidate. Later sightings of the same external item
// update fields instead of creating duplicates. Resources are archived,
// never hard-deleted, so coverage reports stay stable.
type Resource struct {
	// ID is the internal identifier assigned on first insert. Stable
	// for the life of the record.
	ID int64 `json:"id" yaml:"id"`

	Identifiers Identifiers `json:"identifiers" yaml:"identifiers"`

	// Title is mandatory: a candidate without one is rejected before
	// storage.
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Author      string       `json:"author,omitempty" yaml:"author,omitempty"`
	Publisher   string       `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Subject     string       `json:"subject,omitempty" yaml:"subject,omitempty"`
	Type        ResourceType `json:"resource_type" yaml:"resource_type"`

	// RawType preserves the source's original type string before
	// normalization into Type.
	RawType  string `json:"raw_type,omitempty" yaml:"raw_type,omitempty"`
	Format   string `json:"format,omitempty" yaml:"format,omitempty"`
	License  string `json:"license,omitempty" yaml:"license,omitempty"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	Level    string `json:"level,omitempty" yaml:"level,omitempty"`

	// Source names the catalog this record was harvested from.
	Source string `json:"source" yaml:"source"`

	// URL is either empty or a syntactically valid absolute http(s)
	// URL. Non-URL link tokens (catalog filenames, bare identifiers)
	// are kept in RawIdentifier instead.
	URL           string `json:"url,omitempty" yaml:"url,omitempty"`
	RawIdentifier string `json:"raw_identifier,omitempty" yaml:"raw_identifier,omitempty"`

	// Embedding is the fixed-length semantic vector, nil until
	// computed. The search engine tolerates nil embeddings.
	Embedding []float32 `json:"-" yaml:"-"`

	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Summary  string   `json:"summary,omitempty" yaml:"summary,omitempty"`

	// QualityScore is in [0, 5]; DefaultQualityScore until assessed.
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`

	// ContentHash fingerprints the descriptive text so embeddings are
	// recomputed only when that text changes.
	ContentHash string `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`

	IsActive  bool      `json:"is_active" yaml:"is_active"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// EmbeddingText returns the descriptive text fed to the embedding
// provider. Identifier and administrative fields are excluded so that
// merges touching only those do not trigger recomputation.
func (r *Resource) EmbeddingText() string {
	parts := []string{r.Title}
	if r.Description != "" {
		parts = append(parts, r.Description)
	}
	if r.Subject != "" {
		parts = append(parts, r.Subject)
	}
	if len(r.Keywords) > 0 {
		parts = append(parts, strings.Join(r.Keywords, " "))
	}
	return strings.Join(parts, "\n")
}

// ComputeContentHash returns the SHA-256 fingerprint of EmbeddingText.
func (r *Resource) ComputeContentHash() string {
	sum := sha256.Sum256([]byte(r.EmbeddingText()))
	return hex.EncodeToString(sum[:])
}

// RawRecord is one record as produced by a harvester, before
// normalization. Keys are source field names; the normalizer applies
// the per-source mapping table to extract canonical values.
type RawRecord map[string]string

// Get returns the first non-empty value among the given keys, trying
// exact matches first and then case-insensitive ones.
func (r RawRecord) Get(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	for _, k := range keys {
		for rk, v := range r {
			if strings.EqualFold(rk, k) && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}
