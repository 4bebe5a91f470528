// Copyright MMU Library, 2026. All rights reserved.

package types

// MatchReason explains how a search result was matched, so callers can
// render provenance alongside the score.
type MatchReason string

const (
	MatchIdentifierExact MatchReason = "identifier-exact"
	MatchSemantic        MatchReason = "semantic"
	MatchKeyword         MatchReason = "keyword"
	MatchHybrid          MatchReason = "hybrid"
	MatchLexicalDegraded MatchReason = "lexical-degraded"
	MatchQualityOnly     MatchReason = "quality-only"
)

// SearchResult is one ranked hit from the hybrid search engine. It is
// ephemeral and never persisted.
type SearchResult struct {
	Resource *Resource `json:"resource" yaml:"resource"`

	// SemanticScore is cosine similarity against the query embedding,
	// zero when the resource has no embedding or the semantic channel
	// was unavailable.
	SemanticScore float64 `json:"semantic_score" yaml:"semantic_score"`

	// LexicalScore is the normalized BM25-style term score.
	LexicalScore float64 `json:"lexical_score" yaml:"lexical_score"`

	// QualityBoost is the bounded quality contribution folded into
	// FinalScore.
	QualityBoost float64 `json:"quality_boost" yaml:"quality_boost"`

	// FinalScore is the quality-adjusted combined score used for
	// ranking.
	FinalScore float64 `json:"final_score" yaml:"final_score"`

	Reason MatchReason `json:"match_reason" yaml:"match_reason"`
}
