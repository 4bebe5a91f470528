// Copyright MMU Library, 2026. All rights reserved.

package types

// ReadingListItem is one citation-like line item from an external
// reading list. Parsing the list (CSV, remote fetch) happens outside
// the core; the analyzer receives items already ordered.
type ReadingListItem struct {
	Title       string      `json:"title" yaml:"title"`
	Author      string      `json:"author,omitempty" yaml:"author,omitempty"`
	Identifiers Identifiers `json:"identifiers" yaml:"identifiers"`
	Note        string      `json:"note,omitempty" yaml:"note,omitempty"`
}

// MatchMethod records which search channel matched a line item.
type MatchMethod string

const (
	MethodIdentifier MatchMethod = "identifier"
	MethodSemantic   MatchMethod = "semantic"
	MethodLexical    MatchMethod = "lexical"
	MethodNone       MatchMethod = "none"
)

// CoverageLabel grades the strength of an item's best match.
type CoverageLabel string

const (
	CoverageGood    CoverageLabel = "good"
	CoveragePartial CoverageLabel = "partial"
	CoverageWeak    CoverageLabel = "weak"
	CoverageNone    CoverageLabel = "none"
)

// ItemOutcome is the per-line-item result of a coverage analysis.
type ItemOutcome struct {
	Item ReadingListItem `json:"item" yaml:"item"`

	// Matched is the confidently-matched resource, nil when no result
	// cleared the confidence threshold.
	Matched *Resource     `json:"matched,omitempty" yaml:"matched,omitempty"`
	Score   float64       `json:"score" yaml:"score"`
	Method  MatchMethod   `json:"method" yaml:"method"`
	Label   CoverageLabel `json:"label" yaml:"label"`

	// Err records a per-item failure. One item's failure never aborts
	// the remaining items.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CoverageReport aggregates per-item outcomes for one analysis run.
// Reports are ephemeral; callers persist or export them as needed.
type CoverageReport struct {
	Outcomes []ItemOutcome `json:"outcomes" yaml:"outcomes"`

	Total           int     `json:"total" yaml:"total"`
	Matched         int     `json:"matched" yaml:"matched"`
	CoveragePercent float64 `json:"coverage_percent" yaml:"coverage_percent"`

	ByResourceType map[ResourceType]int `json:"by_resource_type" yaml:"by_resource_type"`
	ByMatchMethod  map[MatchMethod]int  `json:"by_match_method" yaml:"by_match_method"`
}
