// Copyright MMU Library, 2026. All rights reserved.

// Package coverage measures how much of a reading list the harvested
// open collection already covers: identifier lookups first, hybrid
// search as the fallback, with a confidence floor on what counts as a
// match.
package coverage

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/MMU-Library/OER-Phoenix/internal/normalize"
	"github.com/MMU-Library/OER-Phoenix/internal/search"
	"github.com/MMU-Library/OER-Phoenix/internal/store"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// engine is the slice of the search engine the analyzer needs.
type engine interface {
	Search(ctx context.Context, query string, filter store.Filter, limit int) (search.Output, error)
}

// Analyzer resolves reading-list items against the store.
type Analyzer struct {
	engine engine
	cfg    types.CoverageConfig
	logger *zap.Logger
}

func NewAnalyzer(e engine, cfg types.CoverageConfig, logger *zap.Logger) *Analyzer {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if cfg.GoodThreshold <= 0 {
		cfg.GoodThreshold = 0.8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{engine: e, cfg: cfg, logger: logger}
}

// Analyze resolves every item in order. One item's failure is recorded
// on its outcome and never aborts the rest. The report's outcomes are
// index-aligned with the input.
func (a *Analyzer) Analyze(ctx context.Context, items []types.ReadingListItem) types.CoverageReport {
	report := types.CoverageReport{
		Total:          len(items),
		ByResourceType: make(map[types.ResourceType]int),
		ByMatchMethod:  make(map[types.MatchMethod]int),
	}

	for _, item := range items {
		outcome := a.analyzeItem(ctx, item)
		report.Outcomes = append(report.Outcomes, outcome)
		report.ByMatchMethod[outcome.Method]++
		if outcome.Matched != nil {
			report.Matched++
			report.ByResourceType[outcome.Matched.Type]++
		}
	}
	if report.Total > 0 {
		report.CoveragePercent = 100 * float64(report.Matched) / float64(report.Total)
	}
	return report
}

func (a *Analyzer) analyzeItem(ctx context.Context, item types.ReadingListItem) types.ItemOutcome {
	outcome := types.ItemOutcome{Item: item, Method: types.MethodNone, Label: types.CoverageNone}

	if !item.Identifiers.Empty() {
		matched, err := a.byIdentifier(ctx, item.Identifiers)
		if err != nil {
			outcome.Err = err.Error()
			return outcome
		}
		if matched != nil {
			outcome.Matched = matched
			outcome.Score = 1
			outcome.Method = types.MethodIdentifier
			outcome.Label = types.CoverageGood
			return outcome
		}
		// No identifier hit: fall through to text search.
	}

	query := strings.TrimSpace(item.Title + " " + item.Author)
	if query == "" {
		outcome.Err = "item has no identifiers and no title"
		return outcome
	}
	out, err := a.engine.Search(ctx, query, store.Filter{}, 5)
	if err != nil {
		a.logger.Warn("item search failed", zap.String("title", item.Title), zap.Error(err))
		outcome.Err = err.Error()
		return outcome
	}
	if len(out.Results) == 0 {
		return outcome
	}

	top := out.Results[0]
	outcome.Score = top.FinalScore
	outcome.Method = methodFor(top.Reason)
	outcome.Label = a.label(top.FinalScore)
	if top.FinalScore >= a.cfg.ConfidenceThreshold {
		outcome.Matched = top.Resource
	} else {
		// Below the confidence floor nothing counts as covered, however
		// suggestive the best candidate looked.
		outcome.Method = types.MethodNone
	}
	return outcome
}

// byIdentifier tries each identifier in precedence order; the filter
// fields are exact so the first hit is authoritative. Reading lists
// carry identifiers in whatever form the librarian typed (hyphenated
// ISBNs, doi.org URLs), so each one is cleaned to the stored form
// first.
func (a *Analyzer) byIdentifier(ctx context.Context, ids types.Identifiers) (*types.Resource, error) {
	filters := []store.Filter{
		{ISBN: normalize.CleanISBN(ids.ISBN)},
		{ISSN: normalize.CleanISSN(ids.ISSN)},
		{OCLCNumber: normalize.CleanOCLC(ids.OCLCNumber)},
		{DOI: normalize.CleanDOI(ids.DOI)},
	}
	for _, f := range filters {
		if !f.HasIdentifier() {
			continue
		}
		out, err := a.engine.Search(ctx, "", f, 1)
		if err != nil {
			return nil, err
		}
		if len(out.Results) > 0 {
			return out.Results[0].Resource, nil
		}
	}
	return nil, nil
}

func methodFor(reason types.MatchReason) types.MatchMethod {
	switch reason {
	case types.MatchIdentifierExact:
		return types.MethodIdentifier
	case types.MatchSemantic, types.MatchHybrid:
		return types.MethodSemantic
	case types.MatchKeyword, types.MatchLexicalDegraded:
		return types.MethodLexical
	default:
		return types.MethodNone
	}
}

// label grades the best match against the configured thresholds.
func (a *Analyzer) label(score float64) types.CoverageLabel {
	switch {
	case score >= a.cfg.GoodThreshold:
		return types.CoverageGood
	case score >= a.cfg.ConfidenceThreshold:
		return types.CoveragePartial
	case score > 0:
		return types.CoverageWeak
	default:
		return types.CoverageNone
	}
}
