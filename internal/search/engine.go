// Copyright MMU Library, 2026. All rights reserved.

// Package search ranks stored resources against free-text queries by
// combining a semantic (embedding cosine) channel with a lexical
// (FTS5 bm25) channel, plus a bounded quality boost.
package search

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/MMU-Library/OER-Phoenix/internal/embed"
	"github.com/MMU-Library/OER-Phoenix/internal/store"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// hybridBoost multiplies the combined score of resources matched by
// both channels.
const hybridBoost = 1.15

// searchStore is the slice of the resource store the engine needs.
type searchStore interface {
	Lexical(ctx context.Context, query string, filter store.Filter, k int) ([]store.Scored, error)
	Nearest(ctx context.Context, vec []float32, k int, filter store.Filter) ([]store.Scored, error)
	ByQuality(ctx context.Context, filter store.Filter, k int) ([]*types.Resource, error)
}

// Output is one search response. Degraded is set when the semantic
// channel was unavailable and ranking fell back to lexical only.
type Output struct {
	Results  []types.SearchResult
	Degraded bool
}

// Engine runs hybrid queries. The embedding provider is optional: a
// nil provider permanently degrades the engine to lexical ranking.
type Engine struct {
	store    searchStore
	provider embed.Provider
	cfg      types.SearchConfig
	logger   *zap.Logger
}

func NewEngine(s searchStore, provider embed.Provider, cfg types.SearchConfig, logger *zap.Logger) *Engine {
	if cfg.SemanticWeight <= 0 {
		cfg.SemanticWeight = 0.6
	}
	if cfg.LexicalWeight <= 0 {
		cfg.LexicalWeight = 0.4
	}
	if cfg.QualityWeight < 0 {
		cfg.QualityWeight = 0
	} else if cfg.QualityWeight == 0 {
		cfg.QualityWeight = 0.3
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: s, provider: provider, cfg: cfg, logger: logger}
}

// Search ranks active resources against the query under the facet
// filter. An identifier facet short-circuits to exact lookup; an empty
// query with other facets ranks by quality alone; an empty query with
// no facets is invalid.
func (e *Engine) Search(ctx context.Context, query string, filter store.Filter, limit int) (Output, error) {
	if limit < 0 {
		return Output{}, &types.InvalidQueryError{Reason: "limit must not be negative"}
	}
	if limit == 0 {
		limit = e.cfg.MaxResults
	}
	query = strings.TrimSpace(query)

	if filter.HasIdentifier() {
		return e.byIdentifier(ctx, filter, limit)
	}
	if query == "" {
		if filter.Empty() {
			return Output{}, &types.InvalidQueryError{Reason: "empty query with no filters"}
		}
		return e.byQuality(ctx, filter, limit)
	}
	return e.hybrid(ctx, query, filter, limit)
}

// byIdentifier resolves an identifier facet. Identifiers are exact, so
// every hit scores 1.0.
func (e *Engine) byIdentifier(ctx context.Context, filter store.Filter, limit int) (Output, error) {
	matches, err := e.store.ByQuality(ctx, filter, limit)
	if err != nil {
		return Output{}, err
	}
	out := Output{}
	for _, r := range matches {
		out.Results = append(out.Results, types.SearchResult{
			Resource:   r,
			FinalScore: 1.0,
			Reason:     types.MatchIdentifierExact,
		})
	}
	return out, nil
}

func (e *Engine) byQuality(ctx context.Context, filter store.Filter, limit int) (Output, error) {
	matches, err := e.store.ByQuality(ctx, filter, limit)
	if err != nil {
		return Output{}, err
	}
	out := Output{}
	for _, r := range matches {
		out.Results = append(out.Results, types.SearchResult{
			Resource:     r,
			QualityBoost: e.qualityBoost(r.QualityScore),
			FinalScore:   e.qualityBoost(r.QualityScore),
			Reason:       types.MatchQualityOnly,
		})
	}
	return out, nil
}

func (e *Engine) hybrid(ctx context.Context, query string, filter store.Filter, limit int) (Output, error) {
	k := limit * e.cfg.CandidateMultiplier

	semantic, degraded := e.semanticChannel(ctx, query, filter, k)
	lexical, err := e.store.Lexical(ctx, query, filter, k)
	if err != nil {
		return Output{}, err
	}

	type entry struct {
		resource *types.Resource
		sem, lex float64
		inSem    bool
		inLex    bool
	}
	merged := make(map[int64]*entry, len(semantic)+len(lexical))
	for _, s := range semantic {
		merged[s.Resource.ID] = &entry{resource: s.Resource, sem: s.Score, inSem: true}
	}
	for _, l := range lexical {
		if ent, ok := merged[l.Resource.ID]; ok {
			ent.lex = l.Score
			ent.inLex = true
			continue
		}
		merged[l.Resource.ID] = &entry{resource: l.Resource, lex: l.Score, inLex: true}
	}

	out := Output{Degraded: degraded}
	for _, ent := range merged {
		combined := e.cfg.SemanticWeight*ent.sem + e.cfg.LexicalWeight*ent.lex
		reason := types.MatchKeyword
		switch {
		case ent.inSem && ent.inLex:
			combined *= hybridBoost
			reason = types.MatchHybrid
		case ent.inSem:
			reason = types.MatchSemantic
		case degraded:
			reason = types.MatchLexicalDegraded
		}
		boost := e.qualityBoost(ent.resource.QualityScore)
		out.Results = append(out.Results, types.SearchResult{
			Resource:      ent.resource,
			SemanticScore: ent.sem,
			LexicalScore:  ent.lex,
			QualityBoost:  boost,
			FinalScore:    combined + boost,
			Reason:        reason,
		})
	}

	sort.SliceStable(out.Results, func(i, j int) bool {
		a, b := out.Results[i], out.Results[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if a.Resource.QualityScore != b.Resource.QualityScore {
			return a.Resource.QualityScore > b.Resource.QualityScore
		}
		return a.Resource.CreatedAt.After(b.Resource.CreatedAt)
	})
	if len(out.Results) > limit {
		out.Results = out.Results[:limit]
	}
	return out, nil
}

// semanticChannel embeds the query once and pulls nearest neighbours.
// Any provider failure degrades the search instead of failing it.
func (e *Engine) semanticChannel(ctx context.Context, query string, filter store.Filter, k int) ([]store.Scored, bool) {
	if e.provider == nil {
		return nil, true
	}
	vecs, err := e.provider.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		e.logger.Warn("semantic channel unavailable, degrading to lexical", zap.Error(err))
		return nil, true
	}
	scored, err := e.store.Nearest(ctx, vecs[0], k, filter)
	if err != nil {
		e.logger.Warn("nearest-neighbour query failed, degrading to lexical", zap.Error(err))
		return nil, true
	}
	return scored, false
}

// qualityBoost maps the 0-5 quality score into a small additive bonus
// bounded by QualityWeight, so quality alone can never outrank a clear
// relevance difference.
func (e *Engine) qualityBoost(quality float64) float64 {
	if quality < 0 {
		quality = 0
	}
	if quality > 5 {
		quality = 5
	}
	return e.cfg.QualityWeight * quality / 5
}
