// Copyright MMU Library, 2026. All rights reserved.

// Package dedup decides, for each incoming normalized resource, whether
// it is new or a duplicate of something already in the store, and
// merges duplicates without losing data.
package dedup

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"github.com/MMU-Library/OER-Phoenix/internal/store"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// Action is the outcome of resolving a candidate against the store.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Decision reports what the resolver did with one candidate.
type Decision struct {
	Action     Action
	ResourceID int64
	Conflicts  []types.DedupConflictError
}

// resourceStore is the slice of the store the resolver needs.
type resourceStore interface {
	FindByIdentifier(ctx context.Context, ids types.Identifiers) (*types.Resource, error)
	TitleCandidates(ctx context.Context, title string, k int) ([]*types.Resource, error)
	Insert(ctx context.Context, r *types.Resource) (int64, error)
	Update(ctx context.Context, r *types.Resource) error
}

const stripes = 64

// Resolver matches candidates by shared identifier first, then by
// fuzzy title similarity, and merges matches field by field. Matching
// for concurrent candidates of the same work is serialized on a
// striped lock so two workers cannot both create it.
type Resolver struct {
	store      resourceStore
	threshold  float64
	priorities map[string]int // source name -> priority
	logger     *zap.Logger
	locks      [stripes]sync.Mutex
}

func NewResolver(s resourceStore, cfg types.DedupConfig, priorities map[string]int, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := cfg.TitleSimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	return &Resolver{store: s, threshold: threshold, priorities: priorities, logger: logger}
}

// Resolve matches one candidate and applies the outcome: insert when
// no duplicate exists, merge-and-update when one does, skip when the
// merge changes nothing. The candidate must already be normalized.
func (r *Resolver) Resolve(ctx context.Context, candidate *types.Resource) (Decision, error) {
	mu := &r.locks[stripeFor(candidate)]
	mu.Lock()
	defer mu.Unlock()

	existing, err := r.match(ctx, candidate)
	if err != nil {
		return Decision{}, err
	}

	if existing == nil {
		candidate.ContentHash = candidate.ComputeContentHash()
		id, err := r.store.Insert(ctx, candidate)
		if err != nil {
			return Decision{}, fmt.Errorf("inserting resource: %w", err)
		}
		r.logger.Debug("created resource",
			zap.Int64("id", id),
			zap.String("title", candidate.Title),
			zap.String("source", candidate.Source))
		return Decision{Action: ActionCreate, ResourceID: id}, nil
	}

	changed, conflicts := r.merge(existing, candidate)
	existing.ContentHash = existing.ComputeContentHash()

	if !changed && len(conflicts) == 0 {
		return Decision{Action: ActionSkip, ResourceID: existing.ID}, nil
	}
	if err := r.store.Update(ctx, existing); err != nil {
		return Decision{}, fmt.Errorf("updating resource %d: %w", existing.ID, err)
	}
	r.logger.Debug("merged resource",
		zap.Int64("id", existing.ID),
		zap.String("incoming_source", candidate.Source),
		zap.Int("conflicts", len(conflicts)))
	return Decision{Action: ActionUpdate, ResourceID: existing.ID, Conflicts: conflicts}, nil
}

// match finds the stored resource the candidate duplicates, or nil.
// A shared identifier is decisive; otherwise the best title candidate
// above the similarity threshold with compatible authors wins.
func (r *Resolver) match(ctx context.Context, candidate *types.Resource) (*types.Resource, error) {
	if !candidate.Identifiers.Empty() {
		existing, err := r.store.FindByIdentifier(ctx, candidate.Identifiers)
		if err != nil {
			return nil, fmt.Errorf("identifier lookup: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	candidates, err := r.store.TitleCandidates(ctx, candidate.Title, 10)
	if err != nil {
		return nil, fmt.Errorf("title candidate lookup: %w", err)
	}
	key := store.TitleKey(candidate.Title)
	var (
		best      *types.Resource
		bestScore float64
	)
	for _, c := range candidates {
		score := TokenSetSimilarity(key, store.TitleKey(c.Title))
		if score < r.threshold {
			continue
		}
		if !authorsCompatible(candidate.Author, c.Author) {
			continue
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, nil
}

// merge folds the candidate into the existing record. Empty fields are
// always filled; when both sides disagree the higher-priority source
// wins and the disagreement is recorded as a conflict either way.
// changed reports whether any field was actually filled or overwritten,
// including fields outside the embedding text (identifiers, publisher,
// URL, the type upgrade, quality, revival), so a fill-only enrichment
// is never mistaken for a no-op.
func (r *Resolver) merge(existing, candidate *types.Resource) (changed bool, conflicts []types.DedupConflictError) {
	incomingWins := r.priority(candidate.Source) > r.priority(existing.Source)

	mergeStr := func(field string, dst *string, incoming string) {
		switch {
		case incoming == "" || incoming == *dst:
		case *dst == "":
			*dst = incoming
			changed = true
		default:
			conflicts = append(conflicts, types.DedupConflictError{
				ResourceID: existing.ID,
				Field:      field,
				Existing:   *dst,
				Incoming:   incoming,
				Source:     candidate.Source,
			})
			if incomingWins {
				*dst = incoming
				changed = true
			}
		}
	}

	mergeStr("isbn", &existing.Identifiers.ISBN, candidate.Identifiers.ISBN)
	mergeStr("issn", &existing.Identifiers.ISSN, candidate.Identifiers.ISSN)
	mergeStr("oclc_number", &existing.Identifiers.OCLCNumber, candidate.Identifiers.OCLCNumber)
	mergeStr("doi", &existing.Identifiers.DOI, candidate.Identifiers.DOI)
	mergeStr("description", &existing.Description, candidate.Description)
	mergeStr("author", &existing.Author, candidate.Author)
	mergeStr("publisher", &existing.Publisher, candidate.Publisher)
	mergeStr("subject", &existing.Subject, candidate.Subject)
	mergeStr("license", &existing.License, candidate.License)
	mergeStr("language", &existing.Language, candidate.Language)
	mergeStr("url", &existing.URL, candidate.URL)

	if existing.RawIdentifier == "" && candidate.RawIdentifier != "" {
		existing.RawIdentifier = candidate.RawIdentifier
		changed = true
	}
	if existing.Type == types.TypeOther && candidate.Type != types.TypeOther && candidate.Type != "" {
		existing.Type = candidate.Type
		changed = true
	}
	merged := unionKeywords(existing.Keywords, candidate.Keywords)
	if len(merged) != len(existing.Keywords) {
		changed = true
	}
	existing.Keywords = merged
	if candidate.QualityScore > existing.QualityScore {
		existing.QualityScore = candidate.QualityScore
		changed = true
	}
	// A duplicate sighting from any source revives an archived record.
	if !existing.IsActive {
		existing.IsActive = true
		changed = true
	}
	return changed, conflicts
}

func (r *Resolver) priority(source string) int {
	return r.priorities[source]
}

func unionKeywords(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := a
	for _, kw := range a {
		seen[normKeyword(kw)] = true
	}
	for _, kw := range b {
		if !seen[normKeyword(kw)] {
			seen[normKeyword(kw)] = true
			out = append(out, kw)
		}
	}
	return out
}

func normKeyword(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b = append(b, c)
	}
	return string(b)
}

// stripeFor picks the lock stripe for a candidate. Identifier-bearing
// candidates key on their strongest identifier, the rest on the
// normalized title, so duplicates contend on the same stripe.
func stripeFor(r *types.Resource) int {
	key := r.Identifiers.ISBN
	if key == "" {
		key = r.Identifiers.ISSN
	}
	if key == "" {
		key = r.Identifiers.OCLCNumber
	}
	if key == "" {
		key = r.Identifiers.DOI
	}
	if key == "" {
		key = store.TitleKey(r.Title)
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % stripes)
}
