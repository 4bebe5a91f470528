// Copyright MMU Library, 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MMU-Library/OER-Phoenix/internal/store"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

type fakeProvider struct {
	vec []float32
	err error
}

func (f *fakeProvider) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i := range out {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int { return len(f.vec) }

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "oer.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insert(t *testing.T, s *store.Store, r *types.Resource) int64 {
	t.Helper()
	if r.QualityScore == 0 {
		r.QualityScore = types.DefaultQualityScore
	}
	r.IsActive = true
	if r.Source == "" {
		r.Source = "test"
	}
	if r.Type == "" {
		r.Type = types.TypeBook
	}
	id, err := s.Insert(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestSearchExactTitleFirst(t *testing.T) {
	s := testStore(t)
	insert(t, s, &types.Resource{Title: "Advanced Linear Algebra Applications for Engineers"})
	insert(t, s, &types.Resource{Title: "Linear Algebra"})

	e := NewEngine(s, nil, types.SearchConfig{}, nil)
	out, err := e.Search(context.Background(), "Linear Algebra", store.Filter{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(out.Results))
	}
	if out.Results[0].Resource.Title != "Linear Algebra" {
		t.Errorf("top result = %q, want exact title first", out.Results[0].Resource.Title)
	}
}

func TestSearchProviderFailureDegrades(t *testing.T) {
	s := testStore(t)
	insert(t, s, &types.Resource{Title: "Open Statistics"})

	provider := &fakeProvider{err: &types.EmbeddingUnavailableError{Err: errors.New("connection refused")}}
	e := NewEngine(s, provider, types.SearchConfig{}, nil)

	out, err := e.Search(context.Background(), "statistics", store.Filter{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Degraded {
		t.Error("Degraded flag not set")
	}
	if len(out.Results) != 1 {
		t.Fatalf("results = %d, want lexical fallback hit", len(out.Results))
	}
	if out.Results[0].Reason != types.MatchLexicalDegraded {
		t.Errorf("reason = %s, want lexical-degraded", out.Results[0].Reason)
	}
}

func TestSearchHybridMerge(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	both := insert(t, s, &types.Resource{Title: "Open Machine Learning", Description: "An ML textbook."})
	semOnly := insert(t, s, &types.Resource{Title: "Statistical Inference"})
	insert(t, s, &types.Resource{Title: "Machine Learning Exercises"})

	if err := s.SetEmbedding(ctx, both, []float32{1, 0, 0}, "h"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetEmbedding(ctx, semOnly, []float32{0.9, 0.1, 0}, "h"); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(s, &fakeProvider{vec: []float32{1, 0, 0}}, types.SearchConfig{}, nil)
	out, err := e.Search(ctx, "machine learning", store.Filter{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if out.Degraded {
		t.Error("Degraded set with a working provider")
	}
	if len(out.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(out.Results))
	}

	top := out.Results[0]
	if top.Resource.ID != both {
		t.Errorf("top result = %q, want the both-channel hit", top.Resource.Title)
	}
	if top.Reason != types.MatchHybrid {
		t.Errorf("top reason = %s, want hybrid", top.Reason)
	}
	if top.SemanticScore <= 0 || top.LexicalScore <= 0 {
		t.Errorf("both channel scores should be set: sem=%f lex=%f", top.SemanticScore, top.LexicalScore)
	}

	reasons := make(map[int64]types.MatchReason)
	for _, r := range out.Results {
		reasons[r.Resource.ID] = r.Reason
	}
	if reasons[semOnly] != types.MatchSemantic {
		t.Errorf("semantic-only hit reason = %s", reasons[semOnly])
	}
}

func TestSearchKeywordReasonWithoutEmbedding(t *testing.T) {
	s := testStore(t)
	insert(t, s, &types.Resource{Title: "Open Chemistry"})

	// Provider works but nothing has an embedding: the lexical hit is a
	// plain keyword match, not a degradation.
	e := NewEngine(s, &fakeProvider{vec: []float32{1, 0}}, types.SearchConfig{}, nil)
	out, err := e.Search(context.Background(), "chemistry", store.Filter{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if out.Degraded {
		t.Error("Degraded set with a working provider")
	}
	if len(out.Results) != 1 || out.Results[0].Reason != types.MatchKeyword {
		t.Fatalf("results = %+v, want one keyword match", out.Results)
	}
}

func TestSearchIdentifierExact(t *testing.T) {
	s := testStore(t)
	r := &types.Resource{Title: "Open Biology"}
	r.Identifiers.ISBN = "9781234567890"
	insert(t, s, r)
	insert(t, s, &types.Resource{Title: "Open Biology Second Edition"})

	e := NewEngine(s, nil, types.SearchConfig{}, nil)
	out, err := e.Search(context.Background(), "", store.Filter{ISBN: "9781234567890"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(out.Results))
	}
	if out.Results[0].Reason != types.MatchIdentifierExact {
		t.Errorf("reason = %s", out.Results[0].Reason)
	}
	if out.Results[0].FinalScore != 1.0 {
		t.Errorf("score = %f, want 1.0", out.Results[0].FinalScore)
	}
}

func TestSearchQualityOnly(t *testing.T) {
	s := testStore(t)
	low := &types.Resource{Title: "Welsh Grammar", Language: "cy", QualityScore: 2}
	high := &types.Resource{Title: "Welsh Literature", Language: "cy", QualityScore: 4.5}
	insert(t, s, low)
	insert(t, s, high)
	insert(t, s, &types.Resource{Title: "English Grammar", Language: "en"})

	e := NewEngine(s, nil, types.SearchConfig{}, nil)
	out, err := e.Search(context.Background(), "", store.Filter{Language: "cy"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(out.Results))
	}
	if out.Results[0].Resource.Title != "Welsh Literature" {
		t.Errorf("top = %q, want highest quality first", out.Results[0].Resource.Title)
	}
	for _, r := range out.Results {
		if r.Reason != types.MatchQualityOnly {
			t.Errorf("reason = %s, want quality-only", r.Reason)
		}
	}
}

func TestSearchInvalidQueries(t *testing.T) {
	e := NewEngine(testStore(t), nil, types.SearchConfig{}, nil)

	_, err := e.Search(context.Background(), "", store.Filter{}, 10)
	var invalid *types.InvalidQueryError
	if !errors.As(err, &invalid) {
		t.Errorf("empty query, empty filter: got %v, want InvalidQueryError", err)
	}

	_, err = e.Search(context.Background(), "query", store.Filter{}, -1)
	if !errors.As(err, &invalid) {
		t.Errorf("negative limit: got %v, want InvalidQueryError", err)
	}
}
