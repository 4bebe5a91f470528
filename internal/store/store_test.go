// Copyright MMU Library, 2026. All rights reserved.

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "oer.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testResource(title string) *types.Resource {
	return &types.Resource{
		Title:        title,
		Description:  "A description of " + title,
		Type:         types.TypeBook,
		Source:       "test-source",
		Language:     "en",
		QualityScore: types.DefaultQualityScore,
		IsActive:     true,
	}
}

func TestInsertAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	r := testResource("Open Biology")
	r.Identifiers.ISBN = "9781234567890"
	r.Keywords = []string{"biology", "genetics"}

	id, err := s.Insert(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := s.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Open Biology" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.Identifiers.ISBN != "9781234567890" {
		t.Errorf("ISBN = %q", got.Identifiers.ISBN)
	}
	if len(got.Keywords) != 2 {
		t.Errorf("Keywords = %v", got.Keywords)
	}
	if got.Embedding != nil {
		t.Error("embedding should be nil until computed")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestFindByIdentifierPrecedence(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	byISBN := testResource("Has ISBN")
	byISBN.Identifiers.ISBN = "9780000000001"
	if _, err := s.Insert(ctx, byISBN); err != nil {
		t.Fatal(err)
	}
	byDOI := testResource("Has DOI")
	byDOI.Identifiers.DOI = "10.1000/abc"
	if _, err := s.Insert(ctx, byDOI); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindByIdentifier(ctx, types.Identifiers{ISBN: "9780000000001", DOI: "10.1000/abc"})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Title != "Has ISBN" {
		t.Errorf("ISBN lookup should win precedence, got %+v", got)
	}

	got, err = s.FindByIdentifier(ctx, types.Identifiers{DOI: "10.1000/abc"})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Title != "Has DOI" {
		t.Errorf("DOI lookup failed, got %+v", got)
	}

	got, err = s.FindByIdentifier(ctx, types.Identifiers{ISBN: "9789999999999"})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("unknown identifier should return nil, got %+v", got)
	}
}

func TestLexicalSearch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := testResource("Introduction to Statistics")
	a.Description = "Probability, inference and statistics for undergraduates."
	b := testResource("Medieval History")
	b.Description = "Europe in the middle ages."
	for _, r := range []*types.Resource{a, b} {
		if _, err := s.Insert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.Lexical(ctx, "statistics inference", Filter{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Resource.Title != "Introduction to Statistics" {
		t.Errorf("top result = %q", results[0].Resource.Title)
	}
	if results[0].Score <= 0 || results[0].Score > 1 {
		t.Errorf("lexical score %f outside (0,1]", results[0].Score)
	}
}

func TestLexicalFilterIsPreFilter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	en := testResource("Chemistry Basics")
	en.Language = "en"
	cy := testResource("Chemistry Basics Welsh Edition")
	cy.Language = "cy"
	for _, r := range []*types.Resource{en, cy} {
		if _, err := s.Insert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.Lexical(ctx, "chemistry", Filter{Language: "cy"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Resource.Language != "cy" {
		t.Errorf("filter not applied before scoring: %+v", results)
	}
}

func TestNearest(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	near := testResource("Close Vector")
	far := testResource("Far Vector")
	noEmb := testResource("No Embedding")
	nearID, _ := s.Insert(ctx, near)
	farID, _ := s.Insert(ctx, far)
	if _, err := s.Insert(ctx, noEmb); err != nil {
		t.Fatal(err)
	}

	if err := s.SetEmbedding(ctx, nearID, []float32{1, 0, 0}, "h1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetEmbedding(ctx, farID, []float32{0, 1, 0}, "h2"); err != nil {
		t.Fatal(err)
	}

	results, err := s.Nearest(ctx, []float32{0.9, 0.1, 0}, 10, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	// The resource without an embedding is excluded from this channel.
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Resource.ID != nearID {
		t.Errorf("nearest first = %d, want %d", results[0].Resource.ID, nearID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not ordered: %f <= %f", results[0].Score, results[1].Score)
	}
}

func TestMissingEmbeddings(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	fresh := testResource("Fresh")
	fresh.ContentHash = fresh.ComputeContentHash()
	stale := testResource("Stale")
	stale.ContentHash = stale.ComputeContentHash()
	never := testResource("Never")
	never.ContentHash = never.ComputeContentHash()

	freshID, _ := s.Insert(ctx, fresh)
	staleID, _ := s.Insert(ctx, stale)
	if _, err := s.Insert(ctx, never); err != nil {
		t.Fatal(err)
	}

	s.SetEmbedding(ctx, freshID, []float32{1}, fresh.ContentHash)
	s.SetEmbedding(ctx, staleID, []float32{1}, "old-hash")

	missing, err := s.MissingEmbeddings(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	titles := make(map[string]bool)
	for _, r := range missing {
		titles[r.Title] = true
	}
	if len(missing) != 2 || !titles["Stale"] || !titles["Never"] {
		t.Errorf("missing = %v", titles)
	}
}

func TestArchiveExcludesFromQueries(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	r := testResource("Archived Chemistry")
	r.Identifiers.ISBN = "9780000000002"
	id, err := s.Insert(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Archive(ctx, id); err != nil {
		t.Fatal(err)
	}

	found, err := s.FindByIdentifier(ctx, types.Identifiers{ISBN: "9780000000002"})
	if err != nil {
		t.Fatal(err)
	}
	if found != nil {
		t.Error("archived resource visible to identifier lookup")
	}

	results, err := s.Lexical(ctx, "chemistry", Filter{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Error("archived resource visible to lexical search")
	}

	// Still reachable by id so old coverage reports resolve.
	got, err := s.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Error("archived resource still active")
	}
}

func TestTitleKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Attention Is All You Need!", "attention is all you need"},
		{"  Open   Biology: 2nd Edition ", "open biology 2nd edition"},
		{"Stats-101", "stats 101"},
	}
	for _, tt := range tests {
		if got := TitleKey(tt.in); got != tt.want {
			t.Errorf("TitleKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFacets(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := testResource("A")
	a.License = "CC-BY"
	b := testResource("B")
	b.Language = "cy"
	b.Type = types.TypeCourse
	for _, r := range []*types.Resource{a, b} {
		if _, err := s.Insert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	facets, err := s.Facets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(facets["languages"]) != 2 {
		t.Errorf("languages = %v", facets["languages"])
	}
	if len(facets["types"]) != 2 {
		t.Errorf("types = %v", facets["types"])
	}
	if len(facets["licenses"]) != 1 || facets["licenses"][0] != "CC-BY" {
		t.Errorf("licenses = %v", facets["licenses"])
	}
}
