// Copyright MMU Library, 2026. All rights reserved.

package dedup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MMU-Library/OER-Phoenix/internal/store"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

func testResolver(t *testing.T, priorities map[string]int) (*Resolver, *store.Store) {
	t.Helper()
	s, err := store.Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "oer.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return NewResolver(s, types.DedupConfig{TitleSimilarityThreshold: 0.85}, priorities, nil), s
}

func candidate(title, author, source string) *types.Resource {
	return &types.Resource{
		Title:        title,
		Author:       author,
		Source:       source,
		Type:         types.TypeBook,
		QualityScore: types.DefaultQualityScore,
		IsActive:     true,
	}
}

func TestResolveSharedISBNMerges(t *testing.T) {
	r, _ := testResolver(t, nil)
	ctx := context.Background()

	first := candidate("Open Biology", "Jane Smith", "oapen")
	first.Identifiers.ISBN = "9781234567890"
	d1, err := r.Resolve(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if d1.Action != ActionCreate {
		t.Fatalf("first resolve action = %s", d1.Action)
	}

	// Same ISBN, cosmetically different title, extra metadata.
	second := candidate("Open Biology: An Introduction", "Jane Smith", "doab")
	second.Identifiers.ISBN = "9781234567890"
	second.Publisher = "Open Press"
	d2, err := r.Resolve(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if d2.Action != ActionUpdate {
		t.Fatalf("second resolve action = %s, want update", d2.Action)
	}
	if d2.ResourceID != d1.ResourceID {
		t.Errorf("merged into %d, want %d", d2.ResourceID, d1.ResourceID)
	}
}

func TestResolveFuzzyTitleMatch(t *testing.T) {
	r, _ := testResolver(t, nil)
	ctx := context.Background()

	d1, err := r.Resolve(ctx, candidate("Introduction to Linear Algebra", "G. Strang", "src-a"))
	if err != nil {
		t.Fatal(err)
	}

	d2, err := r.Resolve(ctx, candidate("Introduction to Linear Algebra.", "Gilbert Strang", "src-b"))
	if err != nil {
		t.Fatal(err)
	}
	if d2.Action == ActionCreate {
		t.Error("near-identical title with compatible author should not create a new record")
	}
	if d2.ResourceID != d1.ResourceID {
		t.Errorf("resolved to %d, want %d", d2.ResourceID, d1.ResourceID)
	}
}

func TestResolveDissimilarAuthorStaysDistinct(t *testing.T) {
	r, _ := testResolver(t, nil)
	ctx := context.Background()

	d1, err := r.Resolve(ctx, candidate("Calculus", "James Stewart", "src-a"))
	if err != nil {
		t.Fatal(err)
	}
	d2, err := r.Resolve(ctx, candidate("Calculus", "Michael Spivak", "src-b"))
	if err != nil {
		t.Fatal(err)
	}
	if d2.Action != ActionCreate {
		t.Errorf("same title, different author: action = %s, want create", d2.Action)
	}
	if d2.ResourceID == d1.ResourceID {
		t.Error("distinct works collapsed into one record")
	}
}

func TestMergeFillsEmptyAndRecordsConflicts(t *testing.T) {
	r, s := testResolver(t, map[string]int{"trusted": 10, "bulk": 1})
	ctx := context.Background()

	first := candidate("Open Chemistry", "A. Jones", "bulk")
	first.Identifiers.ISBN = "9780000000010"
	first.License = "CC-BY"
	if _, err := r.Resolve(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := candidate("Open Chemistry", "A. Jones", "trusted")
	second.Identifiers.ISBN = "9780000000010"
	second.License = "CC-BY-SA"
	second.Publisher = "Open Press"
	d, err := r.Resolve(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionUpdate {
		t.Fatalf("action = %s", d.Action)
	}
	if len(d.Conflicts) != 1 || d.Conflicts[0].Field != "license" {
		t.Fatalf("conflicts = %+v, want one license conflict", d.Conflicts)
	}

	got, err := s.GetByID(ctx, d.ResourceID)
	if err != nil {
		t.Fatal(err)
	}
	// Higher-priority source wins the disagreement; empty field filled.
	if got.License != "CC-BY-SA" {
		t.Errorf("License = %q, want trusted source's value", got.License)
	}
	if got.Publisher != "Open Press" {
		t.Errorf("Publisher = %q, want filled from incoming", got.Publisher)
	}
}

func TestMergePersistsFillOnlyEnrichment(t *testing.T) {
	r, s := testResolver(t, nil)
	ctx := context.Background()

	// First sighting carries nothing beyond the descriptive minimum.
	d1, err := r.Resolve(ctx, candidate("Open Biology", "Jane Smith", "src-a"))
	if err != nil {
		t.Fatal(err)
	}

	// Second sighting contributes only fields outside the embedding
	// text: an ISBN and a publisher.
	second := candidate("Open Biology", "Jane Smith", "src-b")
	second.Identifiers.ISBN = "9781234567890"
	second.Publisher = "Open Press"
	d2, err := r.Resolve(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if d2.Action != ActionUpdate {
		t.Fatalf("fill-only enrichment: action = %s, want update", d2.Action)
	}

	got, err := s.GetByID(ctx, d1.ResourceID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Identifiers.ISBN != "9781234567890" {
		t.Errorf("ISBN = %q, want filled value persisted", got.Identifiers.ISBN)
	}
	if got.Publisher != "Open Press" {
		t.Errorf("Publisher = %q, want filled value persisted", got.Publisher)
	}

	// The persisted ISBN must now drive identifier-precedence matching.
	found, err := s.FindByIdentifier(ctx, types.Identifiers{ISBN: "9781234567890"})
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.ID != d1.ResourceID {
		t.Errorf("identifier lookup after enrichment = %+v, want resource %d", found, d1.ResourceID)
	}
}

func TestResolveIdenticalSkips(t *testing.T) {
	r, _ := testResolver(t, nil)
	ctx := context.Background()

	build := func() *types.Resource {
		c := candidate("Open Physics", "P. Dirac", "src-a")
		c.Identifiers.ISBN = "9780000000020"
		c.Description = "A physics text."
		return c
	}
	if _, err := r.Resolve(ctx, build()); err != nil {
		t.Fatal(err)
	}
	d, err := r.Resolve(ctx, build())
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != ActionSkip {
		t.Errorf("re-ingesting identical record: action = %s, want skip", d.Action)
	}
}

func TestTokenSetSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"open biology", "open biology", 1, 1},
		{"open biology an introduction", "an introduction open biology", 1, 1},
		{"open biology", "closed physics", 0, 0},
		{"introduction to statistics", "introduction to statistics 2nd edition", 0.5, 0.99},
	}
	for _, tt := range tests {
		got := TokenSetSimilarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("TokenSetSimilarity(%q, %q) = %f, want in [%f, %f]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}
