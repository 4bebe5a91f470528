// Copyright MMU Library, 2026. All rights reserved.

package normalize

import (
	"reflect"
	"testing"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

func testSource() types.SourceConfig {
	return types.SourceConfig{
		Name:     "test-source",
		Protocol: types.ProtocolAPI,
		Endpoint: "https://example.org/api",
	}
}

func TestNormalizeMissingTitle(t *testing.T) {
	raw := types.RawRecord{"url": "https://example.org/r/1"}

	_, err := Normalize(raw, testSource())
	var nerr *types.NormalizationError
	if err == nil {
		t.Fatal("expected NormalizationError, got nil")
	}
	if !asNormalizationError(err, &nerr) {
		t.Fatalf("expected *types.NormalizationError, got %T", err)
	}
	if nerr.Field != "title" {
		t.Errorf("Field = %q, want title", nerr.Field)
	}
}

func asNormalizationError(err error, target **types.NormalizationError) bool {
	e, ok := err.(*types.NormalizationError)
	if ok {
		*target = e
	}
	return ok
}

func TestNormalizeFieldMappingOverridesAliases(t *testing.T) {
	cfg := testSource()
	cfg.FieldMappings = map[string]string{"title": "dc_title"}

	raw := types.RawRecord{
		"dc_title": "Mapped Title",
		"name":     "Alias Title",
	}
	r, err := Normalize(raw, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if r.Title != "Mapped Title" {
		t.Errorf("Title = %q, want mapped value", r.Title)
	}
}

func TestNormalizeURLInvariant(t *testing.T) {
	tests := []struct {
		name    string
		urlVal  string
		wantURL string
		wantRaw string
	}{
		{"valid https", "https://library.oapen.org/handle/20.500.12657/1", "https://library.oapen.org/handle/20.500.12657/1", ""},
		{"valid http", "http://example.org/book", "http://example.org/book", ""},
		{"onix filename", "9781234567890.onix.xml", "", "9781234567890.onix.xml"},
		{"catalog number", "OCN-881415212", "", "OCN-881415212"},
		{"scheme only", "https://", "", "https://"},
		{"ftp rejected", "ftp://example.org/file", "", "ftp://example.org/file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := types.RawRecord{"title": "T", "url": tt.urlVal}
			r, err := Normalize(raw, testSource())
			if err != nil {
				t.Fatal(err)
			}
			if r.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", r.URL, tt.wantURL)
			}
			if r.RawIdentifier != tt.wantRaw {
				t.Errorf("RawIdentifier = %q, want %q", r.RawIdentifier, tt.wantRaw)
			}
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	raw := types.RawRecord{
		"title":       "Open Biology",
		"type":        "Open Textbook",
		"url":         "https://example.org/bio",
		"subject":     "Biology, Genetics",
		"language":    "eng",
		"isbn":        "978-1-23456-789-0",
		"description": "An open biology textbook.",
	}
	first, err := Normalize(raw, testSource())
	if err != nil {
		t.Fatal(err)
	}
	second, err := Normalize(raw, testSource())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Normalize is not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if first.Type != types.TypeBook {
		t.Errorf("Type = %q, want book", first.Type)
	}
	if first.Language != "en" {
		t.Errorf("Language = %q, want en", first.Language)
	}
	if first.Identifiers.ISBN != "9781234567890" {
		t.Errorf("ISBN = %q, want cleaned digits", first.Identifiers.ISBN)
	}
	if first.ContentHash == "" {
		t.Error("ContentHash not computed")
	}
}

func TestNormalizeRawIdentifierClassified(t *testing.T) {
	raw := types.RawRecord{
		"title": "DOI-linked item",
		"url":   "doi:10.5281/zenodo.1234567",
	}
	r, err := Normalize(raw, testSource())
	if err != nil {
		t.Fatal(err)
	}
	if r.URL != "" {
		t.Errorf("URL = %q, want empty", r.URL)
	}
	if r.Identifiers.DOI != "10.5281/zenodo.1234567" {
		t.Errorf("DOI = %q, want extracted from raw identifier", r.Identifiers.DOI)
	}
}

func TestMapResourceType(t *testing.T) {
	tests := []struct {
		raw, format, level string
		deflt              types.ResourceType
		want               types.ResourceType
	}{
		{"book", "", "", "", types.TypeBook},
		{"Monograph", "", "", "", types.TypeBook},
		{"book chapter", "", "", "", types.TypeChapter},
		{"journal article", "", "", "", types.TypeArticle},
		{"Recorded lecture", "", "", "", types.TypeVideo},
		{"online module", "", "", "", types.TypeCourse},
		{"", "PDF textbook", "", "", types.TypeBook},
		{"", "", "undergraduate course", "", types.TypeCourse},
		{"", "", "", types.TypeBook, types.TypeBook},
		{"dataset", "", "", "", types.TypeOther},
		{"", "", "", "", types.TypeOther},
	}
	for _, tt := range tests {
		got := MapResourceType(tt.raw, tt.format, tt.level, tt.deflt)
		if got != tt.want {
			t.Errorf("MapResourceType(%q, %q, %q, %q) = %q, want %q",
				tt.raw, tt.format, tt.level, tt.deflt, got, tt.want)
		}
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"eng", "en"},
		{"English", "en"},
		{"en-US", "en"},
		{"pt_BR", "pt"},
		{"fre", "fr"},
		{"cym", "cy"},
		{"xx", "xx"},   // unknown passes through
		{"Klingon", "klingon"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeLanguage(tt.in); got != tt.want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanIdentifiers(t *testing.T) {
	if got := CleanISBN("978-0-306-40615-7"); got != "9780306406157" {
		t.Errorf("CleanISBN = %q", got)
	}
	if got := CleanISBN("043942089X"); got != "043942089X" {
		t.Errorf("CleanISBN(isbn10) = %q", got)
	}
	if got := CleanISBN("urn:isbn:9781234567890"); got != "9781234567890" {
		t.Errorf("CleanISBN(urn) = %q", got)
	}
	if got := CleanISBN("not-an-isbn"); got != "" {
		t.Errorf("CleanISBN(junk) = %q, want empty", got)
	}
	if got := CleanISSN("2049-3630"); got != "2049-3630" {
		t.Errorf("CleanISSN = %q", got)
	}
	if got := CleanISSN("20493630"); got != "2049-3630" {
		t.Errorf("CleanISSN(bare) = %q", got)
	}
	if got := CleanDOI("https://doi.org/10.1000/xyz123"); got != "10.1000/xyz123" {
		t.Errorf("CleanDOI = %q", got)
	}
	if got := CleanDOI("no doi here"); got != "" {
		t.Errorf("CleanDOI(junk) = %q, want empty", got)
	}
}

func TestSplitKeywords(t *testing.T) {
	got := SplitKeywords("Biology, Genetics; biology , Cell Science")
	want := []string{"Biology", "Genetics", "Cell Science"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitKeywords = %v, want %v", got, want)
	}
	if SplitKeywords("  ") != nil {
		t.Error("SplitKeywords(blank) should be nil")
	}
}
