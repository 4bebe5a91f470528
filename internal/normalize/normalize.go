// Copyright MMU Library, 2026. All rights reserved.

// Package normalize maps raw harvested records into canonical Resource
// records: per-source field mapping, language and resource-type
// normalization, URL validation, and identifier cleanup.
package normalize

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// builtinAliases lists the source field names tried for each canonical
// field when the source config does not map it explicitly. Drawn from
// the field shapes of the catalogs we harvest (REST APIs, oai_dc,
// KBART, ad-hoc CSV exports).
var builtinAliases = map[string][]string{
	"title":         {"title", "name", "publication_title", "article_title"},
	"url":           {"url", "link", "title_url"},
	"description":   {"description", "summary", "abstract"},
	"license":       {"license", "rights"},
	"publisher":     {"publisher", "provider", "publisher_name"},
	"author":        {"author", "creator", "owner", "first_author", "first_editor"},
	"language":      {"language", "lang"},
	"resource_type": {"resource_type", "type", "publication_type"},
	"subject":       {"subject", "subjects", "category", "keywords"},
	"format":        {"format"},
	"level":         {"level", "educational_level"},
	"isbn":          {"isbn", "print_identifier", "print_isbn"},
	"issn":          {"issn"},
	"oclc_number":   {"oclc_number", "oclc"},
	"doi":           {"doi", "online_identifier"},
	"identifier":    {"identifier"},
}

// field extracts one canonical field from raw, preferring the source's
// explicit mapping over the built-in aliases.
func field(raw types.RawRecord, cfg types.SourceConfig, name string) string {
	if mapped, ok := cfg.FieldMappings[name]; ok && mapped != "" {
		if v := raw.Get(mapped); v != "" {
			return v
		}
	}
	return raw.Get(builtinAliases[name]...)
}

// Normalize maps one raw record into a canonical Resource. It returns a
// *types.NormalizationError when mandatory fields cannot be derived;
// harvesters record that as a per-record error and continue.
//
// Normalize is deterministic: the same raw record always yields an
// identical Resource.
func Normalize(raw types.RawRecord, cfg types.SourceConfig) (*types.Resource, error) {
	title := strings.TrimSpace(field(raw, cfg, "title"))
	if title == "" {
		return nil, &types.NormalizationError{
			Source: cfg.Name,
			Field:  "title",
			Reason: "missing or empty",
		}
	}

	r := &types.Resource{
		Title:       title,
		Description: field(raw, cfg, "description"),
		Author:      field(raw, cfg, "author"),
		Publisher:   field(raw, cfg, "publisher"),
		Subject:     field(raw, cfg, "subject"),
		License:     field(raw, cfg, "license"),
		Format:      field(raw, cfg, "format"),
		Level:       field(raw, cfg, "level"),
		Source:      cfg.Name,
		IsActive:    true,
	}

	r.Language = NormalizeLanguage(field(raw, cfg, "language"))

	rawType := field(raw, cfg, "resource_type")
	r.RawType = rawType
	r.Type = MapResourceType(rawType, r.Format, r.Level, cfg.DefaultType)

	// URL invariant: only syntactically valid absolute http(s) URLs
	// are stored in URL. Anything else (ONIX filenames, catalog
	// numbers, bare ISBNs) goes to RawIdentifier so it can never
	// surface as a clickable link downstream.
	for _, candidate := range []string{field(raw, cfg, "url"), field(raw, cfg, "identifier")} {
		if candidate == "" {
			continue
		}
		if ValidURL(candidate) {
			if r.URL == "" {
				r.URL = candidate
			}
		} else if r.RawIdentifier == "" {
			r.RawIdentifier = candidate
		}
	}

	r.Identifiers = types.Identifiers{
		ISBN:       CleanISBN(field(raw, cfg, "isbn")),
		ISSN:       CleanISSN(field(raw, cfg, "issn")),
		OCLCNumber: CleanOCLC(field(raw, cfg, "oclc_number")),
		DOI:        CleanDOI(field(raw, cfg, "doi")),
	}
	// A non-URL identifier token may itself be a DOI or ISBN.
	if r.RawIdentifier != "" {
		if r.Identifiers.DOI == "" {
			if doi := CleanDOI(r.RawIdentifier); doi != "" {
				r.Identifiers.DOI = doi
			}
		}
		if r.Identifiers.ISBN == "" {
			if isbn := CleanISBN(r.RawIdentifier); isbn != "" {
				r.Identifiers.ISBN = isbn
			}
		}
	}

	r.Keywords = SplitKeywords(r.Subject)
	r.QualityScore = types.DefaultQualityScore
	r.ContentHash = r.ComputeContentHash()
	return r, nil
}

// ValidURL reports whether s is a syntactically valid absolute http(s)
// URL with a host.
func ValidURL(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), "http://") &&
		!strings.HasPrefix(strings.ToLower(s), "https://") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Host != ""
}

// SplitKeywords breaks a subject/keyword string on commas and
// semicolons into a trimmed, de-duplicated keyword set.
func SplitKeywords(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})
	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		key := strings.ToLower(p)
		if p == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

var doiPattern = regexp.MustCompile(`10\.\d{4,9}/\S+`)

// CleanDOI extracts a bare DOI from s, stripping resolver prefixes like
// https://doi.org/ and doi:. Returns "" when s holds no DOI.
func CleanDOI(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "doi:")
	m := doiPattern.FindString(s)
	return m
}

// CleanISBN strips separators and validates the length: 10 or 13
// characters, digits with an optional trailing X. Returns "" when s is
// not ISBN-shaped.
func CleanISBN(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"urn:isbn:", "isbn:", "isbn "} {
		if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = s[len(prefix):]
			break
		}
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == 'x' || r == 'X':
			return 'X'
		case r == '-' || r == ' ':
			return -1
		default:
			return 'z' // poison: any other rune invalidates
		}
	}, strings.TrimSpace(s))
	if strings.ContainsRune(cleaned, 'z') {
		return ""
	}
	if len(cleaned) != 10 && len(cleaned) != 13 {
		return ""
	}
	// X is only legal as the final check digit of an ISBN-10.
	if i := strings.IndexByte(cleaned, 'X'); i >= 0 && (len(cleaned) != 10 || i != 9) {
		return ""
	}
	return cleaned
}

// CleanISSN normalizes to the NNNN-NNNC hyphenated form, or "" when s
// is not ISSN-shaped.
func CleanISSN(s string) string {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	if len(cleaned) != 8 {
		return ""
	}
	for i, r := range cleaned {
		if r >= '0' && r <= '9' {
			continue
		}
		if r == 'X' && i == 7 {
			continue
		}
		return ""
	}
	return cleaned[:4] + "-" + cleaned[4:]
}

// CleanOCLC strips the (OCoLC)/ocm/ocn prefixes and validates that the
// remainder is all digits, or returns "".
func CleanOCLC(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.ToLower(s), "(ocolc)")
	s = strings.TrimPrefix(s, "ocm")
	s = strings.TrimPrefix(s, "ocn")
	s = strings.TrimSpace(s)
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return s
}
