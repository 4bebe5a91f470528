// Copyright MMU Library, 2026. All rights reserved.

package dedup

import "strings"

// TokenSetSimilarity is the Jaccard similarity of the word sets of two
// normalized strings. It ignores word order and repetition, which
// tolerates subtitle shuffling and edition suffixes in catalog titles.
func TokenSetSimilarity(a, b string) float64 {
	sa := tokenSet(a)
	sb := tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for tok := range sa {
		if sb[tok] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// authorsCompatible reports whether two author strings could plausibly
// name the same people. Either side empty is compatible; both present
// requires at least one shared name token longer than an initial.
func authorsCompatible(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	sa := nameTokens(a)
	sb := nameTokens(b)
	for tok := range sa {
		if sb[tok] {
			return true
		}
	}
	return false
}

func nameTokens(s string) map[string]bool {
	set := make(map[string]bool)
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, s)
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) > 1 {
			set[tok] = true
		}
	}
	return set
}
