// Copyright MMU Library, 2026. All rights reserved.

package normalize

import (
	"strings"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// typeTable maps exact raw type strings to the closed set. Checked
// before the keyword heuristics so explicit catalog vocabularies win.
var typeTable = map[string]types.ResourceType{
	"book":       types.TypeBook,
	"ebook":      types.TypeBook,
	"monograph":  types.TypeBook,
	"textbook":   types.TypeBook,
	"chapter":    types.TypeChapter,
	"article":    types.TypeArticle,
	"journal":    types.TypeArticle,
	"serial":     types.TypeArticle,
	"video":      types.TypeVideo,
	"course":     types.TypeCourse,
	"coursework": types.TypeCourse,
	"moocs":      types.TypeCourse,
}

// typeHints pairs substring hints with their mapped type, in precedence
// order. Chapter outranks book so "book chapter" maps to chapter.
var typeHints = []struct {
	hint string
	t    types.ResourceType
}{
	{"chapter", types.TypeChapter},
	{"section", types.TypeChapter},
	{"part", types.TypeChapter},
	{"book", types.TypeBook},
	{"monograph", types.TypeBook},
	{"textbook", types.TypeBook},
	{"article", types.TypeArticle},
	{"journal", types.TypeArticle},
	{"paper", types.TypeArticle},
	{"video", types.TypeVideo},
	{"lecture", types.TypeVideo},
	{"recording", types.TypeVideo},
	{"course", types.TypeCourse},
	{"module", types.TypeCourse},
	{"unit", types.TypeCourse},
}

// MapResourceType resolves a raw type string into the closed set. It
// tries the exact table, then substring heuristics over the raw type,
// then the format and level hints, then the source's default, and
// finally TypeOther. The mapping is deterministic and idempotent: the
// same inputs always yield the same type.
func MapResourceType(rawType, format, level string, defaultType types.ResourceType) types.ResourceType {
	if t, ok := typeTable[strings.ToLower(strings.TrimSpace(rawType))]; ok {
		return t
	}
	for _, hinted := range []string{rawType, format, level} {
		lower := strings.ToLower(hinted)
		if lower == "" {
			continue
		}
		for _, h := range typeHints {
			if strings.Contains(lower, h.hint) {
				return h.t
			}
		}
	}
	if defaultType != "" && types.ValidResourceType(defaultType) {
		return defaultType
	}
	return types.TypeOther
}
