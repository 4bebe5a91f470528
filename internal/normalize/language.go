// Copyright MMU Library, 2026. All rights reserved.

package normalize

import "strings"

// languageCodes maps common ISO 639-2 codes and English language names
// to their two-letter form. MARC 008 fields and library CSV exports
// mix all three shapes.
var languageCodes = map[string]string{
	"eng": "en", "english": "en",
	"fre": "fr", "fra": "fr", "french": "fr",
	"ger": "de", "deu": "de", "german": "de",
	"spa": "es", "spanish": "es",
	"ita": "it", "italian": "it",
	"por": "pt", "portuguese": "pt",
	"dut": "nl", "nld": "nl", "dutch": "nl",
	"wel": "cy", "cym": "cy", "welsh": "cy",
	"chi": "zh", "zho": "zh", "chinese": "zh",
	"jpn": "ja", "japanese": "ja",
	"ara": "ar", "arabic": "ar",
	"rus": "ru", "russian": "ru",
}

// NormalizeLanguage reduces a language value to a short ISO-like code:
// regional subtags are stripped ("en-US" becomes "en") and common
// three-letter codes and names are mapped to their two-letter form.
// Unrecognized codes pass through lowercased rather than being dropped.
func NormalizeLanguage(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return ""
	}
	// Strip regional subtag: en-US, pt_BR.
	if i := strings.IndexAny(v, "-_"); i > 0 {
		v = v[:i]
	}
	if short, ok := languageCodes[v]; ok {
		return short
	}
	return v
}
