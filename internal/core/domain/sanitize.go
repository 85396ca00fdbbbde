package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Characters rejected by common filesystems and cloud providers.
const invalidFilenameChars = `/\:*?"<>|`

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeFilename turns a user-supplied name into a safe filename slug:
// diacritics are folded to their base letters, control characters are
// dropped, and characters invalid on common filesystems become underscores.
// Returns an empty string when nothing usable remains.
func SanitizeFilename(name string) string {
	if folded, _, err := transform.String(foldTransformer, name); err == nil {
		name = folded
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsControl(r):
			// drop
		case strings.ContainsRune(invalidFilenameChars, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	out := strings.Trim(b.String(), " .")
	if rs := []rune(out); len(rs) > 200 {
		out = strings.Trim(string(rs[:200]), " .")
	}
	return out
}
