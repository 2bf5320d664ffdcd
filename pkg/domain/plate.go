package domain

import (
	"strings"
	"unicode"
)

// NormalizePlate canonicalizes a plate number: trimmed, upper-cased, all
// internal whitespace removed. Applied before every lookup AND every write so
// a record can never become unreachable through formatting variance.
func NormalizePlate(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// NormalizePlates maps NormalizePlate over a list, dropping entries that
// normalize to empty.
func NormalizePlates(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if n := NormalizePlate(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
