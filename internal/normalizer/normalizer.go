// Package normalizer lowercases and whitespace-folds document text for
// change detection and shingling (spec.md §4.2).
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Result is the deterministic normal form of an input text plus its word
// count and content hash.
type Result struct {
	Normalized  string
	WordCount   int
	ContentHash string // hex SHA-256 of Normalized
}

// Normalize lowercases text by Unicode simple case-folding, collapses any
// run of whitespace to a single space, trims leading/trailing spaces, and
// counts words. Deterministic: the same input always yields the same
// output, and Normalize is idempotent — Normalize(Normalize(t).Normalized)
// reproduces the same Result.
func Normalize(text string) Result {
	folded := strings.ToLower(text)
	folded = collapseWhitespace(folded)

	wordCount := 0
	if folded != "" {
		wordCount = strings.Count(folded, " ") + 1
	}

	sum := sha256.Sum256([]byte(folded))
	return Result{
		Normalized:  folded,
		WordCount:   wordCount,
		ContentHash: hex.EncodeToString(sum[:]),
	}
}

// collapseWhitespace collapses every run of Unicode whitespace to a single
// ASCII space and trims the result.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
