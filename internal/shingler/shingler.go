// Package shingler produces hashed word n-grams ("shingles") from
// normalized text (spec.md §4.3). It is the first stage that actually
// feeds the MinHash/LSH pipeline, the way ivoronin-dupedog's
// internal/screener is the first filtering stage of its pipeline.
package shingler

import (
	"hash/fnv"
	"strings"
)

// Options configures shingle extraction.
type Options struct {
	// NgramSize is the number of consecutive word tokens per shingle.
	NgramSize int
	// MinWords is the minimum post-split word count a document must have;
	// below this, the MinHash error bound is unreliable and the document
	// is rejected rather than shingled.
	MinWords int
}

// DefaultOptions matches spec.md §4.3's defaults.
func DefaultOptions() Options {
	return Options{NgramSize: 3, MinWords: 20}
}

// ErrTooShort is returned when the text has fewer than MinWords tokens.
type ErrTooShort struct {
	WordCount int
	MinWords  int
}

func (e *ErrTooShort) Error() string {
	return "text too short to shingle"
}

// Shingle tokenizes text on runs of whitespace and returns the set of
// FNV-1a 32-bit hashes of every contiguous NgramSize-token window, joined
// with single spaces. Duplicate n-grams collapse into the same set entry.
// Returns *ErrTooShort if the token count is below opts.MinWords.
func Shingle(text string, opts Options) (map[uint32]struct{}, error) {
	tokens := strings.Fields(text)

	if len(tokens) < opts.MinWords {
		return nil, &ErrTooShort{WordCount: len(tokens), MinWords: opts.MinWords}
	}
	if opts.NgramSize < 1 || len(tokens) < opts.NgramSize {
		return nil, &ErrTooShort{WordCount: len(tokens), MinWords: opts.MinWords}
	}

	shingles := make(map[uint32]struct{}, len(tokens)-opts.NgramSize+1)
	for i := 0; i+opts.NgramSize <= len(tokens); i++ {
		ngram := strings.Join(tokens[i:i+opts.NgramSize], " ")
		shingles[hashFNV1a32(ngram)] = struct{}{}
	}
	return shingles, nil
}

// hashFNV1a32 hashes s with 32-bit FNV-1a.
func hashFNV1a32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
