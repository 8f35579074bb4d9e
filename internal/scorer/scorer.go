// Package scorer computes the multi-factor weighted similarity between two
// documents (spec.md §4.6): a MinHash-estimated Jaccard score, a fuzzy
// token-sort ratio over document text, and optional metadata/filename
// signals.
package scorer

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/arrowgate/docdedupe/internal/model"
)

// Weights are non-negative integers summing to 100 (validated by
// internal/config's ConfigService, spec.md §4.6 "Weight validity").
type Weights struct {
	Jaccard  int
	Fuzzy    int
	Metadata int
	Filename int
}

// Options configures a single Score call.
type Options struct {
	// Quick, when true, skips the expensive fuzzy/metadata/filename
	// stages and returns overall=jaccard (spec.md §4.6 "Quick mode").
	Quick bool
	// FuzzySampleSize caps how many runes of normalized text are compared
	// by the fuzzy stage.
	FuzzySampleSize int
}

// Result is the SimilarityResult of spec.md §4.6.
type Result struct {
	Overall  float64
	Jaccard  float64
	Fuzzy    float64
	Metadata *float64
	Filename *float64
}

// Score computes the SimilarityResult between a and b given a
// MinHash-estimated jaccard, the configured weights, and options.
func Score(a, b model.ScoringRecord, jaccard float64, weights Weights, opts Options) Result {
	if opts.Quick {
		return Result{Overall: jaccard, Jaccard: jaccard, Fuzzy: 0}
	}

	fuzzy := tokenSortRatio(sample(a.Normalized, opts.FuzzySampleSize), sample(b.Normalized, opts.FuzzySampleSize))
	metadata := metadataSimilarity(a, b)
	filename := tokenSortRatio(a.Title, b.Title)

	result := Result{
		Jaccard:  jaccard,
		Fuzzy:    fuzzy,
		Metadata: &metadata,
		Filename: &filename,
	}
	result.Overall = WeightedMean(weights, jaccard, fuzzy, &metadata, &filename)
	return result
}

// sample caps s to the first n runes; n<=0 disables the cap.
func sample(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// WeightedMean computes the weighted mean over components whose weight>0;
// components with weight 0, or whose value is unavailable (nil), do not
// affect the result. Returns 0 if no weighted component is defined. Shared
// by Score and by internal/config's weight-change confidence-score
// recomputation (spec.md §4.11).
func WeightedMean(w Weights, jaccard, fuzzy float64, metadata, filename *float64) float64 {
	type term struct {
		weight int
		value  float64
	}
	terms := []term{
		{w.Jaccard, jaccard},
		{w.Fuzzy, fuzzy},
	}
	if metadata != nil {
		terms = append(terms, term{w.Metadata, *metadata})
	}
	if filename != nil {
		terms = append(terms, term{w.Filename, *filename})
	}

	var weightSum, valueSum float64
	for _, t := range terms {
		if t.weight <= 0 {
			continue
		}
		weightSum += float64(t.weight)
		valueSum += float64(t.weight) * t.value
	}
	if weightSum == 0 {
		return 0
	}
	return valueSum / weightSum
}

// tokenSortRatio tokenizes both strings on whitespace, sorts tokens,
// rejoins with single spaces, and returns 1 - levenshtein(a,b)/max(|a|,|b|).
// Both empty -> 1.0; exactly one empty -> 0.0 (spec.md §4.6).
func tokenSortRatio(a, b string) float64 {
	sa := sortedJoin(a)
	sb := sortedJoin(b)

	if sa == "" && sb == "" {
		return 1.0
	}
	if sa == "" || sb == "" {
		return 0.0
	}

	dist := levenshtein.ComputeDistance(sa, sb)
	maxLen := len([]rune(sa))
	if bl := len([]rune(sb)); bl > maxLen {
		maxLen = bl
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1 - float64(dist)/float64(maxLen)
}

func sortedJoin(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// metadataSimilarity averages file-size ratio, date proximity, exact
// correspondent match, and exact document-type match, skipping any
// sub-component whose inputs are null. Returns 0 if all are null
// (spec.md §4.6).
func metadataSimilarity(a, b model.ScoringRecord) float64 {
	var parts []float64

	if a.FileSize != nil && b.FileSize != nil {
		parts = append(parts, fileSizeRatio(*a.FileSize, *b.FileSize))
	}
	if a.CreatedAt != nil && b.CreatedAt != nil {
		parts = append(parts, dateProximity(*a.CreatedAt, *b.CreatedAt))
	}
	if a.Correspondent != nil && b.Correspondent != nil {
		parts = append(parts, boolFloat(*a.Correspondent == *b.Correspondent))
	}
	if a.DocumentType != nil && b.DocumentType != nil {
		parts = append(parts, boolFloat(*a.DocumentType == *b.DocumentType))
	}

	if len(parts) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range parts {
		sum += p
	}
	return sum / float64(len(parts))
}

func fileSizeRatio(a, b int64) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return 1
	}
	return float64(lo) / float64(hi)
}

// dateProximityWindow is the day count at which the linear phase reaches
// zero (spec.md §4.6).
const dateProximityWindow = 30.0

// dateProximity decays linearly to zero at dateProximityWindow days of
// separation; beyond that window the exponential phase decays from the
// same zero anchor, so it evaluates to zero as well — documented here
// because spec.md §4.6 names both phases explicitly even though the
// linear phase's zero endpoint makes the exponential phase a no-op in
// this formulation.
func dateProximity(a, b time.Time) float64 {
	days := math.Abs(a.Sub(b).Hours() / 24)
	if days <= dateProximityWindow {
		return 1 - days/dateProximityWindow
	}
	return 0
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
