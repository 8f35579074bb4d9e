// Package testsupport holds the fixtures every package's tests build a
// Store and a synthetic document corpus from, the way ivoronin-dupedog's
// internal/testfs held the shared filesystem-fixture harness for its own
// test suite — generalized here from file trees to document rows.
package testsupport

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/normalizer"
	"github.com/arrowgate/docdedupe/internal/store"
)

// NewStore opens a fresh sqlite-backed Store in t.TempDir(), closing it on
// test cleanup. Every package's tests share this instead of each rolling
// its own copy of the same three lines.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "dedupe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Words repeats seed's own tokens until the result has at least minTokens
// words. Two calls whose seed strings share no word never share
// vocabulary, which keeps cross-document Jaccard similarity predictable in fixtures
// that need either strong overlap or none at all.
func Words(minTokens int, seed string) string {
	tokens := strings.Fields(seed)
	var out []string
	for len(out) < minTokens {
		out = append(out, tokens...)
	}
	return strings.Join(out, " ")
}

// PartialOverlap builds two token streams of length total words each,
// sharing exactly the first overlap words and otherwise disjoint — for
// constructing a pair at a specific target Jaccard similarity.
func PartialOverlap(total, overlap int, sharedSeed, aSeed, bSeed string) (a, b string) {
	// Each token gets a part tag and its position so no word repeats: with
	// n-gram shingles the Jaccard then follows the word split directly.
	distinct := func(n int, seed, tag string) []string {
		tokens := strings.Fields(Words(n, seed))[:n]
		for i := range tokens {
			tokens[i] += tag + strconv.Itoa(i)
		}
		return tokens
	}
	shared := distinct(overlap, sharedSeed, "s")
	aOnly := distinct(total-overlap, aSeed, "a")
	bOnly := distinct(total-overlap, bSeed, "b")
	return strings.Join(append(append([]string{}, shared...), aOnly...), " "),
		strings.Join(append(append([]string{}, shared...), bOnly...), " ")
}

// SeedDocument inserts a Document plus its normalized Content and returns
// the persisted row (with ID populated).
func SeedDocument(t *testing.T, s *store.Store, upstreamID, text, correspondent string) model.Document {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	doc := model.Document{
		UpstreamID:    upstreamID,
		Title:         "Report " + upstreamID,
		Correspondent: correspondent,
		CreatedAt:     now,
		ModifiedAt:    now,
		Status:        model.ProcessingCompleted,
		Fingerprint:   "fp-" + upstreamID,
		LastSyncAt:    now,
	}
	id, err := s.UpsertDocument(ctx, doc)
	require.NoError(t, err)

	norm := normalizer.Normalize(text)
	require.NoError(t, s.UpsertContent(ctx, model.Content{
		DocumentID:  id,
		FullText:    text,
		Normalized:  norm.Normalized,
		WordCount:   norm.WordCount,
		ContentHash: norm.ContentHash,
	}))

	doc.ID = id
	return doc
}
