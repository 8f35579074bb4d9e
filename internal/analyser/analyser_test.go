package analyser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/normalizer"
	"github.com/arrowgate/docdedupe/internal/progress"
	"github.com/arrowgate/docdedupe/internal/scorer"
	"github.com/arrowgate/docdedupe/internal/store"
	"github.com/arrowgate/docdedupe/internal/testsupport"
)

func testConfig() Config {
	return Config{
		Permutations:        64,
		Bands:                16,
		NgramSize:            3,
		MinWords:             10,
		SimilarityThreshold:  0.5,
		Weights:              scorer.Weights{Jaccard: 70, Fuzzy: 30},
		FuzzySampleSize:      0,
	}
}

// words is testsupport.Words, local to this file's fixtures (it predates
// internal/testsupport and every call site below reads more naturally
// without the package qualifier).
func words(minTokens int, seed string) string {
	return testsupport.Words(minTokens, seed)
}

// seedDocument differs from testsupport.SeedDocument in exactly one field:
// it seeds ProcessingPending, the content-changed signal buildSignatures
// reads (analyser.go's contentChanged check), which these tests depend on.
func seedDocument(t *testing.T, s *store.Store, upstreamID, text, correspondent string) model.Document {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	doc := model.Document{
		UpstreamID:    upstreamID,
		Title:         "Report " + upstreamID,
		Correspondent: correspondent,
		CreatedAt:     now,
		ModifiedAt:    now,
		Status:        model.ProcessingPending,
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

func TestRunGroupsIdenticalDocumentsAndSeparatesDistinctOne(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	shared := words(40, "invoice payment due thirty days net terms apply")
	distinct := words(40, "unrelated weather forecast rain expected tomorrow afternoon")

	seedDocument(t, s, "a", shared, "Acme")
	seedDocument(t, s, "b", shared, "Acme")
	seedDocument(t, s, "c", distinct, "Globex")

	an := New(s)
	result, err := an.Run(ctx, progress.Null, testConfig(), false)
	require.NoError(t, err)

	assert.Equal(t, 3, result.DocumentsConsidered)
	assert.Equal(t, 3, result.SignaturesGenerated)
	assert.Equal(t, 1, result.GroupsFormed)
	assert.Equal(t, 1, result.Reconcile.Created)

	groups, err := s.ListGroupsWithMembers(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 2)
}

func TestRunReusesSignatureWhenDocumentUnchanged(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	shared := words(40, "invoice payment due thirty days net terms apply")
	docA := seedDocument(t, s, "a", shared, "Acme")
	seedDocument(t, s, "b", shared, "Acme")

	an := New(s)
	cfg := testConfig()

	first, err := an.Run(ctx, progress.Null, cfg, false)
	require.NoError(t, err)
	assert.Equal(t, 2, first.SignaturesGenerated)

	// A second run over unchanged documents should reuse both signatures:
	// Analyser flips status to completed after generating one, so the
	// reused-vs-generated gate (spec.md §4.9 stage 2) takes over next run.
	loaded, err := s.LoadDocument(ctx, docA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProcessingCompleted, loaded.Status)

	second, err := an.Run(ctx, progress.Null, cfg, false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.SignaturesGenerated)
	assert.Equal(t, 2, second.SignaturesReused)
	assert.Equal(t, 1, second.Reconcile.Updated)
	assert.Equal(t, 0, second.Reconcile.Created)
}

func TestRunExcludesShortDocumentsFromCorpus(t *testing.T) {
	s := testsupport.NewStore(t)
	ctx := context.Background()

	seedDocument(t, s, "short", "too few words here", "Acme")

	an := New(s)
	result, err := an.Run(ctx, progress.Null, testConfig(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.DocumentsConsidered)
	assert.Equal(t, 0, result.GroupsFormed)
}

func TestRunThresholdCutoffGatesPartialOverlapPair(t *testing.T) {
	ctx := context.Background()
	a, b := testsupport.PartialOverlap(50, 38, "shared billing terms net thirty", "alpha region east coast", "beta region west coast")

	strict := testConfig()
	strict.SimilarityThreshold = 0.75
	s := testsupport.NewStore(t)
	seedDocument(t, s, "a", a, "Acme")
	seedDocument(t, s, "b", b, "Acme")
	result, err := New(s).Run(ctx, progress.Null, strict, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.GroupsFormed)

	lenient := testConfig()
	lenient.SimilarityThreshold = 0.50
	s2 := testsupport.NewStore(t)
	seedDocument(t, s2, "a", a, "Acme")
	seedDocument(t, s2, "b", b, "Acme")
	result2, err := New(s2).Run(ctx, progress.Null, lenient, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result2.GroupsFormed)
}

func TestChoosePrimaryPrefersLargestArchiveThenLowestUpstreamID(t *testing.T) {
	idA := model.NewDocumentID()
	idB := model.NewDocumentID()
	idC := model.NewDocumentID()

	big := int64(5000)
	small := int64(100)
	fileSizes := map[model.DocumentID]*int64{idA: &small, idB: &big, idC: nil}
	upstreamIDs := map[model.DocumentID]string{idA: "a", idB: "b", idC: "c"}

	primary := choosePrimary([]model.DocumentID{idA, idB, idC}, fileSizes, upstreamIDs)
	assert.Equal(t, idB, primary)
}

func TestMedianEvenAndOddCounts(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 0.5, median([]float64{0.5}))
	assert.Equal(t, 0.5, median([]float64{0.2, 0.5, 0.8}))
	assert.InDelta(t, 0.5, median([]float64{0.2, 0.8}), 1e-9)
}
