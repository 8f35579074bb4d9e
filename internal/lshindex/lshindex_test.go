package lshindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowgate/docdedupe/internal/minhash"
	"github.com/arrowgate/docdedupe/internal/model"
)

func set(words ...string) map[uint32]struct{} {
	out := make(map[uint32]struct{}, len(words))
	for i, w := range words {
		out[uint32(i*2654435761+len(w))] = struct{}{}
	}
	return out
}

func TestSelfRecall(t *testing.T) {
	idx := New(192, 20)
	sig := minhash.Compute(set("a", "b", "c", "d", "e", "f"), 192, "v1")
	id := model.NewDocumentID()

	idx.Insert(id, sig)

	candidates := idx.Candidates(sig)
	require.NotEmpty(t, candidates)
	assert.Contains(t, candidates, id)
}

func TestBandsTimesRowsWithinPermutations(t *testing.T) {
	idx := New(192, 20)
	assert.LessOrEqual(t, idx.Bands()*idx.RowsPerBand(), 192)
	assert.Equal(t, 9, idx.RowsPerBand())
}

func TestClearRemovesCandidates(t *testing.T) {
	idx := New(64, 8)
	sig := minhash.Compute(set("x", "y", "z"), 64, "v1")
	id := model.NewDocumentID()
	idx.Insert(id, sig)
	require.Contains(t, idx.Candidates(sig), id)

	idx.Clear()
	assert.Empty(t, idx.Candidates(sig))
}

func TestHighSimilaritySignaturesCollide(t *testing.T) {
	idx := New(192, 20)
	a := minhash.Compute(set("a", "b", "c", "d", "e", "f", "g", "h"), 192, "v1")
	// b shares most shingles with a (high Jaccard) - construct by reusing a's set
	// plus computing b from the identical set to simulate near duplicate.
	b := minhash.Compute(set("a", "b", "c", "d", "e", "f", "g", "h"), 192, "v1")
	idA := model.NewDocumentID()
	idx.Insert(idA, a)

	candidates := idx.Candidates(b)
	assert.Contains(t, candidates, idA)
}
