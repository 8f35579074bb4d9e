package minhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shingleSet(words ...string) map[uint32]struct{} {
	out := make(map[uint32]struct{}, len(words))
	for i, w := range words {
		out[uint32(i*2654435761+len(w))] = struct{}{}
	}
	return out
}

func TestJaccardSymmetryAndSelf(t *testing.T) {
	a := Compute(shingleSet("a", "b", "c"), 64, "v1")
	b := Compute(shingleSet("b", "c", "d"), 64, "v1")

	assert.Equal(t, Jaccard(a, b), Jaccard(b, a))
	assert.Equal(t, 1.0, Jaccard(a, a))
}

func TestDeterministic(t *testing.T) {
	set := shingleSet("x", "y", "z", "w")
	a := Compute(set, 32, "v1")
	b := Compute(set, 32, "v1")
	assert.Equal(t, a.Values, b.Values)
}

func TestEmptyShingleSetIsAllMax(t *testing.T) {
	sig := Compute(map[uint32]struct{}{}, 16, "v1")
	for _, v := range sig.Values {
		assert.Equal(t, MaxSignatureValue, v)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	sig := Compute(shingleSet("a", "b", "c", "d", "e"), 48, "v1")
	buf := Serialize(sig)
	require.Len(t, buf, 48*4)

	got, ok := Deserialize(buf, "v1")
	require.True(t, ok)
	assert.Equal(t, sig.Values, got.Values)
}

func TestIdenticalSetsYieldIdenticalSignature(t *testing.T) {
	set := shingleSet("same", "shingles", "here")
	a := Compute(set, 20, "v1")
	b := Compute(set, 20, "v1")
	assert.Equal(t, 1.0, Jaccard(a, b))
}
