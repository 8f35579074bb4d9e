// Package lshindex implements banded locality-sensitive hashing over
// MinHash signatures, recalling candidate duplicate pairs without an
// all-pairs comparison (spec.md §4.5).
//
// # Why This Design?
//
//   - B independent maps (one per band) keep bucket lookups O(1) and let
//     insert/candidates stay allocation-light for the common case.
//   - The band digest (FNV-1a over the band's rows) is deterministic and
//     collision-resistant enough that two signatures only collide in a
//     bucket when their band rows are byte-identical.
//   - The index is rebuilt wholesale once per analysis run (spec.md §4.9
//     stage 3) rather than maintained incrementally, so Clear+bulk Insert
//     is the only write path that needs to be fast.
package lshindex

import (
	"github.com/arrowgate/docdedupe/internal/minhash"
	"github.com/arrowgate/docdedupe/internal/model"
)

// LSHIndex is a banded LSH bucket index over MinHash signatures.
type LSHIndex struct {
	permutations int
	bands        int
	rowsPerBand  int
	buckets      []map[uint32][]model.DocumentID
}

// New builds an LSHIndex for signatures of the given permutation count,
// split into bands bands of rows_per_band = floor(permutations/bands) rows
// each (spec.md §4.5). Rows beyond bands*rowsPerBand are unused.
func New(permutations, bands int) *LSHIndex {
	if bands < 1 {
		bands = 1
	}
	rowsPerBand := permutations / bands
	if rowsPerBand < 1 {
		rowsPerBand = 1
	}

	idx := &LSHIndex{
		permutations: permutations,
		bands:        bands,
		rowsPerBand:  rowsPerBand,
		buckets:      make([]map[uint32][]model.DocumentID, bands),
	}
	for i := range idx.buckets {
		idx.buckets[i] = make(map[uint32][]model.DocumentID)
	}
	return idx
}

// RowsPerBand returns the number of signature rows that make up one band.
func (idx *LSHIndex) RowsPerBand() int { return idx.rowsPerBand }

// Bands returns the configured number of bands.
func (idx *LSHIndex) Bands() int { return idx.bands }

// Insert adds docID to the bucket each of its signature's bands hashes
// into.
func (idx *LSHIndex) Insert(docID model.DocumentID, sig minhash.Signature) {
	for b := 0; b < idx.bands; b++ {
		digest := idx.bandDigestFor(sig, b)
		idx.buckets[b][digest] = append(idx.buckets[b][digest], docID)
	}
}

// Candidates returns the union (deduplicated) of every bucket the probe
// signature hashes into across all bands. If the probing document was
// previously inserted, its own id is always included (spec.md §4.5's
// self-recall contract).
func (idx *LSHIndex) Candidates(sig minhash.Signature) []model.DocumentID {
	seen := make(map[model.DocumentID]struct{})
	for b := 0; b < idx.bands; b++ {
		digest := idx.bandDigestFor(sig, b)
		for _, id := range idx.buckets[b][digest] {
			seen[id] = struct{}{}
		}
	}

	out := make([]model.DocumentID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// Clear resets all buckets, discarding every inserted signature.
func (idx *LSHIndex) Clear() {
	for i := range idx.buckets {
		idx.buckets[i] = make(map[uint32][]model.DocumentID)
	}
}

func (idx *LSHIndex) bandDigestFor(sig minhash.Signature, band int) uint32 {
	start := band * idx.rowsPerBand
	end := start + idx.rowsPerBand
	if end > len(sig.Values) {
		end = len(sig.Values)
	}
	if start >= end {
		return bandDigest(nil)
	}
	return bandDigest(sig.Values[start:end])
}
