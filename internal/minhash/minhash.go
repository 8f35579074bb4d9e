// Package minhash computes fixed-length MinHash signatures from shingle
// sets and estimates Jaccard similarity between signatures (spec.md §4.4).
//
// # Why This Design?
//
//   - The hash-family coefficients are drawn once from a compile-time
//     constant seed, so any two processes compute byte-identical
//     signatures for the same shingle set — a requirement for comparing
//     signatures across analysis runs and restarts (spec.md §4.4).
//   - Coefficient generation happens lazily, once, behind a sync.Once —
//     the table is immutable afterward and may be shared freely across
//     goroutines (spec.md §5's "only truly global state" note).
//   - Signatures are stored as a flat []uint32 (no per-element boxing),
//     matching spec.md §9's "avoid per-element boxing" guidance; the
//     Jaccard loop is a simple position-wise equality count.
package minhash

import (
	"encoding/binary"
	"math/rand"
	"sync"
)

// mersennePrime is the 61-bit Mersenne prime used for the hash family,
// per spec.md §4.4.
const mersennePrime = uint64(1)<<61 - 1

// coefficientSeed is the compile-time constant seed for the hash-family
// coefficients. Changing it changes every signature ever produced — treat
// it as part of AlgorithmVersion.
const coefficientSeed = 0x5eed_600d_cafe_d00d

// MaxSignatureValue is the sentinel the signature is initialised to; an
// all-max signature denotes an empty shingle set, which callers must
// filter upstream (spec.md §4.3's min_words gate) rather than feed here.
const MaxSignatureValue = ^uint32(0)

type coefficient struct {
	a, b uint64
}

var (
	coeffOnce  sync.Once
	coeffTable []coefficient
)

// coefficients returns the first maxPermutations entries of the
// process-wide coefficient table, which is generated in full
// (maxCoefficients entries) from coefficientSeed on first use.
func coefficients(maxPermutations int) []coefficient {
	coeffOnce.Do(func() {
		r := rand.New(rand.NewSource(coefficientSeed))
		coeffTable = make([]coefficient, maxCoefficients)
		for i := range coeffTable {
			a := uint64(r.Int63())%(mersennePrime-1) + 1 // a in [1, p-1]
			b := uint64(r.Int63()) % mersennePrime       // b in [0, p-1]
			coeffTable[i] = coefficient{a: a, b: b}
		}
	})
	if maxPermutations > len(coeffTable) {
		panic("minhash: permutations exceeds maxCoefficients")
	}
	return coeffTable[:maxPermutations]
}

// maxCoefficients bounds how many hash functions can ever be requested;
// generous relative to spec.md §4.11's num_permutations <= 1024 ceiling.
const maxCoefficients = 1024

// Signature is a fixed-length MinHash signature: P 32-bit minima, one per
// hash-family member.
type Signature struct {
	Values           []uint32
	AlgorithmVersion string
}

// Compute builds a Signature from a shingle set using P permutations.
// An empty shingles map produces the all-max signature; callers should
// have already rejected empty sets via the shingler's min_words gate.
func Compute(shingles map[uint32]struct{}, permutations int, algorithmVersion string) Signature {
	values := make([]uint32, permutations)
	for i := range values {
		values[i] = MaxSignatureValue
	}

	coeffs := coefficients(permutations)
	for x := range shingles {
		xv := uint64(x)
		for i, c := range coeffs {
			h := uint32(mulModMersenne(c.a, xv, c.b) & 0xFFFFFFFF)
			if h < values[i] {
				values[i] = h
			}
		}
	}

	return Signature{Values: values, AlgorithmVersion: algorithmVersion}
}

// mulModMersenne computes (a*x + b) mod mersennePrime using 128-bit-safe
// folding (2^61 ≡ 1 mod mersennePrime), avoiding math/big in the hot loop.
func mulModMersenne(a, x, b uint64) uint64 {
	hi, lo := mul64(a, x)
	product := reduceMersenne(hi, lo)
	sum := product + b
	for sum >= mersennePrime {
		sum -= mersennePrime
	}
	return sum
}

// mul64 returns the 128-bit product of a and b as (hi, lo).
func mul64(a, b uint64) (hi, lo uint64) {
	const mask32 = 1<<32 - 1
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	t := aLo * bLo
	w0 := t & mask32
	k := t >> 32

	t = aHi*bLo + k
	w1 := t & mask32
	w2 := t >> 32

	t = aLo*bHi + w1
	k = t >> 32

	hi = aHi*bHi + w2 + k
	lo = (t << 32) | w0
	return hi, lo
}

// reduceMersenne folds a 128-bit value (hi:lo) modulo the 61-bit Mersenne
// prime, using 2^61 ≡ 1 (mod p) and 2^64 ≡ 8 (mod p).
func reduceMersenne(hi, lo uint64) uint64 {
	loFolded := (lo & mersennePrime) + (lo >> 61)
	total := loFolded + hi*8
	for total >= mersennePrime {
		total -= mersennePrime
	}
	return total
}

// Jaccard estimates Jaccard similarity between two equal-length signatures
// of the same AlgorithmVersion as the fraction of positions where the
// values match (spec.md §4.4). Panics if lengths differ or algorithm
// versions disagree — signatures from different configurations are never
// comparable and callers must have already gated on that.
func Jaccard(a, b Signature) float64 {
	if a.AlgorithmVersion != b.AlgorithmVersion {
		panic("minhash: cannot compare signatures from different algorithm versions")
	}
	if len(a.Values) != len(b.Values) {
		panic("minhash: cannot compare signatures of different length")
	}
	if len(a.Values) == 0 {
		return 1
	}
	matches := 0
	for i := range a.Values {
		if a.Values[i] == b.Values[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a.Values))
}

// Serialize writes the signature as raw little-endian 32-bit words.
func Serialize(sig Signature) []byte {
	buf := make([]byte, len(sig.Values)*4)
	for i, v := range sig.Values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

// Deserialize reads a little-endian 32-bit-word signature. The returned
// Signature carries no coefficients — it is read-only, per spec.md §4.4.
func Deserialize(buf []byte, algorithmVersion string) (Signature, bool) {
	if len(buf)%4 != 0 {
		return Signature{}, false
	}
	values := make([]uint32, len(buf)/4)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return Signature{Values: values, AlgorithmVersion: algorithmVersion}, true
}
