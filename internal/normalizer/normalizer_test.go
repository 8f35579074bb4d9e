package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCollapsesWhitespaceAndCase(t *testing.T) {
	r := Normalize("  Hello\t\tWorld\n\nFoo  ")
	assert.Equal(t, "hello world foo", r.Normalized)
	assert.Equal(t, 3, r.WordCount)
	assert.Len(t, r.ContentHash, 64)
}

func TestNormalizeEmpty(t *testing.T) {
	r := Normalize("   \t\n  ")
	assert.Equal(t, "", r.Normalized)
	assert.Equal(t, 0, r.WordCount)
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"  Some   MIXED Case\tText\n",
		"",
		"already normalized",
		"ALLCAPS",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once.Normalized)
		assert.Equal(t, once, twice, "normalize must be idempotent for %q", in)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	a := Normalize("Repeatable Input")
	b := Normalize("Repeatable Input")
	assert.Equal(t, a, b)
}
