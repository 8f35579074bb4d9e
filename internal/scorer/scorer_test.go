package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arrowgate/docdedupe/internal/model"
)

func record(title, normalized string) model.ScoringRecord {
	return model.ScoringRecord{
		DocumentID: model.NewDocumentID(),
		Title:      title,
		Normalized: normalized,
	}
}

func TestQuickModeReturnsJaccardAsOverall(t *testing.T) {
	a := record("invoice-2024.pdf", "some normalized text")
	b := record("invoice-2024-copy.pdf", "some normalized text here")

	res := Score(a, b, 0.87, Weights{Jaccard: 60, Fuzzy: 40}, Options{Quick: true})

	assert.Equal(t, 0.87, res.Overall)
	assert.Equal(t, 0.87, res.Jaccard)
	assert.Zero(t, res.Fuzzy)
	assert.Nil(t, res.Metadata)
	assert.Nil(t, res.Filename)
}

func TestFullModeIdenticalTextIsPerfectFuzzyMatch(t *testing.T) {
	a := record("report.pdf", "the quick brown fox jumps over the lazy dog")
	b := record("report.pdf", "the quick brown fox jumps over the lazy dog")

	res := Score(a, b, 1.0, Weights{Jaccard: 50, Fuzzy: 50}, Options{})

	assert.Equal(t, 1.0, res.Fuzzy)
	assert.Equal(t, 1.0, res.Overall)
}

func TestFullModeTokenSortIgnoresWordOrder(t *testing.T) {
	a := record("a.pdf", "alpha beta gamma")
	b := record("b.pdf", "gamma alpha beta")

	res := Score(a, b, 0.5, Weights{Jaccard: 100}, Options{})

	assert.Equal(t, 1.0, res.Fuzzy)
}

func TestWeightedMeanOnlyConsidersPositiveWeights(t *testing.T) {
	a := record("x", "one two three")
	b := record("y", "four five six")

	res := Score(a, b, 0.9, Weights{Jaccard: 100, Fuzzy: 0, Metadata: 0, Filename: 0}, Options{})

	assert.Equal(t, 0.9, res.Overall)
}

func TestWeightedMeanZeroWhenNoWeightDefined(t *testing.T) {
	a := record("x", "one two three")
	b := record("y", "four five six")

	res := Score(a, b, 0.9, Weights{}, Options{})

	assert.Zero(t, res.Overall)
}

func TestMetadataSimilarityAveragesDefinedSubComponents(t *testing.T) {
	size1 := int64(1000)
	size2 := int64(800)
	a := model.ScoringRecord{FileSize: &size1}
	b := model.ScoringRecord{FileSize: &size2}

	got := metadataSimilarity(a, b)
	assert.InDelta(t, 0.8, got, 0.0001)
}

func TestMetadataSimilarityZeroWhenAllNull(t *testing.T) {
	a := model.ScoringRecord{}
	b := model.ScoringRecord{}

	assert.Zero(t, metadataSimilarity(a, b))
}

func TestMetadataSimilarityExactMatchBoost(t *testing.T) {
	corr := "Acme Corp"
	a := model.ScoringRecord{Correspondent: &corr}
	b := model.ScoringRecord{Correspondent: &corr}

	assert.Equal(t, 1.0, metadataSimilarity(a, b))
}

func TestDateProximityDecaysToZeroAtWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, dateProximity(base, base))
	assert.InDelta(t, 0.5, dateProximity(base, base.AddDate(0, 0, 15)), 0.0001)
	assert.Zero(t, dateProximity(base, base.AddDate(0, 0, 30)))
	assert.Zero(t, dateProximity(base, base.AddDate(0, 0, 90)))
}

func TestFileSizeRatioBounds(t *testing.T) {
	assert.Equal(t, 1.0, fileSizeRatio(0, 0))
	assert.Equal(t, 1.0, fileSizeRatio(500, 500))
	assert.InDelta(t, 0.5, fileSizeRatio(250, 500), 0.0001)
}

func TestScoreIsSymmetricInPractice(t *testing.T) {
	a := record("report final.pdf", "lorem ipsum dolor sit amet")
	b := record("final report.pdf", "sit amet lorem ipsum dolor")

	weights := Weights{Jaccard: 25, Fuzzy: 25, Metadata: 25, Filename: 25}
	ab := Score(a, b, 0.6, weights, Options{})
	ba := Score(b, a, 0.6, weights, Options{})

	assert.InDelta(t, ab.Overall, ba.Overall, 0.0001)
}
