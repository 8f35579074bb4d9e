package config

import "github.com/arrowgate/docdedupe/internal/model"

// Validity ranges, spec.md §4.11.
const (
	minPermutations = 16
	maxPermutations = 1024
	minBands        = 1
	maxBands        = 100
	minNgramSize    = 1
	maxNgramSize    = 10
	minWordsFloor   = 1
	minWordsCeil    = 1000
	minFuzzySample  = 100
	maxFuzzySample  = 100000
	weightTotal     = 100
)

// Validate enforces spec.md §4.11's field ranges and the weight-sum
// invariant, returning a *model.ValidationError naming the first violation
// found.
func Validate(cfg DedupConfig) error {
	if err := intRange("num_permutations", cfg.NumPermutations, minPermutations, maxPermutations); err != nil {
		return err
	}
	if err := intRange("num_bands", cfg.NumBands, minBands, maxBands); err != nil {
		return err
	}
	if err := intRange("ngram_size", cfg.NgramSize, minNgramSize, maxNgramSize); err != nil {
		return err
	}
	if err := intRange("min_words", cfg.MinWords, minWordsFloor, minWordsCeil); err != nil {
		return err
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return &model.ValidationError{Field: "similarity_threshold", Msg: "must be in [0, 1]"}
	}
	if err := weightRange("confidence_weight_jaccard", cfg.Weights.Jaccard); err != nil {
		return err
	}
	if err := weightRange("confidence_weight_fuzzy", cfg.Weights.Fuzzy); err != nil {
		return err
	}
	if err := weightRange("confidence_weight_metadata", cfg.Weights.Metadata); err != nil {
		return err
	}
	if err := weightRange("confidence_weight_filename", cfg.Weights.Filename); err != nil {
		return err
	}
	if sum := cfg.Weights.Jaccard + cfg.Weights.Fuzzy + cfg.Weights.Metadata + cfg.Weights.Filename; sum != weightTotal {
		return &model.ValidationError{Field: "confidence_weight", Msg: "weights must sum to 100"}
	}
	if err := intRange("fuzzy_sample_size", cfg.FuzzySampleSize, minFuzzySample, maxFuzzySample); err != nil {
		return err
	}
	return nil
}

func intRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return &model.ValidationError{Field: field, Msg: "out of range"}
	}
	return nil
}

func weightRange(field string, v int) error {
	if v < 0 || v > weightTotal {
		return &model.ValidationError{Field: field, Msg: "must be in [0, 100]"}
	}
	return nil
}
