// Package config is the typed view over the Store's AppConfig key-value
// map that spec.md §4.11 calls the ConfigService: validated getters and
// setters for the dedup-tuning knobs, namespaced under model.DedupConfigPrefix.
// Structurally it mirrors cuemby-warren/pkg/types' plain validated-struct
// shape rather than introducing any new configuration library — spec.md
// §9's redesign note calls for "dynamically typed key-value configuration"
// read through a typed Go struct, which a struct-plus-validator already
// gives without a schema library.
package config

import (
	"context"
	"strconv"

	"github.com/arrowgate/docdedupe/internal/analyser"
	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/scorer"
	"github.com/arrowgate/docdedupe/internal/store"
)

// DedupConfig is the typed view of spec.md §4.11's tunable fields.
type DedupConfig struct {
	NumPermutations     int            `json:"num_permutations"`
	NumBands            int            `json:"num_bands"`
	NgramSize           int            `json:"ngram_size"`
	MinWords            int            `json:"min_words"`
	SimilarityThreshold float64        `json:"similarity_threshold"`
	Weights             scorer.Weights `json:"confidence_weights"`
	FuzzySampleSize     int            `json:"fuzzy_sample_size"`
	AutoAnalyze         bool           `json:"auto_analyze"`
}

// Defaults match spec.md §4.5's calibrated LSH curve: P=192, B=20 give
// rows_per_band=9, a ~50% collision probability near s≈0.77, close to the
// default similarity_threshold=0.75 below.
var Defaults = DedupConfig{
	NumPermutations:     192,
	NumBands:            20,
	NgramSize:           3,
	MinWords:            20,
	SimilarityThreshold: 0.75,
	Weights:             scorer.Weights{Jaccard: 50, Fuzzy: 30, Metadata: 10, Filename: 10},
	FuzzySampleSize:     5000,
	AutoAnalyze:         false,
}

// Key names within model.DedupConfigPrefix (spec.md §4.11).
const (
	keyNumPermutations = "num_permutations"
	keyNumBands        = "num_bands"
	keyNgramSize       = "ngram_size"
	keyMinWords        = "min_words"
	keySimThreshold    = "similarity_threshold"
	keyWeightJaccard   = "confidence_weight_jaccard"
	keyWeightFuzzy     = "confidence_weight_fuzzy"
	keyWeightMetadata  = "confidence_weight_metadata"
	keyWeightFilename  = "confidence_weight_filename"
	keyFuzzySample     = "fuzzy_sample_size"
	keyAutoAnalyze     = "auto_analyze"
)

// Service is the typed ConfigService over a Store.
type Service struct {
	store *store.Store
}

// New builds a Service over st.
func New(st *store.Store) *Service {
	return &Service{store: st}
}

// Get returns the current DedupConfig, defaulting any key missing from the
// Store's AppConfig table (spec.md §4.11 "get returns defaults for missing
// keys").
func (s *Service) Get(ctx context.Context) (DedupConfig, error) {
	raw, err := s.store.LoadAppConfig(ctx)
	if err != nil {
		return DedupConfig{}, err
	}
	return decode(raw), nil
}

// Set validates cfg, then persists it in one transaction; if the weight
// vector changed from the previously-stored configuration, every group's
// confidence_score is recomputed from its stored component scores in the
// same transaction (spec.md §4.11).
func (s *Service) Set(ctx context.Context, cfg DedupConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	previous, err := s.Get(ctx)
	if err != nil {
		return err
	}

	var recompute store.ConfidenceFunc
	if previous.Weights != cfg.Weights {
		weights := cfg.Weights
		recompute = func(jaccard, fuzzy float64, metadata, filename *float64) float64 {
			return scorer.WeightedMean(weights, jaccard, fuzzy, metadata, filename)
		}
	}

	return s.store.SetAppConfigAndRecomputeConfidence(ctx, encode(cfg), recompute)
}

func decode(raw model.AppConfig) DedupConfig {
	cfg := Defaults
	cfg.NumPermutations = intOr(raw, keyNumPermutations, cfg.NumPermutations)
	cfg.NumBands = intOr(raw, keyNumBands, cfg.NumBands)
	cfg.NgramSize = intOr(raw, keyNgramSize, cfg.NgramSize)
	cfg.MinWords = intOr(raw, keyMinWords, cfg.MinWords)
	cfg.SimilarityThreshold = floatOr(raw, keySimThreshold, cfg.SimilarityThreshold)
	cfg.Weights.Jaccard = intOr(raw, keyWeightJaccard, cfg.Weights.Jaccard)
	cfg.Weights.Fuzzy = intOr(raw, keyWeightFuzzy, cfg.Weights.Fuzzy)
	cfg.Weights.Metadata = intOr(raw, keyWeightMetadata, cfg.Weights.Metadata)
	cfg.Weights.Filename = intOr(raw, keyWeightFilename, cfg.Weights.Filename)
	cfg.FuzzySampleSize = intOr(raw, keyFuzzySample, cfg.FuzzySampleSize)
	cfg.AutoAnalyze = boolOr(raw, keyAutoAnalyze, cfg.AutoAnalyze)
	return cfg
}

func encode(cfg DedupConfig) model.AppConfig {
	p := model.DedupConfigPrefix
	return model.AppConfig{
		p + keyNumPermutations: strconv.Itoa(cfg.NumPermutations),
		p + keyNumBands:        strconv.Itoa(cfg.NumBands),
		p + keyNgramSize:       strconv.Itoa(cfg.NgramSize),
		p + keyMinWords:        strconv.Itoa(cfg.MinWords),
		p + keySimThreshold:    strconv.FormatFloat(cfg.SimilarityThreshold, 'f', -1, 64),
		p + keyWeightJaccard:   strconv.Itoa(cfg.Weights.Jaccard),
		p + keyWeightFuzzy:     strconv.Itoa(cfg.Weights.Fuzzy),
		p + keyWeightMetadata:  strconv.Itoa(cfg.Weights.Metadata),
		p + keyWeightFilename:  strconv.Itoa(cfg.Weights.Filename),
		p + keyFuzzySample:     strconv.Itoa(cfg.FuzzySampleSize),
		p + keyAutoAnalyze:     strconv.FormatBool(cfg.AutoAnalyze),
	}
}

func intOr(raw model.AppConfig, key string, fallback int) int {
	v, ok := raw[model.DedupConfigPrefix+key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func floatOr(raw model.AppConfig, key string, fallback float64) float64 {
	v, ok := raw[model.DedupConfigPrefix+key]
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func boolOr(raw model.AppConfig, key string, fallback bool) bool {
	v, ok := raw[model.DedupConfigPrefix+key]
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// ToAnalyserConfig projects DedupConfig into the subset of fields an
// analysis run actually needs.
func (c DedupConfig) ToAnalyserConfig() analyser.Config {
	return analyser.Config{
		Permutations:        c.NumPermutations,
		Bands:                c.NumBands,
		NgramSize:            c.NgramSize,
		MinWords:             c.MinWords,
		SimilarityThreshold:  c.SimilarityThreshold,
		Weights:              c.Weights,
		FuzzySampleSize:      c.FuzzySampleSize,
	}
}
