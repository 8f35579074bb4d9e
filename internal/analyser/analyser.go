// Package analyser runs the end-to-end duplicate-detection pipeline:
// select a corpus, generate or reuse MinHash signatures, build an LSH
// index, recall candidate pairs, score them, cluster survivors into
// groups, and reconcile the result against the Store (spec.md §4.9). It
// is the second pipeline stage, downstream of internal/syncengine the way
// ivoronin-dupedog's internal/verifier runs downstream of its screener.
package analyser

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arrowgate/docdedupe/internal/lshindex"
	"github.com/arrowgate/docdedupe/internal/metrics"
	"github.com/arrowgate/docdedupe/internal/minhash"
	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/progress"
	"github.com/arrowgate/docdedupe/internal/scorer"
	"github.com/arrowgate/docdedupe/internal/shingler"
	"github.com/arrowgate/docdedupe/internal/store"
)

// Config is the subset of ConfigService's typed dedup configuration the
// Analyser needs for one run (spec.md §4.11).
type Config struct {
	Permutations        int
	Bands               int
	NgramSize           int
	MinWords            int
	SimilarityThreshold float64
	Weights             scorer.Weights
	FuzzySampleSize     int
}

// Progress bands, spec.md §4.9.
const (
	stageSelectCeil     = 0.05
	stageSignaturesCeil = 0.45
	stageIndexCeil      = 0.55
	stageCandidatesCeil = 0.65
	stageScoreCeil      = 0.85
	stageClusterCeil    = 0.95
	stageReconcileCeil  = 1.0
)

// defaultScoringConcurrency bounds the fan-out over candidate pairs in the
// score stage.
const defaultScoringConcurrency = 8

// cancellationCheckInterval is how often (in scored pairs) the score stage
// re-checks ctx for cancellation (spec.md §4.9's "after every N
// candidate-pair scorings").
const cancellationCheckInterval = 500

// Analyser runs one analysis pass against a Store.
type Analyser struct {
	store              *store.Store
	scoringConcurrency int
	recorder           metrics.Recorder
}

// Option configures an Analyser.
type Option func(*Analyser)

// WithScoringConcurrency overrides defaultScoringConcurrency.
func WithScoringConcurrency(n int) Option {
	return func(a *Analyser) { a.scoringConcurrency = n }
}

// WithRecorder reports analysis duration, groups found, and candidate
// pairs scored through r instead of discarding them.
func WithRecorder(r metrics.Recorder) Option {
	return func(a *Analyser) { a.recorder = r }
}

// New builds an Analyser over st.
func New(st *store.Store, opts ...Option) *Analyser {
	a := &Analyser{store: st, scoringConcurrency: defaultScoringConcurrency, recorder: metrics.Null}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// corpusEntry bundles one selected document with its content and scoring
// record, carried through every stage so later stages never re-query the
// Store for fields they already have.
type corpusEntry struct {
	Document model.Document
	Content  model.Content
	Record   model.ScoringRecord
}

// candidatePair is a (min, max) document-id pair with survived scores.
type candidatePair struct {
	a, b   model.DocumentID
	result scorer.Result
}

// Run executes one analysis pass. force, when true, discards any
// previously-assigned status and primary for a kept group in favor of the
// freshly computed values (spec.md §4.9 stage 7).
func (an *Analyser) Run(ctx context.Context, reporter progress.Reporter, cfg Config, force bool) (model.AnalysisResult, error) {
	if reporter == nil {
		reporter = progress.Null
	}
	started := time.Now()
	timer := metrics.NewTimer()
	defer timer.ObserveSeconds(an.recorder, metrics.AnalysisDuration)

	reporter.Report(0, "selecting corpus")
	corpus, err := an.selectCorpus(ctx, cfg)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	reporter.Report(stageSelectCeil, "corpus selected")

	signatures, generated, reused, err := an.buildSignatures(ctx, reporter, corpus, cfg)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	reporter.Report(stageSignaturesCeil, "signatures ready")

	idx := an.buildIndex(signatures, cfg)
	reporter.Report(stageIndexCeil, "index built")

	pairs := an.candidatePairs(idx, signatures)
	reporter.Report(stageCandidatesCeil, "candidate pairs recalled")

	records := make(map[model.DocumentID]model.ScoringRecord, len(corpus))
	for _, c := range corpus {
		records[c.Document.ID] = c.Record
	}

	survivors, scored, err := an.scorePairs(ctx, reporter, pairs, signatures, records, cfg)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	reporter.Report(stageScoreCeil, "scoring complete")

	clusters := cluster(survivors)
	reporter.Report(stageClusterCeil, "clusters formed")

	fileSizeByID := make(map[model.DocumentID]*int64, len(corpus))
	upstreamIDByID := make(map[model.DocumentID]string, len(corpus))
	for _, c := range corpus {
		fileSizeByID[c.Document.ID] = archiveOrOriginalSize(c.Document)
		upstreamIDByID[c.Document.ID] = c.Document.UpstreamID
	}

	groups := make([]clusterGroup, 0, len(clusters))
	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, summarizeCluster(members, survivors, fileSizeByID, upstreamIDByID))
	}

	reconcileResult, err := an.reconcile(ctx, groups, cfg, force)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	reporter.Report(stageReconcileCeil, "reconciled")

	now := time.Now().UTC()
	if err := an.store.CommitAnalysisResult(ctx, now, len(groups)); err != nil {
		return model.AnalysisResult{}, err
	}

	an.recorder.SetGauge(metrics.AnalysisGroupsFound, float64(len(groups)))
	an.recorder.SetGauge(metrics.AnalysisDocsCompared, float64(scored))

	return model.AnalysisResult{
		DocumentsConsidered: len(corpus),
		SignaturesGenerated: generated,
		SignaturesReused:    reused,
		CandidatePairs:      len(pairs),
		GroupsFormed:        len(groups),
		Reconcile:           reconcileResult,
		Duration:            time.Since(started),
	}, nil
}

// selectCorpus gathers every document whose stored word count passes
// cfg.MinWords (spec.md §4.9 stage 1).
func (an *Analyser) selectCorpus(ctx context.Context, cfg Config) ([]corpusEntry, error) {
	// Rows are collected first: the Store has a single connection, and
	// IterateDocuments holds it until the iteration ends.
	var docs []model.Document
	if err := an.store.IterateDocuments(ctx, func(doc model.Document) error {
		docs = append(docs, doc)
		return nil
	}); err != nil {
		return nil, err
	}

	var corpus []corpusEntry
	for _, doc := range docs {
		content, err := an.store.LoadContent(ctx, doc.ID)
		if err != nil {
			if model.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if content.WordCount < cfg.MinWords {
			continue
		}
		corpus = append(corpus, corpusEntry{
			Document: doc,
			Content:  *content,
			Record:   scoringRecord(doc, *content),
		})
	}
	return corpus, nil
}

// scoringRecord builds the Scorer-facing value from a Document+Content.
func scoringRecord(doc model.Document, content model.Content) model.ScoringRecord {
	rec := model.ScoringRecord{
		DocumentID: doc.ID,
		UpstreamID: doc.UpstreamID,
		Title:      doc.Title,
		Normalized: content.Normalized,
		FileSize:   archiveOrOriginalSize(doc),
	}
	if doc.Correspondent != "" {
		c := doc.Correspondent
		rec.Correspondent = &c
	}
	if doc.DocumentType != "" {
		d := doc.DocumentType
		rec.DocumentType = &d
	}
	if !doc.CreatedAt.IsZero() {
		t := doc.CreatedAt
		rec.CreatedAt = &t
	}
	return rec
}

func archiveOrOriginalSize(doc model.Document) *int64 {
	if doc.ArchiveFileSize != nil {
		return doc.ArchiveFileSize
	}
	return doc.OriginalFileSize
}

// buildSignatures reuses a stored signature when it is not stale for the
// current config, otherwise shingles+computes and persists a fresh one,
// flipping the document's status to completed (spec.md §4.9 stage 2).
func (an *Analyser) buildSignatures(
	ctx context.Context,
	reporter progress.Reporter,
	corpus []corpusEntry,
	cfg Config,
) (map[model.DocumentID]minhash.Signature, int, int, error) {
	signatures := make(map[model.DocumentID]minhash.Signature, len(corpus))
	var generated, reused int

	for i, entry := range corpus {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}

		existing, err := an.store.LoadSignature(ctx, entry.Document.ID)
		contentChanged := entry.Document.Status == model.ProcessingPending

		if err == nil && !existing.Stale(model.SignatureAlgorithmVersion, cfg.Permutations, contentChanged) {
			sig, ok := minhash.Deserialize(existing.Bytes, existing.AlgorithmVersion)
			if ok {
				signatures[entry.Document.ID] = sig
				reused++
				continue
			}
		} else if err != nil && !model.IsNotFound(err) {
			return nil, 0, 0, err
		}

		shingles, err := shingler.Shingle(entry.Content.Normalized, shingler.Options{NgramSize: cfg.NgramSize, MinWords: cfg.MinWords})
		if err != nil {
			// Corpus selection already gated on MinWords; a document that
			// fails here has fewer usable tokens than raw word count
			// implied (e.g. all-whitespace padding) and is skipped rather
			// than aborting the whole run.
			continue
		}

		sig := minhash.Compute(shingles, cfg.Permutations, model.SignatureAlgorithmVersion)
		signature := model.Signature{
			DocumentID:       entry.Document.ID,
			Bytes:            minhash.Serialize(sig),
			AlgorithmVersion: model.SignatureAlgorithmVersion,
			Permutations:     cfg.Permutations,
		}
		if err := an.store.UpsertSignature(ctx, signature); err != nil {
			return nil, 0, 0, err
		}

		completed := entry.Document
		completed.Status = model.ProcessingCompleted
		if err := an.store.UpdateDocument(ctx, completed); err != nil {
			return nil, 0, 0, err
		}

		signatures[entry.Document.ID] = sig
		generated++

		if i%100 == 0 {
			fraction := stageSelectCeil + (stageSignaturesCeil-stageSelectCeil)*float64(i)/float64(len(corpus))
			reporter.Report(fraction, "generating signatures")
		}
	}

	return signatures, generated, reused, nil
}

// buildIndex inserts every signature into a fresh LSHIndex (spec.md §4.9
// stage 3).
func (an *Analyser) buildIndex(signatures map[model.DocumentID]minhash.Signature, cfg Config) *lshindex.LSHIndex {
	idx := lshindex.New(cfg.Permutations, cfg.Bands)
	for id, sig := range signatures {
		idx.Insert(id, sig)
	}
	return idx
}

// pairKey is a deterministically-ordered (min, max) document pair, used
// both as a dedup key and as the pair's own identity.
type pairKey struct {
	a, b model.DocumentID
}

func makePairKey(x, y model.DocumentID) pairKey {
	if x.String() <= y.String() {
		return pairKey{a: x, b: y}
	}
	return pairKey{a: y, b: x}
}

// candidatePairs queries the index for every document's own signature and
// emits deduplicated unordered pairs (spec.md §4.9 stage 4).
func (an *Analyser) candidatePairs(idx *lshindex.LSHIndex, signatures map[model.DocumentID]minhash.Signature) []pairKey {
	seen := make(map[pairKey]struct{})
	for id, sig := range signatures {
		for _, other := range idx.Candidates(sig) {
			if other == id {
				continue
			}
			seen[makePairKey(id, other)] = struct{}{}
		}
	}

	out := make([]pairKey, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out
}

// scorePairs runs the quick-prune-then-full-score contract over every
// candidate pair, bounding concurrency with a model.Semaphore (spec.md
// §4.9 stage 5) and checking for cancellation every
// cancellationCheckInterval pairs.
func (an *Analyser) scorePairs(
	ctx context.Context,
	reporter progress.Reporter,
	pairs []pairKey,
	signatures map[model.DocumentID]minhash.Signature,
	records map[model.DocumentID]model.ScoringRecord,
	cfg Config,
) ([]candidatePair, int, error) {
	if len(pairs) == 0 {
		return nil, 0, nil
	}

	sem := model.NewSemaphore(an.scoringConcurrency)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		survivors []candidatePair
		scored    int
		cancelled bool
	)

	for i, pair := range pairs {
		if i%cancellationCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
			fraction := stageCandidatesCeil + (stageScoreCeil-stageCandidatesCeil)*float64(i)/float64(len(pairs))
			reporter.Report(fraction, "scoring candidate pairs")
		}

		mu.Lock()
		stop := cancelled
		mu.Unlock()
		if stop {
			break
		}

		sem.Acquire()
		wg.Add(1)
		go func(p pairKey) {
			defer wg.Done()
			defer sem.Release()

			sigA, sigB := signatures[p.a], signatures[p.b]
			jaccard := minhash.Jaccard(sigA, sigB)
			if jaccard < cfg.SimilarityThreshold {
				mu.Lock()
				scored++
				mu.Unlock()
				return
			}

			recA, recB := records[p.a], records[p.b]
			result := scorer.Score(recA, recB, jaccard, cfg.Weights, scorer.Options{FuzzySampleSize: cfg.FuzzySampleSize})

			mu.Lock()
			scored++
			if result.Overall >= cfg.SimilarityThreshold {
				survivors = append(survivors, candidatePair{a: p.a, b: p.b, result: result})
			}
			if ctx.Err() != nil {
				cancelled = true
			}
			mu.Unlock()
		}(pair)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return survivors, scored, nil
}

// memberSetKey renders a sorted, comma-joined member-id string — a stable
// key for exact member-set equality comparisons (spec.md §4.9 stage 7).
func memberSetKey(ids []model.DocumentID) string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	sort.Strings(strs)
	out := ""
	for i, s := range strs {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
