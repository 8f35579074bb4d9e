// Package syncengine pulls documents from the upstream store, diffs them
// against what is already persisted, and writes the result (spec.md
// §4.8). It is the first stage of the pipeline, the way ivoronin-dupedog's
// internal/scanner walks a filesystem before anything downstream screens
// or verifies what it found.
package syncengine

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arrowgate/docdedupe/internal/logging"
	"github.com/arrowgate/docdedupe/internal/metrics"
	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/normalizer"
	"github.com/arrowgate/docdedupe/internal/progress"
	"github.com/arrowgate/docdedupe/internal/store"
	"github.com/arrowgate/docdedupe/internal/upstream"
)

// defaultMaxOCRLength bounds DocumentContent.FullText at ingest time. Not
// pinned by any fixed upstream contract, so chosen generously relative to
// the corpora this pipeline expects to see.
const defaultMaxOCRLength = 500_000

// defaultBackfillConcurrency is the default in-flight limit for the
// per-document metadata fan-out (spec.md §4.8 step 8).
const defaultBackfillConcurrency = 5

// progressFloor and progressCeiling bound SyncEngine's reported progress
// (spec.md §4.8 step 6): the page loop and back-fill together occupy
// [0.05, 0.85], leaving room for the caller (JobManager) to report its own
// startup/teardown slices outside that band.
const (
	progressFloor   = 0.05
	progressCeiling = 0.85
)

// Engine runs one sync pass against a Client and persists the result to a
// Store.
type Engine struct {
	store               *store.Store
	client              upstream.Client
	maxOCRLength        int
	backfillConcurrency int
	recorder            metrics.Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxOCRLength overrides defaultMaxOCRLength.
func WithMaxOCRLength(n int) Option {
	return func(e *Engine) { e.maxOCRLength = n }
}

// WithBackfillConcurrency overrides defaultBackfillConcurrency.
func WithBackfillConcurrency(n int) Option {
	return func(e *Engine) { e.backfillConcurrency = n }
}

// WithRecorder reports sync duration and error counts through r instead of
// discarding them.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New builds an Engine over st and c.
func New(st *store.Store, c upstream.Client, opts ...Option) *Engine {
	e := &Engine{
		store:               st,
		client:              c,
		maxOCRLength:        defaultMaxOCRLength,
		backfillConcurrency: defaultBackfillConcurrency,
		recorder:            metrics.Null,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// referenceTables resolves tag/correspondent/document-type ids to names
// (spec.md §4.8 step 2).
type referenceTables struct {
	tags           map[string]string
	correspondents map[string]string
	documentTypes  map[string]string
}

func (r referenceTables) tagNames(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := r.tags[id]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Run executes one sync pass. forceFull overrides the "full vs incremental"
// decision (spec.md §4.8 step 1).
func (e *Engine) Run(ctx context.Context, reporter progress.Reporter, forceFull bool) (model.SyncResult, error) {
	if reporter == nil {
		reporter = progress.Null
	}
	started := time.Now()
	timer := metrics.NewTimer()
	defer timer.ObserveSeconds(e.recorder, metrics.SyncDuration)

	state, err := e.store.LoadSyncState(ctx)
	if err != nil {
		return model.SyncResult{}, err
	}

	syncType := model.SyncIncremental
	if forceFull || state.LastSyncAt == nil {
		syncType = model.SyncFull
	}

	reporter.Report(0, "loading reference tables")
	refs, err := e.loadReferenceTables(ctx)
	if err != nil {
		return model.SyncResult{}, err
	}

	reporter.Report(progressFloor, "loading known documents")
	known, err := e.store.LoadUpstreamReferenceMap(ctx)
	if err != nil {
		return model.SyncResult{}, err
	}

	result := model.SyncResult{Type: syncType}
	var errTotal int
	var backfillIDs []model.DocumentID

	nextURL := ""
	for {
		if err := ctx.Err(); err != nil {
			return model.SyncResult{}, err
		}

		page, err := e.client.ListDocuments(ctx, nextURL)
		if err != nil {
			return model.SyncResult{}, err
		}

		for _, doc := range page.Documents {
			result.Fetched++

			e.recorder.IncCounter(metrics.SyncDocumentsPulled)

			id, action, err := e.applyDocument(ctx, doc, refs, known)
			if err != nil {
				result.Failed++
				result.Errors = model.AppendError(result.Errors, &errTotal, doc.UpstreamID+": "+err.Error())
				e.recorder.IncCounter(metrics.SyncErrors, "apply_document")
				continue
			}

			switch action {
			case actionInsert:
				result.Inserted++
				backfillIDs = append(backfillIDs, id)
			case actionUpdate:
				result.Updated++
				backfillIDs = append(backfillIDs, id)
			case actionSkip:
				result.Skipped++
			}
		}

		fraction := progressFloor + (progressCeiling-progressFloor)*0.5
		reporter.Report(fraction, "synced page")

		stop := page.NextURL == ""
		if syncType == model.SyncIncremental && len(page.Documents) > 0 && state.LastSyncAt != nil {
			oldest := page.Documents[len(page.Documents)-1]
			if oldest.Modified.Before(*state.LastSyncAt) {
				stop = true
			}
		}
		if stop {
			break
		}
		nextURL = page.NextURL
	}

	reporter.Report(progressCeiling*0.5+progressFloor*0.5, "backfilling file sizes")
	failedBackfills, bytesBackfilled := e.backfillMetadata(ctx, backfillIDs)
	result.Failed += failedBackfills
	result.BytesBackfilled = bytesBackfilled
	reporter.Report(progressCeiling*0.5+progressFloor*0.5, "backfilled "+progress.FormatBytes(bytesBackfilled))

	result.Errors = model.FinalizeErrors(result.Errors, errTotal)
	result.Duration = time.Since(started)

	now := time.Now().UTC()
	if err := e.store.CommitSyncResult(ctx, now, result.Fetched); err != nil {
		return model.SyncResult{}, err
	}

	reporter.Report(progressCeiling, "sync complete")
	return result, nil
}

// loadReferenceTables fetches the tag/correspondent/document-type lookup
// tables concurrently.
func (e *Engine) loadReferenceTables(ctx context.Context) (referenceTables, error) {
	var (
		tags, correspondents, documentTypes []upstream.Reference
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tags, err = e.client.ListTags(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		correspondents, err = e.client.ListCorrespondents(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		documentTypes, err = e.client.ListDocumentTypes(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return referenceTables{}, err
	}

	return referenceTables{
		tags:           referenceMap(tags),
		correspondents: referenceMap(correspondents),
		documentTypes:  referenceMap(documentTypes),
	}, nil
}

func referenceMap(refs []upstream.Reference) map[string]string {
	out := make(map[string]string, len(refs))
	for _, r := range refs {
		out[r.ID] = r.Name
	}
	return out
}

type syncAction int

const (
	actionSkip syncAction = iota
	actionInsert
	actionUpdate
)

// applyDocument diffs one upstream document against known and writes an
// insert/update, or reports a skip (spec.md §4.8 step 5).
func (e *Engine) applyDocument(
	ctx context.Context,
	doc upstream.Document,
	refs referenceTables,
	known map[string]store.ReferenceRow,
) (model.DocumentID, syncAction, error) {
	fingerprint := computeFingerprint(doc)

	ref, seen := known[doc.UpstreamID]
	if seen && ref.Fingerprint == fingerprint {
		return ref.LocalID, actionSkip, nil
	}

	truncated := truncate(doc.Content, e.maxOCRLength)
	norm := normalizer.Normalize(truncated)

	record := model.Document{
		UpstreamID:    doc.UpstreamID,
		Title:         doc.Title,
		Correspondent: refs.correspondents[doc.CorrespondentID],
		DocumentType:  refs.documentTypes[doc.DocumentTypeID],
		Tags:          refs.tagNames(doc.TagIDs),
		CreatedAt:     doc.Created,
		ModifiedAt:    doc.Modified,
		Status:        model.ProcessingPending,
		Fingerprint:   fingerprint,
		LastSyncAt:    time.Now().UTC(),
	}
	if seen {
		record.ID = ref.LocalID
	}

	id, err := e.store.UpsertDocument(ctx, record)
	if err != nil {
		return model.DocumentID{}, actionSkip, err
	}

	content := model.Content{
		DocumentID:  id,
		FullText:    truncated,
		Normalized:  norm.Normalized,
		WordCount:   norm.WordCount,
		ContentHash: norm.ContentHash,
	}
	if err := e.store.UpsertContent(ctx, content); err != nil {
		return model.DocumentID{}, actionSkip, err
	}

	if seen {
		return id, actionUpdate, nil
	}
	return id, actionInsert, nil
}

// backfillMetadata fetches original/archive file sizes for ids with a
// bounded-concurrency fan-out (spec.md §4.8 step 8). Failures are logged
// and counted, never fatal to the sync as a whole. Returns the failure
// count and the sum of every original file size backfilled, reported
// onward as a humanized byte count.
func (e *Engine) backfillMetadata(ctx context.Context, ids []model.DocumentID) (int, int64) {
	if len(ids) == 0 {
		return 0, 0
	}

	var (
		mu      sync.Mutex
		failed  int
		totalBytes int64
	)
	log := logging.WithComponent("syncengine")
	incrFailed := func(id model.DocumentID, err error) {
		log.Warn().Err(err).Str("document_id", id.String()).Msg("metadata back-fill failed")
		mu.Lock()
		failed++
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(e.backfillConcurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			doc, err := e.store.LoadDocument(ctx, id)
			if err != nil {
				incrFailed(id, err)
				return nil
			}

			meta, err := e.client.GetDocumentMetadata(ctx, doc.UpstreamID)
			if err != nil {
				incrFailed(id, err)
				return nil
			}

			doc.OriginalFileSize = meta.OriginalFileSize
			doc.ArchiveFileSize = meta.ArchiveFileSize
			if err := e.store.UpdateDocument(ctx, *doc); err != nil {
				incrFailed(id, err)
				return nil
			}
			if meta.OriginalFileSize != nil {
				mu.Lock()
				totalBytes += *meta.OriginalFileSize
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed, totalBytes
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isUTF8Boundary(s, n) {
		n--
	}
	return s[:n]
}

func isUTF8Boundary(s string, i int) bool {
	return i == 0 || i == len(s) || (s[i]&0xC0) != 0x80
}
