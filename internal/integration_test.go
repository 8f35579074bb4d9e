package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowgate/docdedupe/internal/analyser"
	"github.com/arrowgate/docdedupe/internal/config"
	"github.com/arrowgate/docdedupe/internal/export"
	"github.com/arrowgate/docdedupe/internal/jobs"
	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/scorer"
	"github.com/arrowgate/docdedupe/internal/syncengine"
	"github.com/arrowgate/docdedupe/internal/testsupport"
	"github.com/arrowgate/docdedupe/internal/upstream"
)

// fakeUpstream is a minimal upstream.Client double: a single fixed page of
// documents, enough to exercise SyncEngine's full apply path without an
// HTTP server.
type fakeUpstream struct {
	documents []upstream.Document
}

func (f *fakeUpstream) ListDocuments(_ context.Context, nextURL string) (upstream.Page, error) {
	if nextURL != "" {
		return upstream.Page{}, nil
	}
	return upstream.Page{Documents: f.documents}, nil
}

func (f *fakeUpstream) GetDocumentMetadata(_ context.Context, upstreamID string) (upstream.Metadata, error) {
	size := int64(1024)
	return upstream.Metadata{OriginalFileSize: &size}, nil
}

func (f *fakeUpstream) ListTags(context.Context) ([]upstream.Reference, error) { return nil, nil }
func (f *fakeUpstream) ListCorrespondents(context.Context) ([]upstream.Reference, error) {
	return []upstream.Reference{{ID: "c1", Name: "Acme"}}, nil
}
func (f *fakeUpstream) ListDocumentTypes(context.Context) ([]upstream.Reference, error) {
	return nil, nil
}

// TestFullPipelineSyncAnalyzeExport runs documents through every stage of
// the pipeline spec.md §4 describes: SyncEngine pulls and persists them,
// JobManager/Worker execute both long-running passes the way a real
// process would, Analyser clusters the near-duplicate pair into a group,
// ConfigService's weight change triggers a confidence recompute, and
// Exporter streams the result back out as CSV.
func TestFullPipelineSyncAnalyzeExport(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	shared := testsupport.Words(40, "invoice payment due thirty days net terms apply")
	distinct := testsupport.Words(40, "unrelated weather forecast rain expected tomorrow afternoon")

	client := &fakeUpstream{documents: []upstream.Document{
		{UpstreamID: "up-1", Title: "Invoice A", Content: shared, Created: now, Modified: now, CorrespondentID: "c1"},
		{UpstreamID: "up-2", Title: "Invoice B", Content: shared, Created: now, Modified: now, CorrespondentID: "c1"},
		{UpstreamID: "up-3", Title: "Weather note", Content: distinct, Created: now, Modified: now},
	}}

	s := testsupport.NewStore(t)
	manager := jobs.NewManager(s)
	worker := jobs.NewWorker(manager).WithPollInterval(10 * time.Millisecond)

	engine := syncengine.New(s, client)
	syncHandle, err := worker.Launch(ctx, model.JobTypeSync, jobs.SyncRun(engine, false))
	require.NoError(t, err)
	syncHandle.Wait()

	syncJob, err := manager.Load(ctx, syncHandle.JobID)
	require.NoError(t, err)
	require.Equal(t, model.JobCompleted, syncJob.Status)

	var syncResult model.SyncResult
	require.NoError(t, json.Unmarshal(syncJob.Result, &syncResult))
	assert.Equal(t, 3, syncResult.Inserted)
	assert.EqualValues(t, 3*1024, syncResult.BytesBackfilled)

	cfg := analyser.Config{
		Permutations:        64,
		Bands:               16,
		NgramSize:           3,
		MinWords:            10,
		SimilarityThreshold: 0.5,
		Weights:             scorer.Weights{Jaccard: 70, Fuzzy: 30},
	}

	an := analyser.New(s)
	analysisHandle, err := worker.Launch(ctx, model.JobTypeAnalysis, jobs.AnalysisRun(an, cfg, false))
	require.NoError(t, err)
	analysisHandle.Wait()

	analysisJob, err := manager.Load(ctx, analysisHandle.JobID)
	require.NoError(t, err)
	require.Equal(t, model.JobCompleted, analysisJob.Status)

	var analysisResult model.AnalysisResult
	require.NoError(t, json.Unmarshal(analysisJob.Result, &analysisResult))
	assert.Equal(t, 1, analysisResult.GroupsFormed)

	groups, err := s.ListGroupsWithMembers(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Members, 2)
	originalConfidence := groups[0].Group.ConfidenceScore

	// A weight change recomputes the stored group's confidence from its
	// already-aggregated component scores, without rerunning analysis
	// (spec.md §4.11).
	svc := config.New(s)
	newCfg, err := svc.Get(ctx)
	require.NoError(t, err)
	newCfg.Weights.Jaccard, newCfg.Weights.Fuzzy = 30, 50
	require.NoError(t, svc.Set(ctx, newCfg))

	reloaded, err := s.ListGroupsWithMembers(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.NotEqual(t, originalConfidence, reloaded[0].Group.ConfidenceScore)

	var buf bytes.Buffer
	require.NoError(t, export.New(s).WriteDuplicateCSV(ctx, &buf))
	out := buf.String()
	assert.Contains(t, out, "Invoice A")
	assert.Contains(t, out, "Acme")
	assert.True(t, strings.Contains(out, "true")) // one member marked primary
}
