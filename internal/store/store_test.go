package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowgate/docdedupe/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dedupe.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDocument(upstreamID string) model.Document {
	now := time.Now().UTC().Truncate(time.Second)
	return model.Document{
		UpstreamID:   upstreamID,
		Title:        "Invoice " + upstreamID,
		Correspondent: "Acme Corp",
		DocumentType: "invoice",
		Tags:         []string{"billing", "2026"},
		CreatedAt:    now,
		ModifiedAt:   now,
		Status:       model.ProcessingCompleted,
		Fingerprint:  "abc123",
		LastSyncAt:   now,
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedupe.db")
	s1, err := Open(path)
	require.NoError(t, err)
	s1.Close()

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
}

func TestUpsertDocumentInsertsThenUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDocument("up-1")
	id, err := s.UpsertDocument(ctx, doc)
	require.NoError(t, err)
	assert.False(t, id.IsZero())

	loaded, err := s.LoadDocumentByUpstream(ctx, "up-1")
	require.NoError(t, err)
	assert.Equal(t, "Invoice up-1", loaded.Title)
	assert.Equal(t, []string{"billing", "2026"}, loaded.Tags)

	doc.ID = id
	doc.Title = "Invoice up-1 (revised)"
	doc.Fingerprint = "def456"
	id2, err := s.UpsertDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	reloaded, err := s.LoadDocumentByUpstream(ctx, "up-1")
	require.NoError(t, err)
	assert.Equal(t, "Invoice up-1 (revised)", reloaded.Title)
	assert.Equal(t, "def456", reloaded.Fingerprint)
}

func TestLoadDocumentByUpstreamNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadDocumentByUpstream(context.Background(), "missing")
	assert.True(t, model.IsNotFound(err))
}

func TestIterateDocumentsVisitsAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.UpsertDocument(ctx, sampleDocument(string(rune('a'+i))))
		require.NoError(t, err)
	}

	seen := 0
	err := s.IterateDocuments(ctx, func(model.Document) error {
		seen++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

func TestContentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, sampleDocument("up-content"))
	require.NoError(t, err)

	content := model.Content{
		DocumentID:  id,
		FullText:    "Full OCR text",
		Normalized:  "full ocr text",
		WordCount:   3,
		ContentHash: "hash1",
	}
	require.NoError(t, s.UpsertContent(ctx, content))

	loaded, err := s.LoadContent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "full ocr text", loaded.Normalized)
	assert.Equal(t, 3, loaded.WordCount)
}

func TestSignatureRoundTripRejectsInvalidLength(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, sampleDocument("up-sig"))
	require.NoError(t, err)

	bad := model.Signature{DocumentID: id, Bytes: []byte{1, 2, 3}, AlgorithmVersion: "minhash-v1", Permutations: 4}
	err = s.UpsertSignature(ctx, bad)
	var invariantErr *model.InternalInvariantError
	assert.ErrorAs(t, err, &invariantErr)

	good := model.Signature{DocumentID: id, Bytes: make([]byte, 16), AlgorithmVersion: "minhash-v1", Permutations: 4}
	require.NoError(t, s.UpsertSignature(ctx, good))

	loaded, err := s.LoadSignature(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Permutations)
}

func TestReplaceGroupsRebuildsAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	idA, err := s.UpsertDocument(ctx, sampleDocument("a"))
	require.NoError(t, err)
	idB, err := s.UpsertDocument(ctx, sampleDocument("b"))
	require.NoError(t, err)

	groupID := model.NewGroupID()
	now := time.Now().UTC()
	group := model.GroupWithMembers{
		Group: model.DuplicateGroup{
			ID:               groupID,
			ConfidenceScore:  0.9,
			Components:       model.ComponentScores{Jaccard: 0.9, Fuzzy: 0.85},
			AlgorithmVersion: "minhash-v1",
			Status:           model.GroupPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		Members: []model.DuplicateMember{
			{GroupID: groupID, DocumentID: idA, IsPrimary: true},
			{GroupID: groupID, DocumentID: idB, IsPrimary: false},
		},
	}

	require.NoError(t, s.ReplaceGroups(ctx, nil, []model.GroupWithMembers{group}))

	loaded, err := s.LoadGroupWithMembers(ctx, groupID)
	require.NoError(t, err)
	assert.Len(t, loaded.Members, 2)
	assert.Equal(t, idA, loaded.PrimaryDocumentID())

	// A second rebuild that omits groupID from keep removes it entirely.
	require.NoError(t, s.ReplaceGroups(ctx, nil, nil))
	_, err = s.LoadGroupWithMembers(ctx, groupID)
	assert.True(t, model.IsNotFound(err))
}

func TestSetPrimaryRejectsNonMember(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	idA, err := s.UpsertDocument(ctx, sampleDocument("a"))
	require.NoError(t, err)
	idB, err := s.UpsertDocument(ctx, sampleDocument("b"))
	require.NoError(t, err)
	idC, err := s.UpsertDocument(ctx, sampleDocument("c"))
	require.NoError(t, err)

	groupID := model.NewGroupID()
	now := time.Now().UTC()
	group := model.GroupWithMembers{
		Group: model.DuplicateGroup{
			ID: groupID, ConfidenceScore: 0.9, AlgorithmVersion: "minhash-v1",
			Status: model.GroupPending, CreatedAt: now, UpdatedAt: now,
		},
		Members: []model.DuplicateMember{
			{GroupID: groupID, DocumentID: idA, IsPrimary: true},
			{GroupID: groupID, DocumentID: idB, IsPrimary: false},
		},
	}
	require.NoError(t, s.ReplaceGroups(ctx, nil, []model.GroupWithMembers{group}))

	err = s.SetPrimary(ctx, groupID, idC)
	assert.True(t, model.IsConflict(err))

	require.NoError(t, s.SetPrimary(ctx, groupID, idB))
	loaded, err := s.LoadGroupWithMembers(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, idB, loaded.PrimaryDocumentID())
}

func TestJobLifecycleAndAtMostOneInFlight(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateJob(ctx, model.JobTypeSync)
	require.NoError(t, err)

	_, err = s.CreateJob(ctx, model.JobTypeSync)
	assert.True(t, model.IsConflict(err))

	otherID, err := s.CreateJob(ctx, model.JobTypeAnalysis)
	require.NoError(t, err)
	assert.NotEqual(t, id, otherID)

	require.NoError(t, s.StartJob(ctx, id))
	require.NoError(t, s.SetJobProgress(ctx, id, 1.5, "almost done"))

	job, err := s.LoadJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, job.Status)
	assert.Equal(t, 1.0, job.Progress)

	require.NoError(t, s.CompleteJob(ctx, id, []byte(`{"ok":true}`)))
	job, err = s.LoadJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)

	// The type is free again now that the prior job is terminal.
	_, err = s.CreateJob(ctx, model.JobTypeSync)
	require.NoError(t, err)
}

func TestRecoverInterruptedJobsMarksFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateJob(ctx, model.JobTypeSync)
	require.NoError(t, err)
	require.NoError(t, s.StartJob(ctx, id))

	n, err := s.RecoverInterruptedJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := s.LoadJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Equal(t, model.RestartInterruptedMessage, job.ErrorMessage)
}

func TestAppConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetAppConfig(ctx, model.AppConfig{"dedup.num_permutations": "192", "dedup.num_bands": "20"}))

	cfg, err := s.LoadAppConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "192", cfg["dedup.num_permutations"])
	assert.Equal(t, "20", cfg["dedup.num_bands"])
}

func TestCommitSyncResultAndReferenceMap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, sampleDocument("ref-1"))
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.CommitSyncResult(ctx, now, 1))

	state, err := s.LoadSyncState(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.LastSyncAt)
	assert.Equal(t, 1, state.LastSyncDocCount)
	assert.Equal(t, 1, state.TotalDocuments)

	refMap, err := s.LoadUpstreamReferenceMap(ctx)
	require.NoError(t, err)
	ref, ok := refMap["ref-1"]
	require.True(t, ok)
	assert.Equal(t, id, ref.LocalID)
	assert.Equal(t, "abc123", ref.Fingerprint)
}

func TestRecordGroupResolutionAccumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordGroupResolution(ctx, 2, 1024))
	require.NoError(t, s.RecordGroupResolution(ctx, 1, 512))

	state, err := s.LoadSyncState(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, state.GroupsActioned)
	assert.EqualValues(t, 3, state.DocumentsDeleted)
	assert.EqualValues(t, 1536, state.BytesReclaimed)
}
