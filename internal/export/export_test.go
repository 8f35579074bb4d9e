package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowgate/docdedupe/internal/config"
	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/store"
	"github.com/arrowgate/docdedupe/internal/testsupport"
)

func seedGroup(t *testing.T, s *store.Store, title string) {
	t.Helper()
	ctx := context.Background()

	doc := model.Document{
		UpstreamID:    "up-1",
		Title:         title,
		Correspondent: "Acme, Inc.",
		Tags:          []string{"invoice", "2026"},
		CreatedAt:     time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Status:        model.ProcessingCompleted,
	}
	docID, err := s.UpsertDocument(ctx, doc)
	require.NoError(t, err)
	require.NoError(t, s.UpsertContent(ctx, model.Content{DocumentID: docID, WordCount: 42}))

	otherID, err := s.UpsertDocument(ctx, model.Document{UpstreamID: "up-2", Title: "dup"})
	require.NoError(t, err)

	groupID := model.NewGroupID()
	group := model.GroupWithMembers{
		Group: model.DuplicateGroup{
			ID:              groupID,
			ConfidenceScore: 0.93,
			Components:      model.ComponentScores{Jaccard: 0.9, Fuzzy: 0.8},
			Status:          model.GroupPending,
			CreatedAt:       time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
		},
		Members: []model.DuplicateMember{
			{GroupID: groupID, DocumentID: docID, IsPrimary: true},
			{GroupID: groupID, DocumentID: otherID},
		},
	}
	require.NoError(t, s.ReplaceGroups(ctx, []model.GroupID{groupID}, []model.GroupWithMembers{group}))
}

func TestWriteDuplicateCSVIncludesBOMHeaderAndQuotedField(t *testing.T) {
	s := testsupport.NewStore(t)
	seedGroup(t, s, `Report "Q1"`)

	var buf bytes.Buffer
	require.NoError(t, New(s).WriteDuplicateCSV(context.Background(), &buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, utf8BOM))

	body := strings.TrimPrefix(out, utf8BOM)
	lines := strings.Split(strings.TrimRight(body, "\r\n"), "\r\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, strings.Join(csvHeader, ","), lines[0])

	assert.Contains(t, body, `"Report ""Q1"""`)
	assert.Contains(t, body, "invoice|2026")
	assert.Contains(t, body, "true")
}

func TestWriteAndImportConfigBackupRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := testsupport.NewStore(t)
	svc := config.New(s)

	cfg := config.Defaults
	cfg.MinWords = 42
	require.NoError(t, svc.Set(ctx, cfg))
	require.NoError(t, s.SetAppConfig(ctx, model.AppConfig{"upstream.url": "https://example.invalid"}))

	var buf bytes.Buffer
	require.NoError(t, New(s).WriteConfigBackup(ctx, &buf, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	other := testsupport.NewStore(t)
	require.NoError(t, New(other).ImportConfigBackup(ctx, &buf))

	restored, err := config.New(other).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, restored)

	otherApp, err := other.LoadAppConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid", otherApp["upstream.url"])
}

func TestImportConfigBackupRejectsUnknownVersion(t *testing.T) {
	s := testsupport.NewStore(t)
	body := `{"version":"2.0","exported_at":"2026-01-01T00:00:00Z","app_config":{},"dedup_config":{}}`

	err := New(s).ImportConfigBackup(context.Background(), strings.NewReader(body))
	require.Error(t, err)
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}
