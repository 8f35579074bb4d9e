package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/scorer"
	"github.com/arrowgate/docdedupe/internal/testsupport"
)

func TestGetReturnsDefaultsWhenUnset(t *testing.T) {
	svc := New(testsupport.NewStore(t))
	cfg, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults, cfg)
}

func TestSetPersistsAndGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	svc := New(testsupport.NewStore(t))

	cfg := Defaults
	cfg.NumPermutations = 64
	cfg.MinWords = 15
	cfg.Weights = scorer.Weights{Jaccard: 70, Fuzzy: 30}

	require.NoError(t, svc.Set(ctx, cfg))

	loaded, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSetRejectsWeightsNotSummingTo100(t *testing.T) {
	svc := New(testsupport.NewStore(t))
	cfg := Defaults
	cfg.Weights = scorer.Weights{Jaccard: 50, Fuzzy: 30}

	err := svc.Set(context.Background(), cfg)
	require.Error(t, err)
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSetRejectsOutOfRangeField(t *testing.T) {
	svc := New(testsupport.NewStore(t))
	cfg := Defaults
	cfg.NumPermutations = 8 // below the [16, 1024] floor

	err := svc.Set(context.Background(), cfg)
	require.Error(t, err)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "num_permutations", verr.Field)
}

func TestSetRecomputesGroupConfidenceOnlyWhenWeightsChange(t *testing.T) {
	ctx := context.Background()
	s := testsupport.NewStore(t)
	svc := New(s)

	groupID := model.NewGroupID()
	docA, docB := model.NewDocumentID(), model.NewDocumentID()
	metadata, filename := 0.5, 0.5
	group := model.GroupWithMembers{
		Group: model.DuplicateGroup{
			ID: groupID,
			Components: model.ComponentScores{
				Jaccard: 1.0, Fuzzy: 0.0, Metadata: &metadata, Filename: &filename,
			},
			AlgorithmVersion: model.SignatureAlgorithmVersion,
			Status:           model.GroupPending,
		},
		Members: []model.DuplicateMember{
			{GroupID: groupID, DocumentID: docA, IsPrimary: true},
			{GroupID: groupID, DocumentID: docB},
		},
	}
	require.NoError(t, s.ReplaceGroups(ctx, []model.GroupID{groupID}, []model.GroupWithMembers{group}))

	// Same weights: no recompute, confidence_score stays whatever ReplaceGroups
	// wrote (0, since it was never set).
	require.NoError(t, svc.Set(ctx, Defaults))
	unchanged, err := s.LoadGroupWithMembers(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, unchanged.Group.ConfidenceScore)

	changed := Defaults
	changed.Weights = scorer.Weights{Jaccard: 100}
	require.NoError(t, svc.Set(ctx, changed))

	recomputed, err := s.LoadGroupWithMembers(ctx, groupID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, recomputed.Group.ConfidenceScore, 1e-9)
}
