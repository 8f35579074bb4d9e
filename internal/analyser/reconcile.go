package analyser

import (
	"context"
	"time"

	"github.com/arrowgate/docdedupe/internal/model"
)

// reconcile compares freshly-clustered groups against what is already
// persisted by exact member-set equality, updates kept groups in place,
// inserts new ones, and lets Store.ReplaceGroups delete whatever vanished
// (spec.md §4.9 stage 7).
func (an *Analyser) reconcile(ctx context.Context, groups []clusterGroup, cfg Config, force bool) (model.ReconcileResult, error) {
	existing, err := an.store.ListGroupsWithMembers(ctx)
	if err != nil {
		return model.ReconcileResult{}, err
	}

	existingByKey := make(map[string]model.GroupWithMembers, len(existing))
	for _, g := range existing {
		existingByKey[memberSetKey(memberIDs(g.Members))] = g
	}

	now := time.Now().UTC()
	matched := make(map[string]struct{}, len(groups))
	keep := make([]model.GroupID, 0, len(groups))
	rebuilt := make([]model.GroupWithMembers, 0, len(groups))
	var created, updated int

	for _, cg := range groups {
		key := memberSetKey(cg.members)
		confidence := confidenceScore(cfg, cg)
		components := model.ComponentScores{
			Jaccard:  cg.components.Jaccard,
			Fuzzy:    cg.components.Fuzzy,
			Metadata: cg.components.Metadata,
			Filename: cg.components.Filename,
		}

		if prior, ok := existingByKey[key]; ok {
			matched[prior.Group.ID.String()] = struct{}{}

			status := prior.Group.Status
			primary := prior.PrimaryDocumentID()
			if force {
				status = model.GroupPending
				primary = cg.primary
			}

			group := prior.Group
			group.Components = components
			group.ConfidenceScore = confidence
			group.Status = status
			group.UpdatedAt = now

			rebuilt = append(rebuilt, model.GroupWithMembers{
				Group:   group,
				Members: buildMembers(group.ID, cg.members, primary),
			})
			keep = append(keep, group.ID)
			updated++
			continue
		}

		id := model.NewGroupID()
		group := model.DuplicateGroup{
			ID:               id,
			ConfidenceScore:  confidence,
			Components:       components,
			AlgorithmVersion: model.SignatureAlgorithmVersion,
			Status:           model.GroupPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		rebuilt = append(rebuilt, model.GroupWithMembers{
			Group:   group,
			Members: buildMembers(id, cg.members, cg.primary),
		})
		keep = append(keep, id)
		created++
	}

	removed := len(existing) - len(matched)

	if err := an.store.ReplaceGroups(ctx, keep, rebuilt); err != nil {
		return model.ReconcileResult{}, err
	}

	return model.ReconcileResult{Created: created, Updated: updated, Removed: removed}, nil
}

func memberIDs(members []model.DuplicateMember) []model.DocumentID {
	out := make([]model.DocumentID, len(members))
	for i, m := range members {
		out[i] = m.DocumentID
	}
	return out
}

func buildMembers(groupID model.GroupID, ids []model.DocumentID, primary model.DocumentID) []model.DuplicateMember {
	out := make([]model.DuplicateMember, len(ids))
	for i, id := range ids {
		out[i] = model.DuplicateMember{GroupID: groupID, DocumentID: id, IsPrimary: id == primary}
	}
	return out
}
