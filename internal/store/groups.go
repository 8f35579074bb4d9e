package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/arrowgate/docdedupe/internal/model"
)

// ReplaceGroups atomically rebuilds the duplicate_groups/duplicate_members
// tables to exactly the given set: any existing group whose id is not in
// keep is deleted, and every row in newGroups is upserted (status
// included) with its members replaced — the
// "replace_groups(new_groups, new_members)" operation of spec.md §4.1, used
// by Analyser's reconcile stage (spec.md §4.9 stage 7) so an operator never
// observes a partial rebuild.
func (s *Store) ReplaceGroups(ctx context.Context, keep []model.GroupID, newGroups []model.GroupWithMembers) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		keepSet := make(map[string]struct{}, len(keep))
		for _, id := range keep {
			keepSet[id.String()] = struct{}{}
		}

		existingIDs, err := queryStrings(ctx, tx, `SELECT id FROM duplicate_groups`)
		if err != nil {
			return &model.StoreError{Op: "replace_groups_list_existing", Cause: err}
		}
		for _, id := range existingIDs {
			if _, ok := keepSet[id]; ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM duplicate_groups WHERE id = ?`, id); err != nil {
				return &model.StoreError{Op: "replace_groups_delete", Cause: err}
			}
		}

		for _, g := range newGroups {
			if err := upsertGroup(ctx, tx, g.Group); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM duplicate_members WHERE group_id = ?`, g.Group.ID.String()); err != nil {
				return &model.StoreError{Op: "replace_groups_clear_members", Cause: err}
			}
			for _, m := range g.Members {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO duplicate_members (group_id, document_id, is_primary)
					VALUES (?, ?, ?)
				`, m.GroupID.String(), m.DocumentID.String(), boolToInt(m.IsPrimary)); err != nil {
					return &model.StoreError{Op: "replace_groups_insert_member", Cause: err}
				}
			}
		}
		return nil
	})
}

func upsertGroup(ctx context.Context, tx *sql.Tx, g model.DuplicateGroup) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO duplicate_groups (
			id, confidence_score, jaccard_score, fuzzy_score, metadata_score, filename_score,
			algorithm_version, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			confidence_score = excluded.confidence_score,
			jaccard_score = excluded.jaccard_score,
			fuzzy_score = excluded.fuzzy_score,
			metadata_score = excluded.metadata_score,
			filename_score = excluded.filename_score,
			algorithm_version = excluded.algorithm_version,
			status = excluded.status,
			updated_at = excluded.updated_at
	`,
		g.ID.String(), g.ConfidenceScore, g.Components.Jaccard, g.Components.Fuzzy,
		g.Components.Metadata, g.Components.Filename,
		g.AlgorithmVersion, string(g.Status), g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return &model.StoreError{Op: "upsert_group", Cause: err}
	}
	return nil
}

// SetGroupStatus mutates a group's status (operator action, spec.md §3
// DuplicateGroup lifecycle).
func (s *Store) SetGroupStatus(ctx context.Context, id model.GroupID, status model.GroupStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE duplicate_groups SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), nowUTC(), id.String())
	if err != nil {
		return &model.StoreError{Op: "set_group_status", Cause: err}
	}
	return expectOneRowAffected(res, "group", id.String())
}

// SetPrimary flags documentID as the sole primary member of groupID,
// rejecting the call with a ConflictError if documentID is not a member
// (spec.md §3 DuplicateMember "primary assignment to a non-member").
func (s *Store) SetPrimary(ctx context.Context, groupID model.GroupID, documentID model.DocumentID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM duplicate_members WHERE group_id = ? AND document_id = ?
		`, groupID.String(), documentID.String()).Scan(&count)
		if err != nil {
			return &model.StoreError{Op: "set_primary_check", Cause: err}
		}
		if count == 0 {
			return &model.ConflictError{Msg: "document " + documentID.String() + " is not a member of group " + groupID.String()}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE duplicate_members SET is_primary = 0 WHERE group_id = ?
		`, groupID.String()); err != nil {
			return &model.StoreError{Op: "set_primary_clear", Cause: err}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE duplicate_members SET is_primary = 1 WHERE group_id = ? AND document_id = ?
		`, groupID.String(), documentID.String()); err != nil {
			return &model.StoreError{Op: "set_primary_set", Cause: err}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE duplicate_groups SET updated_at = ? WHERE id = ?
		`, nowUTC(), groupID.String()); err != nil {
			return &model.StoreError{Op: "set_primary_touch_group", Cause: err}
		}
		return nil
	})
}

// DeleteGroup removes a group and (via ON DELETE CASCADE) its members.
func (s *Store) DeleteGroup(ctx context.Context, id model.GroupID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM duplicate_groups WHERE id = ?`, id.String())
	if err != nil {
		return &model.StoreError{Op: "delete_group", Cause: err}
	}
	return expectOneRowAffected(res, "group", id.String())
}

// LoadGroupWithMembers reads one group and its members.
func (s *Store) LoadGroupWithMembers(ctx context.Context, id model.GroupID) (*model.GroupWithMembers, error) {
	g, err := s.loadGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.loadMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.GroupWithMembers{Group: *g, Members: members}, nil
}

// ListGroupsWithMembers returns every group, whatever its status, with its members,
// used by Analyser's reconcile stage and ExportService.
func (s *Store) ListGroupsWithMembers(ctx context.Context) ([]model.GroupWithMembers, error) {
	ids, err := queryStrings(ctx, s.db, `SELECT id FROM duplicate_groups`)
	if err != nil {
		return nil, &model.StoreError{Op: "list_groups", Cause: err}
	}

	out := make([]model.GroupWithMembers, 0, len(ids))
	for _, idStr := range ids {
		id, err := model.ParseGroupID(idStr)
		if err != nil {
			return nil, &model.StoreError{Op: "list_groups_parse_id", Cause: err}
		}
		gwm, err := s.LoadGroupWithMembers(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *gwm)
	}
	return out, nil
}

func (s *Store) loadGroup(ctx context.Context, id model.GroupID) (*model.DuplicateGroup, error) {
	var (
		g                model.DuplicateGroup
		status           string
		metadata         sql.NullFloat64
		filename         sql.NullFloat64
		createdAt        time.Time
		updatedAt        time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, confidence_score, jaccard_score, fuzzy_score, metadata_score, filename_score,
		       algorithm_version, status, created_at, updated_at
		FROM duplicate_groups WHERE id = ?
	`, id.String()).Scan(
		new(string), &g.ConfidenceScore, &g.Components.Jaccard, &g.Components.Fuzzy,
		&metadata, &filename, &g.AlgorithmVersion, &status, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Kind: "group", ID: id.String()}
	}
	if err != nil {
		return nil, &model.StoreError{Op: "load_group", Cause: err}
	}
	g.ID = id
	g.Status = model.GroupStatus(status)
	g.CreatedAt = createdAt
	g.UpdatedAt = updatedAt
	if metadata.Valid {
		v := metadata.Float64
		g.Components.Metadata = &v
	}
	if filename.Valid {
		v := filename.Float64
		g.Components.Filename = &v
	}
	return &g, nil
}

func (s *Store) loadMembers(ctx context.Context, groupID model.GroupID) ([]model.DuplicateMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, is_primary FROM duplicate_members WHERE group_id = ?
	`, groupID.String())
	if err != nil {
		return nil, &model.StoreError{Op: "load_members", Cause: err}
	}
	defer rows.Close()

	var members []model.DuplicateMember
	for rows.Next() {
		var (
			docIDStr string
			primary  int
		)
		if err := rows.Scan(&docIDStr, &primary); err != nil {
			return nil, &model.StoreError{Op: "load_members_scan", Cause: err}
		}
		docID, err := model.ParseDocumentID(docIDStr)
		if err != nil {
			return nil, &model.StoreError{Op: "load_members_parse_id", Cause: err}
		}
		members = append(members, model.DuplicateMember{
			GroupID:    groupID,
			DocumentID: docID,
			IsPrimary:  primary != 0,
		})
	}
	return members, rows.Err()
}

// RecordGroupResolution increments the sync_state rollup counters when an
// operator resolves a group (spec.md §9 supplemented feature: group
// resolution statistics). reclaimedBytes is the sum of archive file sizes
// for documents the caller actually deleted, or 0 for a keep/ignore/
// false-positive resolution.
func (s *Store) RecordGroupResolution(ctx context.Context, documentsDeleted int64, reclaimedBytes int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_state SET
			groups_actioned = groups_actioned + 1,
			documents_deleted = documents_deleted + ?,
			bytes_reclaimed = bytes_reclaimed + ?
		WHERE id = 1
	`, documentsDeleted, reclaimedBytes)
	if err != nil {
		return &model.StoreError{Op: "record_group_resolution", Cause: err}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func expectOneRowAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &model.StoreError{Op: "rows_affected", Cause: err}
	}
	if n == 0 {
		return &model.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// queryableRows is the subset of database/sql's *sql.DB and *sql.Tx used by
// queryStrings.
type queryableRows interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryStrings(ctx context.Context, q queryableRows, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
