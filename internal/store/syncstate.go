package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/arrowgate/docdedupe/internal/model"
)

// LoadSyncState reads the singleton sync_state row, returning the zero
// value if no sync has ever run.
func (s *Store) LoadSyncState(ctx context.Context) (model.SyncState, error) {
	var (
		state          model.SyncState
		lastSyncAt     sql.NullTime
		lastAnalysisAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT last_sync_at, last_analysis_at, last_sync_doc_count, total_documents,
		       total_duplicate_groups, groups_actioned, documents_deleted, bytes_reclaimed
		FROM sync_state WHERE id = 1
	`).Scan(
		&lastSyncAt, &lastAnalysisAt, &state.LastSyncDocCount, &state.TotalDocuments,
		&state.TotalDuplicateGroups, &state.GroupsActioned, &state.DocumentsDeleted, &state.BytesReclaimed,
	)
	if err == sql.ErrNoRows {
		return model.SyncState{}, nil
	}
	if err != nil {
		return model.SyncState{}, &model.StoreError{Op: "load_sync_state", Cause: err}
	}
	if lastSyncAt.Valid {
		t := lastSyncAt.Time
		state.LastSyncAt = &t
	}
	if lastAnalysisAt.Valid {
		t := lastAnalysisAt.Time
		state.LastAnalysisAt = &t
	}
	return state, nil
}

// CommitSyncResult upserts the singleton sync_state row after a SyncEngine
// run completes (spec.md §4.8 step 9): last_sync_at = now,
// last_sync_document_count = fetched, total_documents = count(*).
func (s *Store) CommitSyncResult(ctx context.Context, syncedAt time.Time, fetched int) error {
	var totalDocs int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&totalDocs); err != nil {
		return &model.StoreError{Op: "commit_sync_result_count", Cause: err}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (id, last_sync_at, last_sync_doc_count, total_documents)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			last_sync_doc_count = excluded.last_sync_doc_count,
			total_documents = excluded.total_documents
	`, syncedAt, fetched, totalDocs)
	if err != nil {
		return &model.StoreError{Op: "commit_sync_result", Cause: err}
	}
	return nil
}

// CommitAnalysisResult updates last_analysis_at and the duplicate-group
// count after an Analyser run completes (spec.md §4.9).
func (s *Store) CommitAnalysisResult(ctx context.Context, analyzedAt time.Time, groupCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (id, last_analysis_at, total_duplicate_groups)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_analysis_at = excluded.last_analysis_at,
			total_duplicate_groups = excluded.total_duplicate_groups
	`, analyzedAt, groupCount)
	if err != nil {
		return &model.StoreError{Op: "commit_analysis_result", Cause: err}
	}
	return nil
}

// ReferenceRow is the {local_id, fingerprint} pair SyncEngine diffs upstream
// pages against (spec.md §4.8 step 3).
type ReferenceRow struct {
	LocalID     model.DocumentID
	Fingerprint string
}

// LoadUpstreamReferenceMap returns {upstream_id -> (local_id, fingerprint)}
// for every known document, used by SyncEngine to decide insert/update/skip
// without re-fetching content for unchanged documents.
func (s *Store) LoadUpstreamReferenceMap(ctx context.Context) (map[string]ReferenceRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT upstream_id, id, fingerprint FROM documents`)
	if err != nil {
		return nil, &model.StoreError{Op: "load_upstream_reference_map", Cause: err}
	}
	defer rows.Close()

	out := make(map[string]ReferenceRow)
	for rows.Next() {
		var upstreamID, idStr, fingerprint string
		if err := rows.Scan(&upstreamID, &idStr, &fingerprint); err != nil {
			return nil, &model.StoreError{Op: "load_upstream_reference_map_scan", Cause: err}
		}
		id, err := model.ParseDocumentID(idStr)
		if err != nil {
			return nil, &model.StoreError{Op: "load_upstream_reference_map_parse_id", Cause: err}
		}
		out[upstreamID] = ReferenceRow{LocalID: id, Fingerprint: fingerprint}
	}
	return out, rows.Err()
}
