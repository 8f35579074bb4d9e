package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/arrowgate/docdedupe/internal/model"
)

// UpsertDocument inserts a new document keyed by UpstreamID, or updates the
// existing row with the same UpstreamID, returning the (possibly
// newly-minted) DocumentID (spec.md §4.1 "upsert_document(...) -> id").
func (s *Store) UpsertDocument(ctx context.Context, doc model.Document) (model.DocumentID, error) {
	existing, err := s.LoadDocumentByUpstream(ctx, doc.UpstreamID)
	if err != nil && !model.IsNotFound(err) {
		return model.DocumentID{}, err
	}

	id := doc.ID
	addedAt := doc.AddedAt
	if existing != nil {
		id = existing.ID
		addedAt = existing.AddedAt
	}
	if id.IsZero() {
		id = model.NewDocumentID()
	}
	if addedAt.IsZero() {
		addedAt = nowUTC()
	}

	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return model.DocumentID{}, &model.StoreError{Op: "marshal_tags", Cause: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, upstream_id, title, correspondent, document_type, tags,
			created_at, added_at, modified_at, status,
			original_file_size, archive_file_size, fingerprint, last_sync_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(upstream_id) DO UPDATE SET
			title = excluded.title,
			correspondent = excluded.correspondent,
			document_type = excluded.document_type,
			tags = excluded.tags,
			created_at = excluded.created_at,
			modified_at = excluded.modified_at,
			status = excluded.status,
			original_file_size = excluded.original_file_size,
			archive_file_size = excluded.archive_file_size,
			fingerprint = excluded.fingerprint,
			last_sync_at = excluded.last_sync_at
	`,
		id.String(), doc.UpstreamID, doc.Title, doc.Correspondent, doc.DocumentType, string(tags),
		doc.CreatedAt, addedAt, doc.ModifiedAt, string(doc.Status),
		doc.OriginalFileSize, doc.ArchiveFileSize, doc.Fingerprint, doc.LastSyncAt,
	)
	if err != nil {
		return model.DocumentID{}, &model.StoreError{Op: "upsert_document", Cause: err}
	}
	return id, nil
}

// UpdateDocument overwrites every mutable field of an existing document row.
func (s *Store) UpdateDocument(ctx context.Context, doc model.Document) error {
	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return &model.StoreError{Op: "marshal_tags", Cause: err}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET
			title = ?, correspondent = ?, document_type = ?, tags = ?,
			created_at = ?, modified_at = ?, status = ?,
			original_file_size = ?, archive_file_size = ?,
			fingerprint = ?, last_sync_at = ?
		WHERE id = ?
	`,
		doc.Title, doc.Correspondent, doc.DocumentType, string(tags),
		doc.CreatedAt, doc.ModifiedAt, string(doc.Status),
		doc.OriginalFileSize, doc.ArchiveFileSize,
		doc.Fingerprint, doc.LastSyncAt, doc.ID.String(),
	)
	if err != nil {
		return &model.StoreError{Op: "update_document", Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &model.StoreError{Op: "update_document_rows_affected", Cause: err}
	}
	if n == 0 {
		return &model.NotFoundError{Kind: "document", ID: doc.ID.String()}
	}
	return nil
}

// LoadDocumentByUpstream looks up a document by its upstream id, returning
// a NotFoundError if absent.
func (s *Store) LoadDocumentByUpstream(ctx context.Context, upstreamID string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, upstream_id, title, correspondent, document_type, tags,
		       created_at, added_at, modified_at, status,
		       original_file_size, archive_file_size, fingerprint, last_sync_at
		FROM documents WHERE upstream_id = ?
	`, upstreamID)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Kind: "document", ID: upstreamID}
	}
	if err != nil {
		return nil, &model.StoreError{Op: "load_document_by_upstream", Cause: err}
	}
	return doc, nil
}

// LoadDocument looks up a document by its local id.
func (s *Store) LoadDocument(ctx context.Context, id model.DocumentID) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, upstream_id, title, correspondent, document_type, tags,
		       created_at, added_at, modified_at, status,
		       original_file_size, archive_file_size, fingerprint, last_sync_at
		FROM documents WHERE id = ?
	`, id.String())
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Kind: "document", ID: id.String()}
	}
	if err != nil {
		return nil, &model.StoreError{Op: "load_document", Cause: err}
	}
	return doc, nil
}

// IterateDocuments streams every document row to fn, stopping (and
// propagating the error) the first time fn returns a non-nil error. Used by
// Analyser's corpus selection. fn runs while the iteration holds the
// Store's only connection, so a Store call made from fn blocks.
func (s *Store) IterateDocuments(ctx context.Context, fn func(model.Document) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, upstream_id, title, correspondent, document_type, tags,
		       created_at, added_at, modified_at, status,
		       original_file_size, archive_file_size, fingerprint, last_sync_at
		FROM documents
	`)
	if err != nil {
		return &model.StoreError{Op: "iterate_documents", Cause: err}
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return &model.StoreError{Op: "iterate_documents_scan", Cause: err}
		}
		if err := fn(*doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// scanner is the subset of *sql.Row / *sql.Rows used for document scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*model.Document, error) {
	var (
		doc              model.Document
		idStr            string
		status           string
		tagsJSON         string
		originalFileSize sql.NullInt64
		archiveFileSize  sql.NullInt64
		createdAt        time.Time
		addedAt          time.Time
		modifiedAt       time.Time
		lastSyncAt       time.Time
	)

	if err := row.Scan(
		&idStr, &doc.UpstreamID, &doc.Title, &doc.Correspondent, &doc.DocumentType, &tagsJSON,
		&createdAt, &addedAt, &modifiedAt, &status,
		&originalFileSize, &archiveFileSize, &doc.Fingerprint, &lastSyncAt,
	); err != nil {
		return nil, err
	}

	id, err := model.ParseDocumentID(idStr)
	if err != nil {
		return nil, err
	}
	doc.ID = id
	doc.Status = model.ProcessingStatus(status)
	doc.CreatedAt = createdAt
	doc.AddedAt = addedAt
	doc.ModifiedAt = modifiedAt
	doc.LastSyncAt = lastSyncAt
	if originalFileSize.Valid {
		v := originalFileSize.Int64
		doc.OriginalFileSize = &v
	}
	if archiveFileSize.Valid {
		v := archiveFileSize.Int64
		doc.ArchiveFileSize = &v
	}
	if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
		return nil, err
	}
	return &doc, nil
}
