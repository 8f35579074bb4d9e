package store

import (
	"context"
	"database/sql"

	"github.com/arrowgate/docdedupe/internal/model"
)

// UpsertContent writes the one-to-one DocumentContent row for documentID
// (spec.md §4.1 "upsert_content(document_id, normalised, ...)").
func (s *Store) UpsertContent(ctx context.Context, content model.Content) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_content (document_id, full_text, normalized, word_count, content_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			full_text = excluded.full_text,
			normalized = excluded.normalized,
			word_count = excluded.word_count,
			content_hash = excluded.content_hash
	`, content.DocumentID.String(), content.FullText, content.Normalized, content.WordCount, content.ContentHash)
	if err != nil {
		return &model.StoreError{Op: "upsert_content", Cause: err}
	}
	return nil
}

// LoadContent reads the DocumentContent row for documentID.
func (s *Store) LoadContent(ctx context.Context, documentID model.DocumentID) (*model.Content, error) {
	var content model.Content
	content.DocumentID = documentID

	err := s.db.QueryRowContext(ctx, `
		SELECT full_text, normalized, word_count, content_hash
		FROM document_content WHERE document_id = ?
	`, documentID.String()).Scan(&content.FullText, &content.Normalized, &content.WordCount, &content.ContentHash)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Kind: "content", ID: documentID.String()}
	}
	if err != nil {
		return nil, &model.StoreError{Op: "load_content", Cause: err}
	}
	return &content, nil
}
