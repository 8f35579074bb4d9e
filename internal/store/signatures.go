package store

import (
	"context"
	"database/sql"

	"github.com/arrowgate/docdedupe/internal/model"
)

// UpsertSignature writes the one-to-one DocumentSignature row for
// documentID (spec.md §4.1 "upsert_signature(document_id, bytes, algo,
// perms)").
func (s *Store) UpsertSignature(ctx context.Context, sig model.Signature) error {
	if !sig.Valid() {
		return &model.InternalInvariantError{Msg: "signature byte length does not match permutations*4"}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_signatures (document_id, bytes, algorithm_version, permutations)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			bytes = excluded.bytes,
			algorithm_version = excluded.algorithm_version,
			permutations = excluded.permutations
	`, sig.DocumentID.String(), sig.Bytes, sig.AlgorithmVersion, sig.Permutations)
	if err != nil {
		return &model.StoreError{Op: "upsert_signature", Cause: err}
	}
	return nil
}

// LoadSignature reads the DocumentSignature row for documentID.
func (s *Store) LoadSignature(ctx context.Context, documentID model.DocumentID) (*model.Signature, error) {
	sig := model.Signature{DocumentID: documentID}
	err := s.db.QueryRowContext(ctx, `
		SELECT bytes, algorithm_version, permutations
		FROM document_signatures WHERE document_id = ?
	`, documentID.String()).Scan(&sig.Bytes, &sig.AlgorithmVersion, &sig.Permutations)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Kind: "signature", ID: documentID.String()}
	}
	if err != nil {
		return nil, &model.StoreError{Op: "load_signature", Cause: err}
	}
	return &sig, nil
}
