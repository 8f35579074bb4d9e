// Package model holds the domain types shared across the dedup pipeline:
// documents, content, signatures, groups, members, jobs and sync state.
//
// Nothing in this package touches storage or algorithms — it is the shape
// that every other package (store, analyser, syncengine, jobs) agrees on,
// the way ivoronin-dupedog's internal/types package is the shape scanner,
// screener, verifier and deduper all share.
package model

import "github.com/google/uuid"

// DocumentID identifies a Document row. Locally minted, stable for the
// life of the document.
type DocumentID uuid.UUID

// NewDocumentID mints a new opaque document id.
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

// String renders the id in canonical UUID form.
func (id DocumentID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether id is the unset value.
func (id DocumentID) IsZero() bool { return id == DocumentID{} }

// ParseDocumentID parses a canonical UUID string into a DocumentID.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return DocumentID{}, err
	}
	return DocumentID(u), nil
}

// GroupID identifies a DuplicateGroup row.
type GroupID uuid.UUID

// NewGroupID mints a new opaque group id.
func NewGroupID() GroupID { return GroupID(uuid.New()) }

func (id GroupID) String() string { return uuid.UUID(id).String() }

func (id GroupID) IsZero() bool { return id == GroupID{} }

// ParseGroupID parses a canonical UUID string into a GroupID.
func ParseGroupID(s string) (GroupID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GroupID{}, err
	}
	return GroupID(u), nil
}

// JobID identifies a Job row.
type JobID uuid.UUID

// NewJobID mints a new opaque job id.
func NewJobID() JobID { return JobID(uuid.New()) }

func (id JobID) String() string { return uuid.UUID(id).String() }

func (id JobID) IsZero() bool { return id == JobID{} }

// ParseJobID parses a canonical UUID string into a JobID.
func ParseJobID(s string) (JobID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return JobID{}, err
	}
	return JobID(u), nil
}
