// Package upstream defines the pull contract against the upstream
// document-management service (spec.md §6): list documents, fetch
// per-document metadata, and list the tag/correspondent/document-type
// reference tables. Only this contract is in scope — auth framing, REST
// routing, and response shapes beyond what SyncEngine needs are the
// collaborator's concern.
package upstream

import (
	"context"
	"time"
)

// Reference is one row of a tag/correspondent/document-type lookup table
// (spec.md §4.8 step 2 "reference maps").
type Reference struct {
	ID   string
	Name string
}

// Document is one upstream document as returned by ListDocuments, carrying
// everything SyncEngine needs to compute a fingerprint and persist a row
// (spec.md §4.8 step 4).
type Document struct {
	UpstreamID      string
	Title           string
	Content         string
	Created         time.Time
	Modified        time.Time
	TagIDs          []string
	CorrespondentID string // empty if unset
	DocumentTypeID  string // empty if unset
}

// Metadata is the back-filled subset of a document fetched lazily after the
// page loop (spec.md §4.8 step 8).
type Metadata struct {
	OriginalFileSize *int64
	ArchiveFileSize  *int64
}

// Page is one page of ListDocuments, ordered by descending Modified.
type Page struct {
	Documents []Document
	NextURL   string // empty when this is the last page
}

// Client is the pull contract SyncEngine depends on. Implementations retry
// transient failures internally and never return model.UpstreamTransientError
// for a call that ultimately succeeded.
type Client interface {
	// ListDocuments fetches one page, starting at nextURL (empty for the
	// first page), ordered by descending "modified".
	ListDocuments(ctx context.Context, nextURL string) (Page, error)
	// GetDocumentMetadata fetches the original/archive file sizes for one
	// document, used by the bounded-concurrency back-fill fan-out.
	GetDocumentMetadata(ctx context.Context, upstreamID string) (Metadata, error)
	// ListTags, ListCorrespondents, and ListDocumentTypes load the
	// reference maps consumed in spec.md §4.8 step 2.
	ListTags(ctx context.Context) ([]Reference, error)
	ListCorrespondents(ctx context.Context) ([]Reference, error)
	ListDocumentTypes(ctx context.Context) ([]Reference, error)
}
