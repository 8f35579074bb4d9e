package model

import "time"

// ProcessingStatus is a Document's upstream OCR/processing state.
type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingCompleted ProcessingStatus = "completed"
)

// Document is one row per upstream document (spec.md §3 Document).
type Document struct {
	ID                DocumentID
	UpstreamID        string
	Title             string
	Correspondent     string
	DocumentType      string
	Tags              []string // sorted tag names
	CreatedAt         time.Time
	AddedAt           time.Time
	ModifiedAt        time.Time
	Status            ProcessingStatus
	OriginalFileSize  *int64
	ArchiveFileSize   *int64
	Fingerprint       string // hex SHA-256, empty until first sync completes
	LastSyncAt        time.Time
}

// Content is the one-to-one DocumentContent row (spec.md §3 DocumentContent).
type Content struct {
	DocumentID   DocumentID
	FullText     string // truncated to MaxOCRLength at ingest time
	Normalized   string
	WordCount    int
	ContentHash  string // hex SHA-256 of Normalized
}

// SignatureAlgorithmVersion is bumped whenever the MinHash coefficient
// table or hashing scheme changes incompatibly.
const SignatureAlgorithmVersion = "minhash-v1"

// Signature is the one-to-one DocumentSignature row (spec.md §3
// DocumentSignature). Bytes is the little-endian concatenation of
// Permutations uint32 words.
type Signature struct {
	DocumentID        DocumentID
	Bytes             []byte
	AlgorithmVersion  string
	Permutations      int
}

// Valid reports whether Bytes is exactly Permutations*4 bytes long, the
// invariant spec.md §3 requires of a stored signature.
func (s Signature) Valid() bool {
	return len(s.Bytes) == s.Permutations*4
}

// Stale reports whether a previously-persisted signature must be
// regenerated: the content changed, or the signature was computed under a
// different algorithm version or permutation count (spec.md §4.9 step 2).
func (s Signature) Stale(currentVersion string, currentPermutations int, contentChanged bool) bool {
	return contentChanged || s.AlgorithmVersion != currentVersion || s.Permutations != currentPermutations
}

// ScoringRecord is the subset of a Document+Content the Scorer needs,
// passed by value so the scorer never reaches back into the Store.
type ScoringRecord struct {
	DocumentID    DocumentID
	UpstreamID    string
	Title         string
	Normalized    string
	Correspondent *string
	DocumentType  *string
	FileSize      *int64
	CreatedAt     *time.Time
}
