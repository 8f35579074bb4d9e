package model

import (
	"errors"
	"fmt"
)

// Error kinds, matching the taxonomy in spec.md §7. Every component wraps
// the underlying cause with one of these rather than returning a bare
// error, so callers can classify with errors.As without string matching.

// ValidationError wraps a malformed-config or out-of-range input. Reported
// synchronously, never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// NotFoundError wraps a missing job/group/document lookup.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ConflictError wraps a request that collides with existing state (e.g. a
// duplicate in-flight job of the same type, or a primary assignment to a
// non-member).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Msg }

// UpstreamTransientError wraps a 429/5xx or network failure from the
// upstream store after the retry budget is exhausted. Counted as a
// per-document failure, never aborts the whole sync run.
type UpstreamTransientError struct {
	Cause error
}

func (e *UpstreamTransientError) Error() string { return "upstream transient: " + e.Cause.Error() }
func (e *UpstreamTransientError) Unwrap() error { return e.Cause }

// UpstreamPermanentError wraps a 4xx (other than 429) from the upstream
// store. Aborts the current sync.
type UpstreamPermanentError struct {
	StatusCode int
	Cause      error
}

func (e *UpstreamPermanentError) Error() string {
	return fmt.Sprintf("upstream permanent (status %d): %v", e.StatusCode, e.Cause)
}
func (e *UpstreamPermanentError) Unwrap() error { return e.Cause }

// StoreError wraps any transactional failure. Aborts the enclosing
// operation, which marks the job failed.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string { return "store: " + e.Op + ": " + e.Cause.Error() }
func (e *StoreError) Unwrap() error { return e.Cause }

// ErrCancelled is returned (and observed via job.status) when a worker
// notices cancellation; it returns without writing a terminal state.
var ErrCancelled = errors.New("job cancelled")

// InternalInvariantError wraps an algorithm-version or signature-length
// mismatch — something that should be structurally impossible. The
// calling analysis run may be retried with force=true to discard stale
// artefacts.
type InternalInvariantError struct {
	Msg string
}

func (e *InternalInvariantError) Error() string { return "internal invariant violated: " + e.Msg }

// IsConflict reports whether err (or any error it wraps) is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsNotFound reports whether err (or any error it wraps) is a NotFoundError.
func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}
