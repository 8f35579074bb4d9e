// Package jobs persists and executes the long-running tasks described in
// spec.md §4.10: the JobManager owns the job table's lifecycle, and the
// Worker runs a single job in isolation, polling for cancellation the way
// spec.md §5 requires. It is grounded on cuemby-warren's manager/worker
// split (pkg/manager, pkg/worker) generalized from a cluster's task
// scheduling to this module's sync/analysis job types.
package jobs

import (
	"context"

	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/store"
)

// Manager wraps the Store's job table operations. It holds no in-memory
// job state of its own — every call is a direct Store round-trip, so any
// number of Managers (e.g. one per request handler) can observe the same
// jobs consistently.
type Manager struct {
	store *store.Store
}

// NewManager builds a Manager over st.
func NewManager(st *store.Store) *Manager {
	return &Manager{store: st}
}

// Create inserts a new job row, returning a ConflictError if another job
// of the same type is already in flight (spec.md §4.10).
func (m *Manager) Create(ctx context.Context, jobType model.JobType) (model.JobID, error) {
	return m.store.CreateJob(ctx, jobType)
}

// Start transitions a pending job to running.
func (m *Manager) Start(ctx context.Context, id model.JobID) error {
	return m.store.StartJob(ctx, id)
}

// Progress writes a clamped progress fraction and status message.
func (m *Manager) Progress(ctx context.Context, id model.JobID, fraction float64, message string) error {
	return m.store.SetJobProgress(ctx, id, fraction, message)
}

// Complete marks a job completed with an opaque result payload.
func (m *Manager) Complete(ctx context.Context, id model.JobID, result []byte) error {
	return m.store.CompleteJob(ctx, id, result)
}

// Fail marks a job failed with errMsg.
func (m *Manager) Fail(ctx context.Context, id model.JobID, errMsg string) error {
	return m.store.FailJob(ctx, id, errMsg)
}

// Cancel flips a non-terminal job to cancelled; a no-op on terminal jobs.
func (m *Manager) Cancel(ctx context.Context, id model.JobID) error {
	return m.store.CancelJob(ctx, id)
}

// Load reads a job's current row.
func (m *Manager) Load(ctx context.Context, id model.JobID) (*model.Job, error) {
	return m.store.LoadJob(ctx, id)
}

// RecoverInterrupted marks every {pending, running} job failed with
// model.RestartInterruptedMessage. Must be called once before any new job
// is accepted (spec.md §4.10 "Recovery on process start").
func (m *Manager) RecoverInterrupted(ctx context.Context) (int, error) {
	return m.store.RecoverInterruptedJobs(ctx)
}
