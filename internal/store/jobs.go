package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/arrowgate/docdedupe/internal/model"
)

// CreateJob inserts a new job row, failing with a ConflictError if another
// job of the same type is already {pending, running} (spec.md §4.10
// "create(type) -> id fails with AlreadyRunning").
func (s *Store) CreateJob(ctx context.Context, jobType model.JobType) (model.JobID, error) {
	var created model.JobID
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM jobs WHERE type = ? AND status IN ('pending', 'running')
		`, string(jobType)).Scan(&count); err != nil {
			return &model.StoreError{Op: "create_job_check", Cause: err}
		}
		if count > 0 {
			return &model.ConflictError{Msg: "a " + string(jobType) + " job is already in flight"}
		}

		id := model.NewJobID()
		now := nowUTC()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (id, type, status, progress, progress_message, created_at)
			VALUES (?, ?, ?, 0, '', ?)
		`, id.String(), string(jobType), string(model.JobPending), now); err != nil {
			return &model.StoreError{Op: "create_job_insert", Cause: err}
		}
		created = id
		return nil
	})
	return created, err
}

// StartJob transitions a pending job to running and records started_at.
func (s *Store) StartJob(ctx context.Context, id model.JobID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?
	`, string(model.JobRunning), nowUTC(), id.String(), string(model.JobPending))
	if err != nil {
		return &model.StoreError{Op: "start_job", Cause: err}
	}
	return expectOneRowAffected(res, "job", id.String())
}

// SetJobProgress writes a clamped progress value and message.
func (s *Store) SetJobProgress(ctx context.Context, id model.JobID, progress float64, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, progress_message = ? WHERE id = ?
	`, model.ClampProgress(progress), message, id.String())
	if err != nil {
		return &model.StoreError{Op: "set_job_progress", Cause: err}
	}
	return nil
}

// CompleteJob marks a job completed with an opaque result payload.
func (s *Store) CompleteJob(ctx context.Context, id model.JobID, result []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, progress = 1, completed_at = ?, result = ? WHERE id = ?
	`, string(model.JobCompleted), nowUTC(), result, id.String())
	if err != nil {
		return &model.StoreError{Op: "complete_job", Cause: err}
	}
	return nil
}

// FailJob marks a job failed with errMsg.
func (s *Store) FailJob(ctx context.Context, id model.JobID, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, completed_at = ?, error_message = ? WHERE id = ?
	`, string(model.JobFailed), nowUTC(), errMsg, id.String())
	if err != nil {
		return &model.StoreError{Op: "fail_job", Cause: err}
	}
	return nil
}

// CancelJob flips a non-terminal job to cancelled; a no-op on terminal jobs
// (spec.md §4.10 "cancel(id) is a no-op on terminal jobs").
func (s *Store) CancelJob(ctx context.Context, id model.JobID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ? WHERE id = ? AND status IN ('pending', 'running')
	`, string(model.JobCancelled), id.String())
	if err != nil {
		return &model.StoreError{Op: "cancel_job", Cause: err}
	}
	return nil
}

// LoadJob reads a job's current row — the worker polls this to observe
// cancellation (spec.md §5 "worker polls the job.status column").
func (s *Store) LoadJob(ctx context.Context, id model.JobID) (*model.Job, error) {
	var (
		job          model.Job
		status       string
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		result       []byte
		createdAt    time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, status, progress, progress_message, created_at, started_at, completed_at, result, error_message
		FROM jobs WHERE id = ?
	`, id.String()).Scan(
		new(string), &job.Type, &status, &job.Progress, &job.ProgressMessage,
		&createdAt, &startedAt, &completedAt, &result, &job.ErrorMessage,
	)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Kind: "job", ID: id.String()}
	}
	if err != nil {
		return nil, &model.StoreError{Op: "load_job", Cause: err}
	}
	job.ID = id
	job.Status = model.JobStatus(status)
	job.CreatedAt = createdAt
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if len(result) > 0 {
		job.Result = result
	}
	return &job, nil
}

// RecoverInterruptedJobs marks every {pending, running} job failed with
// RestartInterruptedMessage. Must run before any new job is accepted
// (spec.md §4.10 "Recovery on process start").
func (s *Store) RecoverInterruptedJobs(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, completed_at = ?, error_message = ?
		WHERE status IN ('pending', 'running')
	`, string(model.JobFailed), nowUTC(), model.RestartInterruptedMessage)
	if err != nil {
		return 0, &model.StoreError{Op: "recover_interrupted_jobs", Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &model.StoreError{Op: "recover_interrupted_jobs_rows", Cause: err}
	}
	return int(n), nil
}

// PruneCompletedJobs deletes terminal jobs completed before cutoff (spec.md
// §9 supplemented feature: bounding the otherwise-unbounded job history
// table without weakening §4.10's recovery semantics, since only terminal
// rows older than cutoff are ever removed).
func (s *Store) PruneCompletedJobs(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE status IN ('completed', 'failed', 'cancelled') AND completed_at < ?
	`, cutoff)
	if err != nil {
		return 0, &model.StoreError{Op: "prune_completed_jobs", Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &model.StoreError{Op: "prune_completed_jobs_rows", Cause: err}
	}
	return int(n), nil
}
