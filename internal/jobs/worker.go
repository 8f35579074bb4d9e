package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/arrowgate/docdedupe/internal/metrics"
	"github.com/arrowgate/docdedupe/internal/model"
	"github.com/arrowgate/docdedupe/internal/progress"
)

// defaultPollInterval is how often the worker checks job.status for a
// cancellation request while a job runs (spec.md §5 "polls the job.status
// column every ~2 seconds").
const defaultPollInterval = 2 * time.Second

// RunFunc performs a job's actual work. It must observe ctx cancellation
// promptly and report progress through reporter; its return value becomes
// the job's opaque result payload.
type RunFunc func(ctx context.Context, reporter progress.Reporter) ([]byte, error)

// Worker executes a single job in isolation: its own Store handle (via
// Manager), no shared mutable memory with the launcher beyond the Handle
// it hands back (spec.md §4.10).
type Worker struct {
	manager      *Manager
	pollInterval time.Duration
	recorder     metrics.Recorder
}

// NewWorker builds a Worker over manager.
func NewWorker(manager *Manager) *Worker {
	return &Worker{manager: manager, pollInterval: defaultPollInterval, recorder: metrics.Null}
}

// WithPollInterval overrides defaultPollInterval; exposed for tests that
// cannot wait multiple seconds for a cancellation to be observed.
func (w *Worker) WithPollInterval(d time.Duration) *Worker {
	w.pollInterval = d
	return w
}

// WithRecorder reports launch/completion counts through r instead of
// discarding them.
func (w *Worker) WithRecorder(r metrics.Recorder) *Worker {
	w.recorder = r
	return w
}

// Handle is the single future the launcher awaits for a launched job's
// completion (spec.md §4.10 "observes exit/error through a single
// future/handle; must not leak that handle").
type Handle struct {
	JobID model.JobID
	done  chan struct{}
}

// Wait blocks until the job's goroutine has exited and its terminal state
// (if any) has been written.
func (h *Handle) Wait() { <-h.done }

// Done returns a channel closed when the job's goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Launch creates and starts a job of jobType, then runs run in its own
// goroutine against a context private to this job — independent of ctx,
// and cancelled by the worker's own poll loop observing job.status =
// cancelled. It returns immediately with a Handle; it does not block for
// run to finish.
func (w *Worker) Launch(ctx context.Context, jobType model.JobType, run RunFunc) (*Handle, error) {
	id, err := w.manager.Create(ctx, jobType)
	if err != nil {
		return nil, err
	}
	if err := w.manager.Start(ctx, id); err != nil {
		return nil, err
	}
	w.recorder.IncCounter(metrics.JobsLaunched, string(jobType))

	runCtx, cancel := context.WithCancel(context.Background())
	handle := &Handle{JobID: id, done: make(chan struct{})}

	go w.watchCancellation(id, cancel, handle.done)
	go w.execute(id, jobType, runCtx, cancel, run, handle.done)

	return handle, nil
}

// watchCancellation polls the job row until either done closes (the job
// finished on its own) or it observes status = cancelled, in which case it
// cancels runCancel so the run loop notices on its own next check.
func (w *Worker) watchCancellation(id model.JobID, runCancel context.CancelFunc, done <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			job, err := w.manager.Load(context.Background(), id)
			if err != nil {
				continue
			}
			if job.Status == model.JobCancelled {
				runCancel()
				return
			}
		}
	}
}

// execute runs run to completion (or cancellation or panic) and records
// the job's terminal state, then closes done exactly once.
func (w *Worker) execute(id model.JobID, jobType model.JobType, runCtx context.Context, runCancel context.CancelFunc, run RunFunc, done chan struct{}) {
	defer close(done)
	defer runCancel()
	defer func() {
		if r := recover(); r != nil {
			// Worker crash recovery (spec.md §4.10): the goroutine never
			// reached a terminal write on its own, so mark it here.
			_ = w.manager.Fail(context.Background(), id, fmt.Sprintf("Worker crashed: %v", r))
			w.recorder.IncCounter(metrics.JobsCompleted, string(jobType), "crashed")
		}
	}()

	reporter := progress.ReporterFunc(func(fraction float64, message string) {
		_ = w.manager.Progress(context.Background(), id, fraction, message)
	})

	result, err := run(runCtx, reporter)
	if err != nil {
		if runCtx.Err() != nil {
			// Cancellation already flipped job.status; don't overwrite it
			// with a failed state (spec.md §5 "returns without writing a
			// terminal state").
			w.recorder.IncCounter(metrics.JobsCompleted, string(jobType), "cancelled")
			return
		}
		_ = w.manager.Fail(context.Background(), id, err.Error())
		w.recorder.IncCounter(metrics.JobsCompleted, string(jobType), "failed")
		return
	}
	_ = w.manager.Complete(context.Background(), id, result)
	w.recorder.IncCounter(metrics.JobsCompleted, string(jobType), "succeeded")
}
