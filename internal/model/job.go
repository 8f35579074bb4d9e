package model

import "time"

// JobType is the kind of long-running task a Job tracks (spec.md §3 Job).
type JobType string

const (
	JobTypeSync           JobType = "sync"
	JobTypeAnalysis       JobType = "analysis"
	JobTypeBatchOperation JobType = "batch_operation"
)

// JobStatus is a Job's lifecycle state (spec.md §3 Job).
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether s is a terminal state (no further transitions).
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// InFlight reports whether s counts toward the at-most-one-of-type
// concurrency limit (spec.md §3 Job, §4.10).
func (s JobStatus) InFlight() bool {
	return s == JobPending || s == JobRunning
}

// RestartInterruptedMessage is the fixed message used when marking
// in-flight jobs failed on process start (spec.md §4.10).
const RestartInterruptedMessage = "Job interrupted by application restart"

// Job is the state of a long-running task (spec.md §3 Job).
type Job struct {
	ID              JobID
	Type            JobType
	Status          JobStatus
	Progress        float64 // clamped to [0,1] on write
	ProgressMessage string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Result          []byte // opaque result payload (JSON), nil if none
	ErrorMessage    string
}

// ClampProgress clamps p to [0,1], per spec.md §3's "progress clamped to
// [0,1] on write" invariant.
func ClampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
