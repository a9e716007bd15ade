package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKind names the function a job runs
type JobKind string

const (
	JobKindPurchase JobKind = "purchase"
	JobKindForward  JobKind = "forward"
)

// IsValid checks if the kind is a known JobKind
func (k JobKind) IsValid() bool {
	return k == JobKindPurchase || k == JobKindForward
}

// Job is one asynchronous execution attempt. A retry is never this job run
// again: it is a fresh Job carrying an incremented RetryCount.
type Job struct {
	ID          uuid.UUID
	Key         string // coalescing identity, one in-flight attempt per key
	Kind        JobKind
	OrderID     uuid.UUID
	RetryCount  int
	RunAt       time.Time
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// JobKey builds the coalescing key for an order and stage
func JobKey(orderID uuid.UUID, kind JobKind) string {
	return fmt.Sprintf("%s:%s", orderID, kind)
}

// NewJob creates a job delayed by the given duration
func NewJob(kind JobKind, orderID uuid.UUID, retryCount int, delay time.Duration) *Job {
	return &Job{
		ID:         uuid.New(),
		Key:        JobKey(orderID, kind),
		Kind:       kind,
		OrderID:    orderID,
		RetryCount: retryCount,
		RunAt:      time.Now().Add(delay),
		Status:     JobStatusPending,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}
