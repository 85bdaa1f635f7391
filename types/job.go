package types

import (
	"time"
)

// DefaultPriority is used when a job is enqueued without an explicit priority.
const DefaultPriority = 10

// Job is one row of a queue table.
type Job struct {
	ID          int64
	ScheduledAt time.Time
	Component   *string
	Callback    string
	Args        *string
	Priority    int
	ClaimedAt   *time.Time
	Result      *string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// IsClaimed reports whether a worker (or an operator) has already taken the job.
func (j *Job) IsClaimed() bool {
	return j.ClaimedAt != nil
}

// IsEligible reports whether the job may be claimed at now.
func (j *Job) IsEligible(now time.Time) bool {
	return j.ClaimedAt == nil && !j.ScheduledAt.After(now)
}

// Callable returns the reference the job was enqueued with.
func (j *Job) Callable() CallableRef {
	ref := CallableRef{Callback: j.Callback}
	if j.Component != nil {
		ref.Component = *j.Component
	}
	return ref
}

// Before reports whether j is ahead of other in claim order.
func (j *Job) Before(other *Job) bool {
	if j.Priority != other.Priority {
		return j.Priority < other.Priority
	}
	if !j.ScheduledAt.Equal(other.ScheduledAt) {
		return j.ScheduledAt.Before(other.ScheduledAt)
	}
	return j.ID < other.ID
}

// JobResult is what the worker persisted (or would have persisted) after running a job.
type JobResult struct {
	JobID  int64
	Result *string
	Err    error
	RanAt  time.Time
}

// Text returns the persisted result as plain text.
func (r JobResult) Text() string {
	if r.Result == nil {
		return ""
	}
	return *r.Result
}
