package state

import (
	"github.com/RezaEskandarii/tablequeue/types"
)

// JobStatus is derived from a job row; it is never stored.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusClaimed   JobStatus = "claimed"
	StatusCompleted JobStatus = "completed"
)

func (s JobStatus) String() string {
	return string(s)
}

var AllStatuses = []JobStatus{
	StatusPending,
	StatusClaimed,
	StatusCompleted,
}

type Transition struct {
	From JobStatus
	To   JobStatus
}

// ValidTransitions lists the only moves a job may make. completed -> completed is a forced re-run.
var ValidTransitions = []Transition{
	{From: StatusPending, To: StatusClaimed},
	{From: StatusClaimed, To: StatusCompleted},
	{From: StatusCompleted, To: StatusCompleted},
}

func IsValidTransition(from, to JobStatus) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// StatusOf derives the lifecycle status of a job.
func StatusOf(job *types.Job) JobStatus {
	switch {
	case job.Result != nil:
		return StatusCompleted
	case job.ClaimedAt != nil:
		return StatusClaimed
	default:
		return StatusPending
	}
}
