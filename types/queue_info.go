package types

import "time"

// Heartbeat is the liveness record a running worker instance publishes.
type Heartbeat struct {
	StartTime     time.Time `json:"start_time"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	RunID         string    `json:"unique_identifier"`
}

// QueueInfo is one row of the operator "list" output.
type QueueInfo struct {
	Name            string     `json:"name"`
	Table           string     `json:"table"`
	ActiveInstances int        `json:"active_workers"`
	LastStopped     *time.Time `json:"last_stopped,omitempty"`
}

// RunOptions controls a manual single-job run.
type RunOptions struct {
	// Force re-runs a job that has already been claimed.
	Force bool
	// Untouched neither marks the job claimed nor records its result.
	Untouched bool
}
