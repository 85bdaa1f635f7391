package store

import (
	"context"
	"time"

	"github.com/RezaEskandarii/tablequeue/internal/state"
	"github.com/RezaEskandarii/tablequeue/types"
)

// JobStore persists the jobs of one queue.
type JobStore interface {
	// Table returns the quoted identifier of the backing table.
	Table() string

	// Insert adds one job and returns its ID. A zero ScheduledAt means "now".
	Insert(ctx context.Context, req types.EnqueueRequest) (int64, error)

	// BulkInsert adds many jobs in one statement.
	BulkInsert(ctx context.Context, batch []types.EnqueueRequest) error

	// ClaimNext atomically takes the next eligible job and returns it as it was before the
	// claim. It returns nil when nothing is eligible.
	ClaimNext(ctx context.Context) (*types.Job, error)

	// FindByID returns nil when the job does not exist.
	FindByID(ctx context.Context, id int64) (*types.Job, error)

	// RecordResult stores the job's textual result.
	RecordResult(ctx context.Context, id int64, result *string) error

	// MarkClaimed sets claimed_at without going through ClaimNext.
	MarkClaimed(ctx context.Context, id int64) error

	// CountByStatus groups the table's jobs by derived status.
	CountByStatus(ctx context.Context) (map[state.JobStatus]int, error)
}

// StopSignalStore keeps the most recent stop request per queue.
type StopSignalStore interface {
	Stop(ctx context.Context, queue string, at time.Time) error

	// LastStop returns nil when the queue was never stopped.
	LastStop(ctx context.Context, queue string) (*time.Time, error)
}
