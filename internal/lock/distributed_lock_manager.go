package lock

import "context"

// ReleaseFunc gives a held lock back.
type ReleaseFunc func() error

type DistributedLockManager interface {
	// Acquire blocks until the lock named key is held or ctx is done.
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}
