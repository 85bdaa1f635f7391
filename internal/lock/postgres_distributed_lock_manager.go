package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const releaseTimeout = 5 * time.Second

// PostgresDistributedLockManager uses session-level advisory locks. The lock is held on a
// dedicated connection so the unlock runs in the same session as the lock.
type PostgresDistributedLockManager struct {
	db *sql.DB
}

func NewPostgresDistributedLockManager(db *sql.DB) *PostgresDistributedLockManager {
	return &PostgresDistributedLockManager{
		db: db,
	}
}

func (l *PostgresDistributedLockManager) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock(hashtext($1))", key); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}

	return func() error {
		defer conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()

		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", key); err != nil {
			return fmt.Errorf("failed to release lock %q: %w", key, err)
		}
		return nil
	}, nil
}
