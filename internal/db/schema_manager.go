package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/RezaEskandarii/tablequeue/custom_errors"
	"github.com/RezaEskandarii/tablequeue/internal/constants"
	"github.com/RezaEskandarii/tablequeue/internal/lock"
	"github.com/RezaEskandarii/tablequeue/internal/store/postgres"
	"github.com/RezaEskandarii/tablequeue/types"
	"github.com/lib/pq"
)

const queueTableDDL = `CREATE TABLE IF NOT EXISTS %s (
    id           BIGSERIAL PRIMARY KEY,
    scheduled_at TIMESTAMPTZ NOT NULL,
    component    TEXT NULL,
    callback     TEXT NOT NULL,
    args         TEXT NULL,
    priority     INT NOT NULL DEFAULT 10,
    claimed_at   TIMESTAMPTZ NULL,
    result       TEXT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NULL
)`

const queueIndexDDL = `CREATE INDEX IF NOT EXISTS %s ON %s (claimed_at, scheduled_at)`

// SchemaManager provisions the table of each queue.
type SchemaManager struct {
	db     *sql.DB
	locks  lock.DistributedLockManager
	prefix string
	logger *slog.Logger
}

func NewSchemaManager(db *sql.DB, locks lock.DistributedLockManager, prefix string, logger *slog.Logger) *SchemaManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaManager{db: db, locks: locks, prefix: prefix, logger: logger}
}

// TableName is the quoted table that backs queue.
func (m *SchemaManager) TableName(queue string) string {
	return postgres.TableName(m.prefix, queue)
}

// EnsureQueueTable creates the queue's table and claim index when missing and returns the
// table name. Concurrent callers for the same queue are serialized by an advisory lock.
func (m *SchemaManager) EnsureQueueTable(ctx context.Context, queue string) (string, error) {
	if !types.ValidQueueName(queue) {
		return "", fmt.Errorf("%w: %q", custom_errors.ErrInvalidQueueName, queue)
	}
	table := m.TableName(queue)

	release, err := m.locks.Acquire(ctx, constants.QueueTableLock+queue)
	if err != nil {
		return "", fmt.Errorf("%w: %w", custom_errors.ErrPersistenceUnavailable, err)
	}
	defer func() {
		if err := release(); err != nil {
			m.logger.Warn("failed to release queue table lock", "queue", queue, "err", err)
		}
	}()

	if _, err := m.db.ExecContext(ctx, fmt.Sprintf(queueTableDDL, table)); err != nil {
		return "", fmt.Errorf("create table for queue %s: %w: %w", queue, custom_errors.ErrPersistenceUnavailable, err)
	}
	index := pq.QuoteIdentifier(m.prefix + queue + "_claim_idx")
	if _, err := m.db.ExecContext(ctx, fmt.Sprintf(queueIndexDDL, index, table)); err != nil {
		return "", fmt.Errorf("create index for queue %s: %w: %w", queue, custom_errors.ErrPersistenceUnavailable, err)
	}

	m.logger.Debug("queue table ready", "queue", queue, "table", table)
	return table, nil
}
