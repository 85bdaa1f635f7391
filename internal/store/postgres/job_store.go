package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/RezaEskandarii/tablequeue/internal/state"
	"github.com/RezaEskandarii/tablequeue/internal/timeprovider"
	"github.com/RezaEskandarii/tablequeue/types"
	"github.com/RezaEskandarii/tablequeue/types/config"
)

var jobColumns = []string{
	"id", "scheduled_at", "component", "callback", "args", "priority",
	"claimed_at", "result", "created_at", "updated_at",
}

type JobStore struct {
	db       *sql.DB
	table    string
	strategy config.ClaimStrategy
	now      func() time.Time
}

type JobStoreOption func(*JobStore)

// WithTimeProvider overrides the clock used for scheduled_at, claimed_at and updated_at.
func WithTimeProvider(p timeprovider.Provider) JobStoreOption {
	return func(s *JobStore) { s.now = p.Now }
}

func NewJobStore(db *sql.DB, table string, strategy config.ClaimStrategy, opts ...JobStoreOption) *JobStore {
	s := &JobStore{
		db:       db,
		table:    table,
		strategy: strategy,
		now:      timeprovider.RealProvider{}.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JobStore) Table() string {
	return s.table
}

func (s *JobStore) Insert(ctx context.Context, req types.EnqueueRequest) (int64, error) {
	now := s.now().UTC()
	values, err := insertValues(req, now)
	if err != nil {
		return -1, err
	}

	query, args, err := psql.Insert(s.table).
		Columns("scheduled_at", "component", "callback", "args", "priority", "created_at").
		Values(values...).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return -1, err
	}

	var jobID int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&jobID); err != nil {
		return -1, unavailable("insert job", err)
	}
	return jobID, nil
}

func (s *JobStore) BulkInsert(ctx context.Context, batch []types.EnqueueRequest) error {
	if len(batch) == 0 {
		return nil
	}
	now := s.now().UTC()

	builder := psql.Insert(s.table).
		Columns("scheduled_at", "component", "callback", "args", "priority", "created_at")
	for _, req := range batch {
		values, err := insertValues(req, now)
		if err != nil {
			return err
		}
		builder = builder.Values(values...)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("bulk insert jobs", err)
	}
	return nil
}

func insertValues(req types.EnqueueRequest, now time.Time) ([]any, error) {
	if req.Callable.Callback == "" {
		return nil, fmt.Errorf("job callback is required")
	}
	payload, err := types.EncodePayload(req.Args)
	if err != nil {
		return nil, err
	}
	scheduledAt := req.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = now
	}
	return []any{scheduledAt.UTC(), req.Callable.ComponentPtr(), req.Callable.Callback, payload, req.PriorityOrDefault(), now}, nil
}

// ClaimNext runs lock, select, update and commit in one transaction. With SkipLocked the row
// lock is the exclusion and concurrent claimers skip to the next candidate; with TableLock the
// whole table is locked for the duration of the claim.
func (s *JobStore) ClaimNext(ctx context.Context) (*types.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin claim", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.strategy == config.TableLock {
		if _, err := tx.ExecContext(ctx, "LOCK TABLE "+s.table+" IN EXCLUSIVE MODE"); err != nil {
			return nil, unavailable("lock queue table", err)
		}
	}

	now := s.now().UTC()
	selectBuilder := psql.Select(jobColumns...).
		From(s.table).
		Where(sq.Eq{"claimed_at": nil}).
		Where(sq.LtOrEq{"scheduled_at": now}).
		OrderBy("priority ASC", "scheduled_at ASC", "id ASC").
		Limit(1)
	if s.strategy != config.TableLock {
		selectBuilder = selectBuilder.Suffix("FOR UPDATE SKIP LOCKED")
	}
	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	job, err := scanJob(tx.QueryRowContext(ctx, query, args...))
	if isNoRows(err) {
		if err := tx.Commit(); err != nil {
			return nil, unavailable("commit claim", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("select next job", err)
	}

	update, updateArgs, err := psql.Update(s.table).
		Set("claimed_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": job.ID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, update, updateArgs...); err != nil {
		return nil, unavailable("claim job", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit claim", err)
	}
	return job, nil
}

func (s *JobStore) FindByID(ctx context.Context, id int64) (*types.Job, error) {
	query, args, err := psql.Select(jobColumns...).
		From(s.table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	job, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(fmt.Sprintf("find job %d", id), err)
	}
	return job, nil
}

func (s *JobStore) RecordResult(ctx context.Context, id int64, result *string) error {
	return s.update(ctx, id, "result", result)
}

func (s *JobStore) MarkClaimed(ctx context.Context, id int64) error {
	return s.update(ctx, id, "claimed_at", s.now().UTC())
}

func (s *JobStore) update(ctx context.Context, id int64, column string, value any) error {
	query, args, err := psql.Update(s.table).
		Set(column, value).
		Set("updated_at", s.now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable(fmt.Sprintf("update %s of job %d", column, id), err)
	}
	return nil
}

func (s *JobStore) CountByStatus(ctx context.Context) (map[state.JobStatus]int, error) {
	query, args, err := psql.Select(
		"CASE WHEN result IS NOT NULL THEN 'completed' WHEN claimed_at IS NOT NULL THEN 'claimed' ELSE 'pending' END AS status",
		"COUNT(*)",
	).From(s.table).GroupBy("status").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("count jobs", err)
	}
	defer rows.Close()

	result := make(map[state.JobStatus]int)
	for rows.Next() {
		var status state.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		result[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("count jobs", err)
	}

	for _, status := range state.AllStatuses {
		if _, ok := result[status]; !ok {
			result[status] = 0
		}
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*types.Job, error) {
	var job types.Job
	if err := row.Scan(
		&job.ID,
		&job.ScheduledAt,
		&job.Component,
		&job.Callback,
		&job.Args,
		&job.Priority,
		&job.ClaimedAt,
		&job.Result,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}
