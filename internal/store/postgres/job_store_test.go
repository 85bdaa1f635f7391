package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/RezaEskandarii/tablequeue/custom_errors"
	"github.com/RezaEskandarii/tablequeue/internal/state"
	"github.com/RezaEskandarii/tablequeue/internal/timeprovider"
	"github.com/RezaEskandarii/tablequeue/types"
	"github.com/RezaEskandarii/tablequeue/types/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	table    = TableName("", "job_queue")
)

const selectNext = `SELECT id, scheduled_at, component, callback, args, priority, claimed_at, result, created_at, updated_at ` +
	`FROM tablequeue."job_queue" WHERE claimed_at IS NULL AND scheduled_at <= $1 ` +
	`ORDER BY priority ASC, scheduled_at ASC, id ASC LIMIT 1`

func newTestStore(t *testing.T, strategy config.ClaimStrategy) (*JobStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewJobStore(db, table, strategy, WithTimeProvider(timeprovider.FixedProvider{T: fixedNow})), mock
}

func jobRows() *sqlmock.Rows {
	return sqlmock.NewRows(jobColumns)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, `tablequeue."job_queue"`, TableName("", "job_queue"))
	assert.Equal(t, `tablequeue."app_emails"`, TableName("app_", "emails"))
}

func TestJobStore_Insert(t *testing.T) {
	store, mock := newTestStore(t, config.SkipLocked)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tablequeue."job_queue" (scheduled_at,component,callback,args,priority,created_at) VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`)).
		WithArgs(fixedNow, nil, "send_report", `["weekly",3]`, types.DefaultPriority, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	id, err := store.Insert(context.Background(), types.EnqueueRequest{
		Callable: types.Func("send_report"),
		Args:     []any{"weekly", 3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_Insert_KeepsScheduleAndPriority(t *testing.T) {
	store, mock := newTestStore(t, config.SkipLocked)
	at := fixedNow.Add(time.Hour)

	mock.ExpectQuery("INSERT INTO").
		WithArgs(at, "Mailer", "send", nil, 1, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := store.Insert(context.Background(), types.EnqueueRequest{
		Callable:    types.Method("Mailer", "send"),
		ScheduledAt: at,
		Priority:    types.Priority(1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_Insert_KeepsZeroPriority(t *testing.T) {
	store, mock := newTestStore(t, config.SkipLocked)

	mock.ExpectQuery("INSERT INTO").
		WithArgs(fixedNow, nil, "page_oncall", nil, 0, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))

	id, err := store.Insert(context.Background(), types.EnqueueRequest{
		Callable: types.Func("page_oncall"),
		Priority: types.Priority(0),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_Insert_Errors(t *testing.T) {
	store, mock := newTestStore(t, config.SkipLocked)

	_, err := store.Insert(context.Background(), types.EnqueueRequest{})
	assert.Error(t, err, "callback is required")

	_, err = store.Insert(context.Background(), types.EnqueueRequest{Callable: types.Func("x"), Args: make(chan int)})
	assert.Error(t, err)

	mock.ExpectQuery("INSERT INTO").WillReturnError(sql.ErrConnDone)
	_, err = store.Insert(context.Background(), types.EnqueueRequest{Callable: types.Func("x")})
	assert.ErrorIs(t, err, custom_errors.ErrPersistenceUnavailable)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestJobStore_BulkInsert(t *testing.T) {
	store, mock := newTestStore(t, config.SkipLocked)

	require.NoError(t, store.BulkInsert(context.Background(), nil))

	mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1,$2,$3,$4,$5,$6),($7,$8,$9,$10,$11,$12)`)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.BulkInsert(context.Background(), []types.EnqueueRequest{
		{Callable: types.Func("a"), Args: "x"},
		{Callable: types.Method("B", "b"), Priority: types.Priority(3)},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_ClaimNext_SkipLocked(t *testing.T) {
	store, mock := newTestStore(t, config.SkipLocked)
	scheduled := fixedNow.Add(-time.Minute)
	args := `["a"]`

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectNext + " FOR UPDATE SKIP LOCKED")).
		WithArgs(fixedNow).
		WillReturnRows(jobRows().AddRow(int64(5), scheduled, nil, "cleanup", args, 10, nil, nil, scheduled, nil))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE tablequeue."job_queue" SET claimed_at = $1, updated_at = $2 WHERE id = $3`)).
		WithArgs(fixedNow, fixedNow, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job, err := store.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, int64(5), job.ID)
	assert.Equal(t, "cleanup", job.Callback)
	assert.Nil(t, job.Component)
	assert.Equal(t, args, *job.Args)
	assert.Nil(t, job.ClaimedAt, "the returned job is the snapshot taken before the claim")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_ClaimNext_TableLock(t *testing.T) {
	store, mock := newTestStore(t, config.TableLock)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`LOCK TABLE tablequeue."job_queue" IN EXCLUSIVE MODE`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectNext) + "$").
		WithArgs(fixedNow).
		WillReturnRows(jobRows().AddRow(int64(9), fixedNow, "Mailer", "send", nil, 1, nil, nil, fixedNow, nil))
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job, err := store.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "Mailer", *job.Component)
	assert.Nil(t, job.Args)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_ClaimNext_Empty(t *testing.T) {
	store, mock := newTestStore(t, config.SkipLocked)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(jobRows())
	mock.ExpectCommit()

	job, err := store.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_ClaimNext_StoreFailures(t *testing.T) {
	t.Run("begin fails", func(t *testing.T) {
		store, mock := newTestStore(t, config.SkipLocked)
		mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

		job, err := store.ClaimNext(context.Background())
		assert.Nil(t, job)
		assert.ErrorIs(t, err, custom_errors.ErrPersistenceUnavailable)
	})

	t.Run("update fails rolls back", func(t *testing.T) {
		store, mock := newTestStore(t, config.SkipLocked)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT").
			WillReturnRows(jobRows().AddRow(int64(1), fixedNow, nil, "x", nil, 10, nil, nil, fixedNow, nil))
		mock.ExpectExec("UPDATE").WillReturnError(sql.ErrTxDone)
		mock.ExpectRollback()

		job, err := store.ClaimNext(context.Background())
		assert.Nil(t, job)
		assert.ErrorIs(t, err, custom_errors.ErrPersistenceUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("table lock fails", func(t *testing.T) {
		store, mock := newTestStore(t, config.TableLock)
		mock.ExpectBegin()
		mock.ExpectExec("LOCK TABLE").WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		_, err := store.ClaimNext(context.Background())
		assert.ErrorIs(t, err, custom_errors.ErrPersistenceUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJobStore_FindByID(t *testing.T) {
	store, mock := newTestStore(t, config.SkipLocked)
	result := "done"

	mock.ExpectQuery(regexp.QuoteMeta(`FROM tablequeue."job_queue" WHERE id = $1`)).
		WithArgs(int64(3)).
		WillReturnRows(jobRows().AddRow(int64(3), fixedNow, nil, "x", nil, 10, fixedNow, result, fixedNow, fixedNow))
	mock.ExpectQuery("SELECT").
		WithArgs(int64(4)).
		WillReturnRows(jobRows())

	job, err := store.FindByID(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, state.StatusCompleted, state.StatusOf(job))
	assert.Equal(t, result, *job.Result)

	job, err = store.FindByID(context.Background(), 4)
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_RecordResult(t *testing.T) {
	store, mock := newTestStore(t, config.SkipLocked)
	result := "sent"

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE tablequeue."job_queue" SET result = $1, updated_at = $2 WHERE id = $3`)).
		WithArgs(result, fixedNow, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.RecordResult(context.Background(), 3, &result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_MarkClaimed(t *testing.T) {
	store, mock := newTestStore(t, config.SkipLocked)

	mock.ExpectExec(regexp.QuoteMeta(`SET claimed_at = $1, updated_at = $2 WHERE id = $3`)).
		WithArgs(fixedNow, fixedNow, int64(8)).
		WillReturnError(sql.ErrConnDone)

	err := store.MarkClaimed(context.Background(), 8)
	assert.ErrorIs(t, err, custom_errors.ErrPersistenceUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_CountByStatus(t *testing.T) {
	store, mock := newTestStore(t, config.SkipLocked)

	mock.ExpectQuery("SELECT CASE").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 4).
			AddRow("completed", 2))

	counts, err := store.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[state.JobStatus]int{
		state.StatusPending:   4,
		state.StatusClaimed:   0,
		state.StatusCompleted: 2,
	}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
