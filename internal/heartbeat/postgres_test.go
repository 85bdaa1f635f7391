package heartbeat

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/RezaEskandarii/tablequeue/custom_errors"
	"github.com/RezaEskandarii/tablequeue/internal/timeprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 1, 10, 5, 0, 0, time.UTC)

func newPostgresRegistry(t *testing.T) (*PostgresRegistry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRegistry(db, timeprovider.FixedProvider{T: now}), mock
}

func TestPostgresRegistry_Put(t *testing.T) {
	registry, mock := newPostgresRegistry(t)
	data, err := encode(sampleHeartbeat("r1"))
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tablequeue.heartbeats (key,value,expires_at) VALUES ($1,$2,$3) ON CONFLICT (key) DO UPDATE`)).
		WithArgs("job_queue-q-r1", string(data), now.Add(time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, registry.Put(context.Background(), "job_queue-q-r1", sampleHeartbeat("r1"), time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistry_Get(t *testing.T) {
	registry, mock := newPostgresRegistry(t)
	data, err := encode(sampleHeartbeat("r1"))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM tablequeue.heartbeats WHERE key = $1 AND expires_at > $2`)).
		WithArgs("k", now).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(data))
	mock.ExpectQuery("SELECT value").
		WithArgs("missing", now).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	value, err := registry.Get(context.Background(), "k")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "r1", value.RunID)

	value, err = registry.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistry_ListPurgesAndMatchesLiteralPrefix(t *testing.T) {
	registry, mock := newPostgresRegistry(t)
	data, err := encode(sampleHeartbeat("r1"))
	require.NoError(t, err)
	prefix := Prefix("job_queue")

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM tablequeue.heartbeats WHERE expires_at <= $1`)).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT key, value FROM tablequeue.heartbeats WHERE left(key, length($1)) = $2 AND expires_at > $3 ORDER BY key`)).
		WithArgs(prefix, prefix, now).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow(prefix+"r1", data).
			AddRow(prefix+"bad", []byte("not json")))

	entries, err := registry.List(context.Background(), prefix)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, prefix+"r1", entries[0].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistry_DeleteUnavailable(t *testing.T) {
	registry, mock := newPostgresRegistry(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM tablequeue.heartbeats WHERE key = $1`)).
		WithArgs("k").
		WillReturnError(sql.ErrConnDone)

	err := registry.Delete(context.Background(), "k")
	assert.ErrorIs(t, err, custom_errors.ErrPersistenceUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
