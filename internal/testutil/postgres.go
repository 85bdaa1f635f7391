// Package testutil starts a Postgres testcontainer with the tablequeue schema applied.
// Use NewTestDB(t) in integration tests that need a real database.
package testutil

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/RezaEskandarii/tablequeue/internal/db"
	"github.com/RezaEskandarii/tablequeue/internal/lock"
	_ "github.com/jackc/pgx/v5/stdlib"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

const driverName = "pgx"

// TestDB is a migrated database plus the pieces needed to provision queue tables.
type TestDB struct {
	DB     *sql.DB
	URL    string
	Locks  lock.DistributedLockManager
	Schema *db.SchemaManager
}

// NewTestDB starts a Postgres container, applies the migrations and returns a pool to it.
// The container and pool are cleaned up via t.Cleanup.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	pgCtr, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("tablequeue_test"),
		tcpostgres.WithUsername("tablequeue"),
		tcpostgres.WithPassword("testpassword"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgCtr.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := pgCtr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pool, err := sql.Open(driverName, connStr)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locks := lock.NewPostgresDistributedLockManager(pool)
	if err := db.Migrate(ctx, driverName, connStr, locks, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return &TestDB{
		DB:     pool,
		URL:    connStr,
		Locks:  locks,
		Schema: db.NewSchemaManager(pool, locks, "", logger),
	}
}

// QueueTable provisions the table of queue and returns its quoted name.
func (tdb *TestDB) QueueTable(t *testing.T, queue string) string {
	t.Helper()
	table, err := tdb.Schema.EnsureQueueTable(context.Background(), queue)
	if err != nil {
		t.Fatalf("ensure queue table %q: %v", queue, err)
	}
	return table
}
