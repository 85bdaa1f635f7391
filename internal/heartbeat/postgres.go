package heartbeat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/RezaEskandarii/tablequeue/custom_errors"
	"github.com/RezaEskandarii/tablequeue/internal/constants"
	"github.com/RezaEskandarii/tablequeue/internal/timeprovider"
	"github.com/RezaEskandarii/tablequeue/types"
)

var (
	psql            = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	heartbeatsTable = constants.SchemaName + ".heartbeats"
)

// PostgresRegistry keeps heartbeats in the tablequeue.heartbeats table. Expired rows are
// ignored by reads and removed by List.
type PostgresRegistry struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresRegistry(db *sql.DB, clock timeprovider.Provider) *PostgresRegistry {
	if clock == nil {
		clock = timeprovider.RealProvider{}
	}
	return &PostgresRegistry{db: db, now: clock.Now}
}

func (r *PostgresRegistry) Put(ctx context.Context, key string, value types.Heartbeat, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	query, args, err := psql.Insert(heartbeatsTable).
		Columns("key", "value", "expires_at").
		Values(key, string(data), r.now().UTC().Add(ttl)).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put heartbeat %s: %w: %w", key, custom_errors.ErrPersistenceUnavailable, err)
	}
	return nil
}

func (r *PostgresRegistry) Get(ctx context.Context, key string) (*types.Heartbeat, error) {
	query, args, err := psql.Select("value").
		From(heartbeatsTable).
		Where(sq.Eq{"key": key}).
		Where(sq.Gt{"expires_at": r.now().UTC()}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var data []byte
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get heartbeat %s: %w: %w", key, custom_errors.ErrPersistenceUnavailable, err)
	}
	value, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode heartbeat %s: %w", key, err)
	}
	return &value, nil
}

func (r *PostgresRegistry) Delete(ctx context.Context, key string) error {
	query, args, err := psql.Delete(heartbeatsTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete heartbeat %s: %w: %w", key, custom_errors.ErrPersistenceUnavailable, err)
	}
	return nil
}

// List matches on left(key, n) rather than LIKE because "_" is a LIKE wildcard and appears
// in queue names.
func (r *PostgresRegistry) List(ctx context.Context, prefix string) ([]Entry, error) {
	now := r.now().UTC()

	purge, purgeArgs, err := psql.Delete(heartbeatsTable).Where(sq.LtOrEq{"expires_at": now}).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, purge, purgeArgs...); err != nil {
		return nil, fmt.Errorf("purge heartbeats: %w: %w", custom_errors.ErrPersistenceUnavailable, err)
	}

	query, args, err := psql.Select("key", "value").
		From(heartbeatsTable).
		Where(sq.Expr("left(key, length(?)) = ?", prefix, prefix)).
		Where(sq.Gt{"expires_at": now}).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list heartbeats: %w: %w", custom_errors.ErrPersistenceUnavailable, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var key string
		var data []byte
		if err := rows.Scan(&key, &data); err != nil {
			return nil, err
		}
		value, err := decode(data)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries, rows.Err()
}
