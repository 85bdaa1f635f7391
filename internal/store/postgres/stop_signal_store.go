package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// StopSignalStore keeps one stop marker row per queue.
type StopSignalStore struct {
	db *sql.DB
}

func NewStopSignalStore(db *sql.DB) *StopSignalStore {
	return &StopSignalStore{db: db}
}

func (s *StopSignalStore) Stop(ctx context.Context, queue string, at time.Time) error {
	query, args, err := psql.Insert(stopMarkersTable).
		Columns("queue_name", "stopped_at").
		Values(queue, at.UTC()).
		Suffix("ON CONFLICT (queue_name) DO UPDATE SET stopped_at = EXCLUDED.stopped_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable(fmt.Sprintf("stop queue %s", queue), err)
	}
	return nil
}

func (s *StopSignalStore) LastStop(ctx context.Context, queue string) (*time.Time, error) {
	query, args, err := psql.Select("stopped_at").
		From(stopMarkersTable).
		Where(sq.Eq{"queue_name": queue}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var stoppedAt time.Time
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&stoppedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(fmt.Sprintf("read stop marker of %s", queue), err)
	}
	return &stoppedAt, nil
}
