package config

import "fmt"

type StorageDriver int

const (
	// Postgres uses the lib/pq database/sql driver.
	Postgres StorageDriver = iota + 1
	// Pgx uses pgx through its database/sql adapter.
	Pgx
)

// String converts the StorageDriver enum to a human-readable string.
func (d StorageDriver) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case Pgx:
		return "pgx"
	}
	return "unknown"
}

// SQLDriverName is the name registered with database/sql.
func (d StorageDriver) SQLDriverName() string {
	if d == Pgx {
		return "pgx"
	}
	return "postgres"
}

func ParseStorageDriver(s string) (StorageDriver, error) {
	switch s {
	case "postgres", "":
		return Postgres, nil
	case "pgx":
		return Pgx, nil
	}
	return 0, fmt.Errorf("unknown storage driver %q", s)
}

type HeartbeatDriver int

const (
	HeartbeatPostgres HeartbeatDriver = iota + 1
	HeartbeatRedis
	HeartbeatBadger
)

func (d HeartbeatDriver) String() string {
	switch d {
	case HeartbeatPostgres:
		return "postgres"
	case HeartbeatRedis:
		return "redis"
	case HeartbeatBadger:
		return "badger"
	}
	return "unknown"
}

func ParseHeartbeatDriver(s string) (HeartbeatDriver, error) {
	switch s {
	case "postgres", "":
		return HeartbeatPostgres, nil
	case "redis":
		return HeartbeatRedis, nil
	case "badger":
		return HeartbeatBadger, nil
	}
	return 0, fmt.Errorf("unknown heartbeat driver %q", s)
}

// ClaimStrategy selects how a worker excludes concurrent claimers.
type ClaimStrategy int

const (
	// SkipLocked row-locks the candidate with FOR UPDATE SKIP LOCKED.
	SkipLocked ClaimStrategy = iota + 1
	// TableLock takes an exclusive lock on the whole queue table for the claim.
	TableLock
)

func (s ClaimStrategy) String() string {
	switch s {
	case SkipLocked:
		return "skip_locked"
	case TableLock:
		return "table_lock"
	}
	return "unknown"
}

func ParseClaimStrategy(s string) (ClaimStrategy, error) {
	switch s {
	case "skip_locked", "":
		return SkipLocked, nil
	case "table_lock":
		return TableLock, nil
	}
	return 0, fmt.Errorf("unknown claim strategy %q", s)
}

type MessageQueueDriver int

const (
	RabbitMQ MessageQueueDriver = iota + 1
)

func (d MessageQueueDriver) String() string {
	switch d {
	case RabbitMQ:
		return "rabbitmq"
	default:
		return "unknown"
	}
}
