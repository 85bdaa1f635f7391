package config

import (
	"time"

	"github.com/RezaEskandarii/tablequeue/types"
)

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultStoreTimeout    = 5 * time.Second
	DefaultStorageDriver   = Postgres
	DefaultHeartbeatDriver = HeartbeatPostgres
	DefaultClaimStrategy   = SkipLocked
	DefaultBatchSize       = 100
	DefaultFlushInterval   = 2 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

var DefaultQueues = []string{types.DefaultQueueName}
