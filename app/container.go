package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/RezaEskandarii/tablequeue/client"
	"github.com/RezaEskandarii/tablequeue/internal/db"
	"github.com/RezaEskandarii/tablequeue/internal/heartbeat"
	"github.com/RezaEskandarii/tablequeue/internal/lock"
	"github.com/RezaEskandarii/tablequeue/internal/message_broaker"
	"github.com/RezaEskandarii/tablequeue/internal/metrics"
	"github.com/RezaEskandarii/tablequeue/internal/store"
	"github.com/RezaEskandarii/tablequeue/internal/store/postgres"
	"github.com/RezaEskandarii/tablequeue/internal/timeprovider"
	"github.com/RezaEskandarii/tablequeue/internal/worker"
	"github.com/RezaEskandarii/tablequeue/types/config"
	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies. It is the single source of truth
// for dependency injection and ensures connections and services are created once.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Storage connections (created once, shared by all stores)
	DB     *sql.DB
	Redis  *redis.Client
	Badger *badger.DB

	// Infrastructure
	LockManager     lock.DistributedLockManager
	Schema          *db.SchemaManager
	StopSignals     store.StopSignalStore
	Heartbeats      heartbeat.Registry
	MessageBroker   message_broaker.MessageBroker
	MetricsRegistry *prometheus.Registry
	Metrics         *metrics.Metrics

	// Job handlers and managers
	JobHandler  *config.JobHandler
	Queues      *client.QueueRegistry
	JobManager  *client.JobManager
	EnqueueSync *client.EnqueueSync

	clock timeprovider.Provider
	owned []func() error
}

// NewContainer creates and wires all dependencies. Single entry point for DI.
// Call this once per application lifecycle and Close it on shutdown.
// Pass optional WithDB, WithRedis, WithBadger to inject connections for testing.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	opt := &containerConfig{}
	for _, o := range opts {
		o(opt)
	}

	c := &Container{
		Config:          cfg,
		Logger:          cfg.NewLogger(os.Stderr),
		JobHandler:      opt.handler,
		MetricsRegistry: opt.metrics,
		clock:           timeprovider.RealProvider{},
	}
	if c.JobHandler == nil {
		c.JobHandler = config.NewJobHandler()
	}

	if err := c.initStorageConnections(opt); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if err := c.initHeartbeats(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("init heartbeats: %w", err)
	}
	if err := c.initMetrics(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	c.LockManager = lock.NewPostgresDistributedLockManager(c.DB)
	c.Schema = db.NewSchemaManager(c.DB, c.LockManager, cfg.TablePrefix, c.Logger)
	c.StopSignals = postgres.NewStopSignalStore(c.DB)
	c.Queues = client.NewQueueRegistry(c.Schema, c.newQueue)

	c.MessageBroker = opt.broker
	if cfg.UseQueueWriter && c.MessageBroker == nil {
		broker, err := message_broaker.NewRabbitMQ(*cfg.RabbitMQConfig)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("init rabbitmq: %w", err)
		}
		c.MessageBroker = broker
		c.owned = append(c.owned, broker.Close)
	}
	if c.MessageBroker != nil {
		c.EnqueueSync = client.NewEnqueueSync(c.Queues, c.MessageBroker, cfg.BatchSize, cfg.FlushInterval, c.Logger)
	}

	c.JobManager = client.NewJobManager(
		c.Queues,
		c.MessageBroker,
		cfg.UseQueueWriter,
		client.WithLogger(c.Logger),
		client.WithTimeProvider(c.clock),
	)
	return c, nil
}

// initStorageConnections creates database connections based on config.
func (c *Container) initStorageConnections(opt *containerConfig) error {
	if opt.db != nil {
		c.DB = opt.db
	} else {
		switch c.Config.StorageDriver {
		case config.Postgres, config.Pgx:
			db, err := openDB(c.Config)
			if err != nil {
				return err
			}
			c.DB = db
			c.owned = append(c.owned, db.Close)
		default:
			return fmt.Errorf("unsupported storage driver: %v", c.Config.StorageDriver)
		}
	}

	switch c.Config.HeartbeatDriver {
	case config.HeartbeatRedis:
		c.Redis = opt.redis
		if c.Redis == nil {
			c.Redis = newRedisClient(c.Config.RedisConfig)
			c.owned = append(c.owned, c.Redis.Close)
		}
	case config.HeartbeatBadger:
		c.Badger = opt.badger
		if c.Badger == nil {
			bdb, err := heartbeat.OpenBadger(c.Config.BadgerConfig.Path, c.Config.BadgerConfig.InMemory)
			if err != nil {
				return err
			}
			c.Badger = bdb
			c.owned = append(c.owned, bdb.Close)
		}
	}
	return nil
}

func (c *Container) initHeartbeats() error {
	switch c.Config.HeartbeatDriver {
	case config.HeartbeatPostgres:
		c.Heartbeats = heartbeat.NewPostgresRegistry(c.DB, c.clock)
	case config.HeartbeatRedis:
		c.Heartbeats = heartbeat.NewRedisRegistry(c.Redis)
	case config.HeartbeatBadger:
		registry, err := heartbeat.NewBadgerRegistry(c.Badger)
		if err != nil {
			return err
		}
		c.Heartbeats = registry
	default:
		return fmt.Errorf("unsupported heartbeat driver: %v", c.Config.HeartbeatDriver)
	}
	return nil
}

func (c *Container) initMetrics() error {
	if c.MetricsRegistry == nil {
		c.MetricsRegistry = prometheus.NewRegistry()
		c.MetricsRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m, err := metrics.New(c.MetricsRegistry)
	if err != nil {
		return err
	}
	c.Metrics = m
	return nil
}

// newQueue builds the store and worker of a queue whose table exists.
func (c *Container) newQueue(name, table string) (*client.Queue, error) {
	jobs := postgres.NewJobStore(c.DB, table, c.Config.ClaimStrategy, postgres.WithTimeProvider(c.clock))
	w, err := worker.New(name, jobs, c.StopSignals, c.Heartbeats, c.JobHandler, worker.Config{
		PollInterval: c.Config.PollInterval,
		StoreTimeout: c.Config.StoreTimeout,
		Logger:       c.Logger,
		TimeProvider: c.clock,
		Metrics:      c.Metrics,
		Namespace:    c.Config.TablePrefix,
	})
	if err != nil {
		return nil, err
	}
	return &client.Queue{Name: name, Table: table, Jobs: jobs, Worker: w}, nil
}

// Close releases every connection the container opened itself, newest first.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.owned) - 1; i >= 0; i-- {
		if err := c.owned[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.owned = nil
	return errors.Join(errs...)
}
