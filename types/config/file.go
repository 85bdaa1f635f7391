package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvDatabaseURL overrides postgres.connection_url when set.
const EnvDatabaseURL = "TABLEQUEUE_DATABASE_URL"

type fileConfig struct {
	Instance        string   `toml:"instance"`
	Queues          []string `toml:"queues"`
	StorageDriver   string   `toml:"storage_driver"`
	TablePrefix     string   `toml:"table_prefix"`
	ClaimStrategy   string   `toml:"claim_strategy"`
	PollInterval    string   `toml:"poll_interval"`
	StoreTimeout    string   `toml:"store_timeout"`
	HeartbeatDriver string   `toml:"heartbeat_driver"`
	MetricsAddr     string   `toml:"metrics_addr"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`

	Postgres struct {
		ConnectionURL string `toml:"connection_url"`
	} `toml:"postgres"`

	Redis struct {
		Address  string `toml:"address"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`

	Badger struct {
		Path     string `toml:"path"`
		InMemory bool   `toml:"in_memory"`
	} `toml:"badger"`

	QueueWriter struct {
		Enabled       bool   `toml:"enabled"`
		BatchSize     int    `toml:"batch_size"`
		FlushInterval string `toml:"flush_interval"`
	} `toml:"queue_writer"`

	RabbitMQ struct {
		URL         string `toml:"url"`
		Exchange    string `toml:"exchange"`
		Queue       string `toml:"queue"`
		RoutingKey  string `toml:"routing_key"`
		ContentType string `toml:"content_type"`
	} `toml:"rabbitmq"`
}

// LoadFile reads a TOML config file. Extra options are applied after the file's settings.
func LoadFile(path string, extra ...ConfigOption) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data, extra...)
}

// Parse builds a Config from TOML bytes.
func Parse(data []byte, extra ...ConfigOption) (*Config, error) {
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	opts, err := fc.options()
	if err != nil {
		return nil, err
	}
	return NewConfig(fc.Instance, append(opts, extra...)...)
}

func (fc *fileConfig) options() ([]ConfigOption, error) {
	var opts []ConfigOption

	if len(fc.Queues) > 0 {
		opts = append(opts, WithQueues(fc.Queues...))
	}

	storage, err := ParseStorageDriver(fc.StorageDriver)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithStorageDriver(storage))

	strategy, err := ParseClaimStrategy(fc.ClaimStrategy)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithClaimStrategy(strategy), WithTablePrefix(fc.TablePrefix))

	for _, d := range []struct {
		raw string
		opt func(time.Duration) ConfigOption
	}{
		{fc.PollInterval, WithPollInterval},
		{fc.StoreTimeout, WithStoreTimeout},
		{fc.QueueWriter.FlushInterval, WithFlushInterval},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", d.raw, err)
		}
		opts = append(opts, d.opt(parsed))
	}

	url := fc.Postgres.ConnectionURL
	if env := os.Getenv(EnvDatabaseURL); env != "" {
		url = env
	}
	if url != "" {
		opts = append(opts, WithPostgresConfig(PostgresConfig{ConnectionUrl: url}))
	}

	heartbeat, err := ParseHeartbeatDriver(fc.HeartbeatDriver)
	if err != nil {
		return nil, err
	}
	switch heartbeat {
	case HeartbeatRedis:
		opts = append(opts, WithRedisHeartbeats(RedisConfig{
			Address:  fc.Redis.Address,
			Password: fc.Redis.Password,
			DB:       fc.Redis.DB,
		}))
	case HeartbeatBadger:
		opts = append(opts, WithBadgerHeartbeats(BadgerConfig{
			Path:     fc.Badger.Path,
			InMemory: fc.Badger.InMemory,
		}))
	}

	if fc.QueueWriter.Enabled {
		opts = append(opts, WithRabbitMQConfig(RabbitMQConfig{
			URL:         fc.RabbitMQ.URL,
			Exchange:    fc.RabbitMQ.Exchange,
			Queue:       fc.RabbitMQ.Queue,
			RoutingKey:  fc.RabbitMQ.RoutingKey,
			ContentType: fc.RabbitMQ.ContentType,
		}))
	}
	if fc.QueueWriter.BatchSize != 0 {
		opts = append(opts, WithBatchSize(fc.QueueWriter.BatchSize))
	}

	opts = append(opts, WithMetricsAddr(fc.MetricsAddr), WithLogging(fc.Log.Level, fc.Log.Format))
	return opts, nil
}
