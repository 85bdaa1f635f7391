package app

import (
	"database/sql"

	"github.com/RezaEskandarii/tablequeue/internal/message_broaker"
	"github.com/RezaEskandarii/tablequeue/types/config"
	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// ContainerOption configures Container creation. Used for testing and customization.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	// Optional: inject connections instead of creating them from config
	db      *sql.DB
	redis   *redis.Client
	badger  *badger.DB
	broker  message_broaker.MessageBroker
	handler *config.JobHandler
	metrics *prometheus.Registry
}

// WithDB injects a custom database connection. Useful for testing.
func WithDB(db *sql.DB) ContainerOption {
	return func(c *containerConfig) {
		c.db = db
	}
}

// WithRedis injects a custom Redis client. Useful for testing.
func WithRedis(redis *redis.Client) ContainerOption {
	return func(c *containerConfig) {
		c.redis = redis
	}
}

// WithBadger injects an open Badger database for the badger heartbeat driver.
func WithBadger(db *badger.DB) ContainerOption {
	return func(c *containerConfig) {
		c.badger = db
	}
}

// WithMessageBroker replaces the RabbitMQ broker built from config.
func WithMessageBroker(broker message_broaker.MessageBroker) ContainerOption {
	return func(c *containerConfig) {
		c.broker = broker
	}
}

// WithJobHandler supplies the handler registry jobs are dispatched to.
func WithJobHandler(handler *config.JobHandler) ContainerOption {
	return func(c *containerConfig) {
		c.handler = handler
	}
}

// WithMetricsRegistry registers the worker metrics on reg instead of a fresh registry.
func WithMetricsRegistry(reg *prometheus.Registry) ContainerOption {
	return func(c *containerConfig) {
		c.metrics = reg
	}
}
