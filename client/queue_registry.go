package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/RezaEskandarii/tablequeue/custom_errors"
	"github.com/RezaEskandarii/tablequeue/internal/store"
	"github.com/RezaEskandarii/tablequeue/internal/worker"
	"github.com/RezaEskandarii/tablequeue/types"
)

// TableProvisioner creates the backing table of a queue and returns its quoted name.
type TableProvisioner interface {
	EnsureQueueTable(ctx context.Context, queue string) (string, error)
}

// Queue is one registered queue: the store producers insert into and the worker that drains it.
type Queue struct {
	Name   string
	Table  string
	Jobs   store.JobStore
	Worker *worker.Worker
}

// QueueFactory builds the store and worker of a queue whose table already exists.
type QueueFactory func(name, table string) (*Queue, error)

// QueueRegistry maps queue names to their workers. Registration is idempotent and keeps
// the order in which queues were first registered.
type QueueRegistry struct {
	mu          sync.RWMutex
	provisioner TableProvisioner
	factory     QueueFactory
	queues      map[string]*Queue
	order       []string
}

func NewQueueRegistry(provisioner TableProvisioner, factory QueueFactory) *QueueRegistry {
	return &QueueRegistry{
		provisioner: provisioner,
		factory:     factory,
		queues:      make(map[string]*Queue),
	}
}

// Register provisions the queue's table on first use and returns the registered queue.
// Registering a name again returns the existing entry.
func (r *QueueRegistry) Register(ctx context.Context, name string) (*Queue, error) {
	if !types.ValidQueueName(name) {
		return nil, fmt.Errorf("%w: %q", custom_errors.ErrInvalidQueueName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[name]; ok {
		return q, nil
	}

	table, err := r.provisioner.EnsureQueueTable(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("register queue %q: %w", name, err)
	}
	q, err := r.factory(name, table)
	if err != nil {
		return nil, fmt.Errorf("register queue %q: %w", name, err)
	}

	r.queues[name] = q
	r.order = append(r.order, name)
	return q, nil
}

func (r *QueueRegistry) Get(name string) (*Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[name]
	return q, ok
}

// GetAll returns the registered queues in registration order.
func (r *QueueRegistry) GetAll() []*Queue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Queue, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.queues[name])
	}
	return all
}

func (r *QueueRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
