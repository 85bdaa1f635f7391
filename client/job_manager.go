package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RezaEskandarii/tablequeue/custom_errors"
	"github.com/RezaEskandarii/tablequeue/internal/constants"
	"github.com/RezaEskandarii/tablequeue/internal/message_broaker"
	"github.com/RezaEskandarii/tablequeue/internal/parser"
	"github.com/RezaEskandarii/tablequeue/internal/state"
	"github.com/RezaEskandarii/tablequeue/internal/timeprovider"
	"github.com/RezaEskandarii/tablequeue/types"
	"golang.org/x/sync/errgroup"
)

// JobManager is the producer and operator surface over the registered queues.
type JobManager struct {
	Queues           *QueueRegistry
	MBroker          message_broaker.MessageBroker
	writeJobsToQueue bool
	now              func() time.Time
	logger           *slog.Logger
}

type JobManagerOption func(*JobManager)

func WithLogger(logger *slog.Logger) JobManagerOption {
	return func(jm *JobManager) {
		jm.logger = logger
	}
}

func WithTimeProvider(provider timeprovider.Provider) JobManagerOption {
	return func(jm *JobManager) {
		jm.now = provider.Now
	}
}

// NewJobManager wires the manager. When writeJobsToQueue is set, Enqueue publishes to
// messageBroker instead of inserting directly.
func NewJobManager(queues *QueueRegistry, messageBroker message_broaker.MessageBroker, writeJobsToQueue bool, opts ...JobManagerOption) *JobManager {
	jm := &JobManager{
		Queues:           queues,
		MBroker:          messageBroker,
		writeJobsToQueue: writeJobsToQueue && messageBroker != nil,
		now:              time.Now,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(jm)
	}
	return jm
}

func (jm *JobManager) queue(name string) (*Queue, error) {
	q, ok := jm.Queues.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", custom_errors.ErrQueueNotFound, name)
	}
	return q, nil
}

// Start runs the named queue's poll loop and blocks until it stops.
func (jm *JobManager) Start(ctx context.Context, name string) error {
	q, err := jm.queue(name)
	if err != nil {
		return err
	}
	return q.Worker.Start(ctx)
}

// StartAll runs every registered queue in its own goroutine and waits for all of them.
// Each loop stops on its own marker.
func (jm *JobManager) StartAll(ctx context.Context) error {
	queues := jm.Queues.GetAll()
	if len(queues) == 0 {
		return custom_errors.ErrNoQueues
	}

	var g errgroup.Group
	for _, q := range queues {
		g.Go(func() error {
			if err := q.Worker.Start(ctx); err != nil {
				return fmt.Errorf("queue %q: %w", q.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Stop writes a stop marker for one queue, or for every registered queue when nameOrAll is
// "all". It returns the names of the queues that were signalled.
func (jm *JobManager) Stop(ctx context.Context, nameOrAll string) ([]string, error) {
	var queues []*Queue
	if nameOrAll == constants.AllQueues {
		queues = jm.Queues.GetAll()
		if len(queues) == 0 {
			return nil, custom_errors.ErrNoQueues
		}
	} else {
		q, err := jm.queue(nameOrAll)
		if err != nil {
			return nil, err
		}
		queues = []*Queue{q}
	}

	stopped := make([]string, 0, len(queues))
	var errs []error
	for _, q := range queues {
		if err := q.Worker.RequestStop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %q: %w", q.Name, err))
			continue
		}
		jm.logger.Info("stop requested", "queue", q.Name)
		stopped = append(stopped, q.Name)
	}
	return stopped, errors.Join(errs...)
}

// RunOne executes a single job of the named queue by ID and returns its textual result.
func (jm *JobManager) RunOne(ctx context.Context, name string, jobID int64, opts types.RunOptions) (string, error) {
	q, err := jm.queue(name)
	if err != nil {
		return "", err
	}
	return q.Worker.RunOne(ctx, jobID, opts)
}

// List reports every registered queue with its live instance count and last stop.
func (jm *JobManager) List(ctx context.Context) ([]types.QueueInfo, error) {
	queues := jm.Queues.GetAll()
	if len(queues) == 0 {
		return nil, custom_errors.ErrNoQueues
	}

	infos := make([]types.QueueInfo, 0, len(queues))
	for _, q := range queues {
		active, err := q.Worker.ActiveInstances(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", q.Name, err)
		}
		lastStop, err := q.Worker.LastStop(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", q.Name, err)
		}
		infos = append(infos, types.QueueInfo{
			Name:            q.Name,
			Table:           q.Table,
			ActiveInstances: len(active),
			LastStopped:     lastStop,
		})
	}
	return infos, nil
}

// Counts groups the named queue's jobs by lifecycle status.
func (jm *JobManager) Counts(ctx context.Context, name string) (map[state.JobStatus]int, error) {
	q, err := jm.queue(name)
	if err != nil {
		return nil, err
	}
	return q.Jobs.CountByStatus(ctx)
}

// Enqueue either directly stores the job in the queue's table, or publishes it to the
// message broker when the queue writer is enabled. In queue mode, it returns 0 as the job
// ID is unknown at this stage.
func (jm *JobManager) Enqueue(ctx context.Context, req types.EnqueueRequest) (int64, error) {
	if req.Queue == "" {
		req.Queue = types.DefaultQueueName
	}
	if req.Callable.Callback == "" {
		return 0, errors.New("enqueue: callback is required")
	}
	q, err := jm.queue(req.Queue)
	if err != nil {
		return 0, err
	}

	if !jm.writeJobsToQueue {
		return q.Jobs.Insert(ctx, req)
	}

	if req.ScheduledAt.IsZero() {
		req.ScheduledAt = jm.now()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := jm.MBroker.Publish(ctx, payload); err != nil {
		return 0, fmt.Errorf("failed to publish job to broker: %w", err)
	}
	return 0, nil
}

// EnqueueCron schedules the job at the next activation of a standard cron expression.
func (jm *JobManager) EnqueueCron(ctx context.Context, req types.EnqueueRequest, expression string) (int64, error) {
	next, err := parser.CalculateNextRun(expression, jm.now())
	if err != nil {
		return 0, err
	}
	req.ScheduledAt = next
	return jm.Enqueue(ctx, req)
}

// Dispatch enqueues a job using the defaults of its definition. A zero at means now.
func (jm *JobManager) Dispatch(ctx context.Context, def types.JobDefinition, args any, at time.Time) (int64, error) {
	return jm.Enqueue(ctx, types.EnqueueRequest{
		Queue:       def.Queue,
		Callable:    def.Callable,
		Args:        args,
		ScheduledAt: at,
		Priority:    def.Priority,
	})
}
