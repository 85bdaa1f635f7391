package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/RezaEskandarii/tablequeue/internal/message_broaker"
	"github.com/RezaEskandarii/tablequeue/types"
)

const flushTimeout = 30 * time.Second

// EnqueueSync drains enqueue requests published to the broker into the queue tables,
// inserting them in batches.
type EnqueueSync struct {
	queues        *QueueRegistry
	broker        message_broaker.MessageBroker
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
}

func NewEnqueueSync(queues *QueueRegistry, broker message_broaker.MessageBroker, batchSize int, flushInterval time.Duration, logger *slog.Logger) *EnqueueSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnqueueSync{
		queues:        queues,
		broker:        broker,
		batchSize:     max(batchSize, 1),
		flushInterval: flushInterval,
		logger:        logger,
	}
}

// Run consumes until ctx is done or the broker closes the stream. Whatever is buffered at
// that point is flushed before returning.
func (s *EnqueueSync) Run(ctx context.Context) error {
	msgCh, err := s.broker.Consume(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("syncing published jobs into the database", "batch_size", s.batchSize)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	var batch []types.EnqueueRequest
	flush := func() {
		if len(batch) == 0 {
			return
		}
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		s.flush(flushCtx, batch)
		batch = nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil

		case msg, ok := <-msgCh:
			if !ok {
				s.logger.Info("message channel closed")
				flush()
				return nil
			}

			var req types.EnqueueRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				s.logger.Error("failed to unmarshal job", "err", err)
				continue
			}
			batch = append(batch, req)
			if len(batch) >= s.batchSize {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

// flush groups the batch by queue so each table gets one insert.
func (s *EnqueueSync) flush(ctx context.Context, batch []types.EnqueueRequest) {
	byQueue := make(map[string][]types.EnqueueRequest)
	var order []string
	for _, req := range batch {
		if req.Queue == "" {
			req.Queue = types.DefaultQueueName
		}
		if _, seen := byQueue[req.Queue]; !seen {
			order = append(order, req.Queue)
		}
		byQueue[req.Queue] = append(byQueue[req.Queue], req)
	}

	for _, name := range order {
		reqs := byQueue[name]
		q, ok := s.queues.Get(name)
		if !ok {
			s.logger.Error("dropping jobs for unregistered queue", "queue", name, "count", len(reqs))
			continue
		}
		if err := q.Jobs.BulkInsert(ctx, reqs); err != nil {
			s.logger.Error("failed to insert batch jobs", "queue", name, "count", len(reqs), "err", err)
			continue
		}
		s.logger.Debug("inserted jobs in batch", "queue", name, "count", len(reqs))
	}
}
