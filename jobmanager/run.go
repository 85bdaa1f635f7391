package jobmanager

import (
	"context"
	"fmt"
	"runtime"

	"github.com/RezaEskandarii/tablequeue/app"
	"github.com/RezaEskandarii/tablequeue/internal/constants"
	"github.com/RezaEskandarii/tablequeue/internal/db"
	"github.com/RezaEskandarii/tablequeue/types/config"
	"golang.org/x/sync/errgroup"
)

// New initializes tablequeue from cfg and returns a container whose JobManager is ready.
//
// The function performs the following steps:
//  1. Opens the storage and heartbeat connections selected by cfg.
//  2. Applies the static schema migrations under an advisory lock.
//  3. Registers every queue of cfg.Queues, creating missing queue tables.
//
// The caller owns the container and must Close it.
func New(ctx context.Context, cfg *config.Config, opts ...app.ContainerOption) (*app.Container, error) {
	c, err := app.NewContainer(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("bootstrapping tablequeue", "gomaxprocs", runtime.GOMAXPROCS(0), "queues", cfg.Queues)

	if err := db.Migrate(ctx, cfg.StorageDriver.SQLDriverName(), cfg.PostgresConfig.ConnectionUrl, c.LockManager, c.Logger); err != nil {
		_ = c.Close()
		return nil, err
	}

	for _, name := range cfg.Queues {
		if _, err := c.Queues.Register(ctx, name); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Run starts the named queue, or every registered queue for "all", together with the
// broker sync when the queue writer is enabled. It blocks until the queue loops stop.
func Run(ctx context.Context, c *app.Container, queue string) error {
	syncCtx, cancelSync := context.WithCancel(ctx)
	defer cancelSync()

	var g errgroup.Group
	if c.EnqueueSync != nil {
		g.Go(func() error {
			if err := c.EnqueueSync.Run(syncCtx); err != nil {
				return fmt.Errorf("enqueue sync: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancelSync()
		if queue == constants.AllQueues {
			return c.JobManager.StartAll(ctx)
		}
		return c.JobManager.Start(ctx, queue)
	})
	return g.Wait()
}
