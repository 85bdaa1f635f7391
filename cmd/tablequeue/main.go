// Command tablequeue operates database-backed job queues.
//
// Subcommands:
//
//	start    run a queue's worker loop (or every configured queue)
//	stop     ask running instances of a queue to stop
//	run      run a single job by ID
//	list     show configured queues and their live instances
//	enqueue  add a job
//	migrate  apply schema migrations and exit
//
// This binary only knows the built-in handlers below. Applications build their own binary
// around jobmanager.NewCommand with their handlers registered.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/RezaEskandarii/tablequeue/jobmanager"
	"github.com/RezaEskandarii/tablequeue/types/config"
)

func main() {
	handler := config.NewJobHandler()
	if err := registerBuiltins(handler); err != nil {
		slog.Error("register handlers", "err", err)
		os.Exit(1)
	}

	if err := jobmanager.NewCommand(handler).Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func registerBuiltins(handler *config.JobHandler) error {
	if err := handler.RegisterFunc("echo", func(ctx context.Context, args ...any) (any, error) {
		return args, nil
	}); err != nil {
		return err
	}
	return handler.RegisterFunc("sleep", func(ctx context.Context, args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("sleep expects one argument, got %d", len(args))
		}
		seconds, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("sleep expects a number of seconds, got %T", args[0])
		}
		select {
		case <-time.After(time.Duration(seconds * float64(time.Second))):
			return fmt.Sprintf("slept %gs", seconds), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}
