package jobmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/RezaEskandarii/tablequeue/app"
	"github.com/RezaEskandarii/tablequeue/custom_errors"
	"github.com/RezaEskandarii/tablequeue/internal/constants"
	"github.com/RezaEskandarii/tablequeue/internal/db"
	"github.com/RezaEskandarii/tablequeue/types"
	"github.com/RezaEskandarii/tablequeue/types/config"
	"github.com/RezaEskandarii/tablequeue/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const statusShutdownTimeout = 5 * time.Second

// Bootstrap builds a ready container from a loaded config. Tests replace it.
type Bootstrap func(ctx context.Context, cfg *config.Config) (*app.Container, error)

type cli struct {
	configPath string
	handler    *config.JobHandler
	bootstrap  Bootstrap
	out        io.Writer
}

// NewCommand returns the operator command tree. Jobs started from it are dispatched to
// handler, so applications build their own binary around it with their handlers registered.
func NewCommand(handler *config.JobHandler) *cobra.Command {
	c := &cli{handler: handler}
	c.bootstrap = func(ctx context.Context, cfg *config.Config) (*app.Container, error) {
		return New(ctx, cfg, app.WithJobHandler(c.handler))
	}
	return c.command()
}

func (c *cli) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "tablequeue",
		Short:         "Manage database-backed job queues",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if c.out == nil {
				c.out = cmd.OutOrStdout()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a TOML config file")

	root.AddCommand(
		c.startCmd(),
		c.stopCmd(),
		c.runCmd(),
		c.listCmd(),
		c.enqueueCmd(),
		c.migrateCmd(),
	)
	return root
}

func (c *cli) loadConfig() (*config.Config, error) {
	if c.configPath != "" {
		return config.LoadFile(c.configPath)
	}
	instance, _ := os.Hostname()
	if instance == "" {
		instance = "tablequeue"
	}
	return config.NewConfig(instance, config.WithPostgresConfig(config.PostgresConfig{
		ConnectionUrl: os.Getenv(config.EnvDatabaseURL),
	}))
}

func (c *cli) withContainer(ctx context.Context, fn func(*app.Container) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	container, err := c.bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()
	return fn(container)
}

// ── start ────────────────────────────────────────────────────────────────────

func (c *cli) startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [name|all]",
		Short: "Run a queue's worker loop until it is stopped",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue := constants.AllQueues
			if len(args) == 1 {
				queue = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return c.withContainer(ctx, func(container *app.Container) error {
				if addr := container.Config.MetricsAddr; addr != "" {
					shutdown := serveStatus(container, addr)
					defer shutdown()
				}
				return Run(ctx, container, queue)
			})
		},
	}
}

func serveStatus(container *app.Container, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(container.MetricsRegistry, promhttp.HandlerOpts{}))
	web.NewRouteHandler(container.JobManager, container.Logger).Register(mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		container.Logger.Info("status server started", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			container.Logger.Error("status server failed", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// ── stop ─────────────────────────────────────────────────────────────────────

func (c *cli) stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name|all>",
		Short: "Ask every running instance of a queue to stop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd.Context(), func(container *app.Container) error {
				stopped, err := container.JobManager.Stop(cmd.Context(), args[0])
				if len(stopped) > 0 {
					fmt.Fprintf(c.out, "Stop requested for: %s\n", strings.Join(stopped, ", "))
				}
				return err
			})
		},
	}
}

// ── run ──────────────────────────────────────────────────────────────────────

func (c *cli) runCmd() *cobra.Command {
	var opts types.RunOptions
	cmd := &cobra.Command{
		Use:   "run <name> <id>",
		Short: "Run a single job by ID outside the worker loop",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[1], err)
			}
			return c.withContainer(cmd.Context(), func(container *app.Container) error {
				out, err := container.JobManager.RunOne(cmd.Context(), args[0], id, opts)
				var processed *custom_errors.AlreadyProcessedError
				if errors.As(err, &processed) && processed.Result != nil {
					fmt.Fprintf(c.out, "Previous result: %s\n", *processed.Result)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Job %d result: %s\n", id, out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Force, "force", false, "run the job even if it was already processed")
	cmd.Flags().BoolVar(&opts.Untouched, "untouched", false, "do not mark the job claimed or store its result")
	return cmd
}

// ── list ─────────────────────────────────────────────────────────────────────

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered queues with their active instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd.Context(), func(container *app.Container) error {
				infos, err := container.JobManager.List(cmd.Context())
				if err != nil {
					return err
				}
				return writeQueueTable(c.out, infos)
			})
		},
	}
}

func writeQueueTable(w io.Writer, infos []types.QueueInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTABLE\tACTIVE WORKERS\tLAST STOPPED")
	for _, info := range infos {
		lastStopped := "never"
		if info.LastStopped != nil {
			lastStopped = info.LastStopped.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", info.Name, info.Table, info.ActiveInstances, lastStopped)
	}
	return tw.Flush()
}

// ── enqueue ──────────────────────────────────────────────────────────────────

type enqueueFlags struct {
	args     string
	priority int
	at       string
	cron     string
}

func (c *cli) enqueueCmd() *cobra.Command {
	var flags enqueueFlags
	cmd := &cobra.Command{
		Use:   "enqueue <name> <callback|Component::callback>",
		Short: "Add a job to a queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0], args[1])
			if err != nil {
				return err
			}
			return c.withContainer(cmd.Context(), func(container *app.Container) error {
				var id int64
				if flags.cron != "" {
					id, err = container.JobManager.EnqueueCron(cmd.Context(), req, flags.cron)
				} else {
					id, err = container.JobManager.Enqueue(cmd.Context(), req)
				}
				if err != nil {
					return err
				}
				if id == 0 {
					fmt.Fprintln(c.out, "Job published to the queue writer")
					return nil
				}
				fmt.Fprintf(c.out, "Enqueued job %d\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flags.args, "args", "", "job arguments as JSON")
	cmd.Flags().IntVar(&flags.priority, "priority", types.DefaultPriority, "lower runs first")
	cmd.Flags().StringVar(&flags.at, "at", "", "earliest run time (RFC3339)")
	cmd.Flags().StringVar(&flags.cron, "cron", "", "schedule at the next activation of a cron expression")
	cmd.MarkFlagsMutuallyExclusive("at", "cron")
	return cmd
}

func (f enqueueFlags) request(queue, callable string) (types.EnqueueRequest, error) {
	req := types.EnqueueRequest{
		Queue:    queue,
		Callable: types.ParseCallable(callable),
		Priority: types.Priority(f.priority),
	}
	if f.args != "" {
		if !json.Valid([]byte(f.args)) {
			return req, fmt.Errorf("--args is not valid JSON: %s", f.args)
		}
		req.Args = json.RawMessage(f.args)
	}
	if f.at != "" {
		at, err := time.Parse(time.RFC3339, f.at)
		if err != nil {
			return req, fmt.Errorf("invalid --at: %w", err)
		}
		req.ScheduledAt = at
	}
	return req, nil
}

// ── migrate ──────────────────────────────────────────────────────────────────

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			container, err := app.NewContainer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			if err := db.Migrate(cmd.Context(), cfg.StorageDriver.SQLDriverName(), cfg.PostgresConfig.ConnectionUrl, container.LockManager, container.Logger); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Migrations applied")
			return nil
		},
	}
}
