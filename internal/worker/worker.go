package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RezaEskandarii/tablequeue/custom_errors"
	"github.com/RezaEskandarii/tablequeue/internal/heartbeat"
	"github.com/RezaEskandarii/tablequeue/internal/metrics"
	"github.com/RezaEskandarii/tablequeue/internal/state"
	"github.com/RezaEskandarii/tablequeue/internal/store"
	"github.com/RezaEskandarii/tablequeue/internal/timeprovider"
	"github.com/RezaEskandarii/tablequeue/types"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultStoreTimeout = 5 * time.Second
	minHeartbeatTTL     = time.Minute
	warnInterval        = 30 * time.Second
)

// ErrAlreadyRunning is returned by Start when the worker's loop is already running.
var ErrAlreadyRunning = errors.New("worker is already running")

// Dispatcher runs the code a job references. Failures are reported as the job failure types
// of custom_errors.
type Dispatcher interface {
	Invoke(ctx context.Context, component *string, callback string, args ...any) (any, error)
}

// Config controls a worker.
type Config struct {
	PollInterval time.Duration
	StoreTimeout time.Duration
	Logger       *slog.Logger
	TimeProvider timeprovider.Provider
	Metrics      *metrics.Metrics
	// Namespace is the deployment's table prefix. Stop markers and heartbeat keys are scoped by
	// it so deployments sharing a database never see each other's queues.
	Namespace string
}

// Worker polls one queue table, claiming and running one job at a time.
type Worker struct {
	queue      string
	scope      string
	jobs       store.JobStore
	stops      store.StopSignalStore
	heartbeats heartbeat.Registry
	dispatcher Dispatcher

	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	metrics *metrics.Metrics
	machine *state.Machine
	warn    rate.Sometimes

	identity  sync.Mutex
	runID     string
	startedAt time.Time
	running   atomic.Bool
}

// New validates its collaborators and returns a stopped worker.
func New(queue string, jobs store.JobStore, stops store.StopSignalStore, heartbeats heartbeat.Registry, dispatcher Dispatcher, cfg Config) (*Worker, error) {
	if !types.ValidQueueName(queue) {
		return nil, fmt.Errorf("%w: %q", custom_errors.ErrInvalidQueueName, queue)
	}
	if cfg.Namespace != "" && !types.ValidQueueName(cfg.Namespace) {
		return nil, fmt.Errorf("%w: namespace %q", custom_errors.ErrInvalidQueueName, cfg.Namespace)
	}
	if jobs == nil || stops == nil || heartbeats == nil || dispatcher == nil {
		return nil, errors.New("worker requires a job store, a stop signal store, a heartbeat registry and a dispatcher")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.TimeProvider == nil {
		cfg.TimeProvider = timeprovider.RealProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		queue:      queue,
		scope:      cfg.Namespace + queue,
		jobs:       jobs,
		stops:      stops,
		heartbeats: heartbeats,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger.With("queue", queue),
		now:        cfg.TimeProvider.Now,
		metrics:    cfg.Metrics,
		machine:    state.NewMachine(),
		warn:       rate.Sometimes{Interval: warnInterval},
	}, nil
}

func (w *Worker) Queue() string {
	return w.queue
}

func (w *Worker) Table() string {
	return w.jobs.Table()
}

// State is the current phase of the poll loop.
func (w *Worker) State() state.WorkerState {
	return w.machine.Current()
}

// Identity returns the run identifier and start time of this instance. Both are zero until
// the first Start and never change afterwards.
func (w *Worker) Identity() (runID string, startedAt time.Time) {
	w.identity.Lock()
	defer w.identity.Unlock()
	return w.runID, w.startedAt
}

// HeartbeatTTL is both the heartbeat expiry and the age after which an instance counts as gone.
func (w *Worker) HeartbeatTTL() time.Duration {
	return max(2*w.cfg.PollInterval, minHeartbeatTTL)
}

func (w *Worker) ensureIdentity() {
	w.identity.Lock()
	defer w.identity.Unlock()
	if w.runID == "" {
		w.runID = uuid.New().String()
		w.startedAt = w.now()
	}
}

// Start runs the poll loop until a stop marker at or after the instance's start time is
// seen, or ctx is done. A job that is running when ctx is cancelled runs to completion and
// its result is recorded.
func (w *Worker) Start(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer w.running.Store(false)

	w.ensureIdentity()
	w.transition(state.WorkerIdle)
	w.logger.Info("queue worker started", "run_id", w.runID)

	for {
		if ctx.Err() != nil {
			w.shutdown(ctx, "context done")
			return nil
		}

		w.transition(state.WorkerPolling)
		w.publishHeartbeat(ctx)
		if w.shouldStop(ctx) {
			w.shutdown(ctx, "stop requested")
			return nil
		}

		w.transition(state.WorkerClaiming)
		job := w.claim(ctx)
		if job == nil {
			w.transition(state.WorkerIdle)
			if !w.sleep(ctx) {
				w.shutdown(ctx, "context done")
				return nil
			}
			continue
		}

		w.transition(state.WorkerExecuting)
		w.handle(ctx, job)
	}
}

func (w *Worker) transition(next state.WorkerState) {
	if err := w.machine.To(next); err != nil {
		w.logger.Error("unexpected worker state change", "err", err)
	}
}

func (w *Worker) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, w.cfg.StoreTimeout)
}

func (w *Worker) publishHeartbeat(ctx context.Context) {
	ctx, cancel := w.storeContext(ctx)
	defer cancel()

	value := types.Heartbeat{StartTime: w.startedAt, LastHeartbeat: w.now(), RunID: w.runID}
	if err := w.heartbeats.Put(ctx, heartbeat.Key(w.scope, w.runID), value, w.HeartbeatTTL()); err != nil {
		w.warnUnavailable("failed to publish heartbeat", err)
	}
}

// shouldStop compares at whole-second resolution; a marker written in the same second the
// instance started stops it.
func (w *Worker) shouldStop(ctx context.Context) bool {
	ctx, cancel := w.storeContext(ctx)
	defer cancel()

	stoppedAt, err := w.stops.LastStop(ctx, w.scope)
	if err != nil {
		w.warnUnavailable("failed to read stop marker", err)
		return false
	}
	return stoppedAt != nil && IsStopMarkerFor(*stoppedAt, w.startedAt)
}

// IsStopMarkerFor reports whether a marker written at stoppedAt applies to an instance
// started at startedAt.
func IsStopMarkerFor(stoppedAt, startedAt time.Time) bool {
	return !stoppedAt.Truncate(time.Second).Before(startedAt.Truncate(time.Second))
}

// claim treats a store failure like an empty queue.
func (w *Worker) claim(ctx context.Context) *types.Job {
	ctx, cancel := w.storeContext(ctx)
	defer cancel()

	job, err := w.jobs.ClaimNext(ctx)
	if err != nil {
		w.metrics.ClaimError(w.queue)
		w.warnUnavailable("failed to claim job", err)
		return nil
	}
	if job == nil {
		w.metrics.IdlePoll(w.queue)
		return nil
	}
	w.metrics.JobClaimed(w.queue)
	return job
}

func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *Worker) handle(ctx context.Context, job *types.Job) {
	jobCtx := context.WithoutCancel(ctx)
	logger := w.logger.With("job_id", job.ID, "callable", job.Callable().String())

	// Durations are measured on the wall clock; w.now may be a fixed or manual provider.
	started := time.Now()
	result, failed := w.execute(jobCtx, job)
	took := time.Since(started)

	w.transition(state.WorkerRecording)
	recordCtx, cancel := w.storeContext(jobCtx)
	defer cancel()
	if err := w.jobs.RecordResult(recordCtx, job.ID, result); err != nil {
		logger.Error("failed to record job result", "err", err)
	}

	outcome := metrics.OutcomeSuccess
	if failed {
		outcome = metrics.OutcomeFailure
		logger.Warn("job failed", "result", deref(result), "took", took)
	} else {
		logger.Debug("job done", "took", took)
	}
	w.metrics.JobCompleted(w.queue, outcome, took)
}

// execute always yields a textual result; failures become their message, which is never empty.
func (w *Worker) execute(ctx context.Context, job *types.Job) (result *string, failed bool) {
	value, err := w.invoke(ctx, job)
	if err != nil {
		return failureText(job, err), true
	}
	result, err = types.EncodePayload(value)
	if err != nil {
		return failureText(job, err), true
	}
	return result, false
}

func failureText(job *types.Job, err error) *string {
	message := err.Error()
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("job %d failed", job.ID)
	}
	return &message
}

func (w *Worker) invoke(ctx context.Context, job *types.Job) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &custom_errors.ExecutionFailureError{Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return w.dispatcher.Invoke(ctx, job.Component, job.Callback, types.DecodeArgs(job.Args)...)
}

func (w *Worker) shutdown(ctx context.Context, reason string) {
	ctx, cancel := w.storeContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := w.heartbeats.Delete(ctx, heartbeat.Key(w.scope, w.runID)); err != nil {
		w.logger.Warn("failed to remove heartbeat", "err", err)
	}
	w.transition(state.WorkerStopped)
	w.logger.Info("queue worker stopped", "run_id", w.runID, "reason", reason)
}

func (w *Worker) warnUnavailable(msg string, err error) {
	w.warn.Do(func() {
		w.logger.Warn(msg, "err", err)
	})
}

// RequestStop writes a stop marker for the queue. Every instance started at or before now
// stops at its next iteration.
func (w *Worker) RequestStop(ctx context.Context) error {
	return w.stops.Stop(ctx, w.scope, w.now())
}

// LastStop returns nil when the queue has never been stopped.
func (w *Worker) LastStop(ctx context.Context) (*time.Time, error) {
	return w.stops.LastStop(ctx, w.scope)
}

// RunOne runs a single job outside the poll loop and returns its textual result. A job that
// has already been claimed is only run again with Force. With Untouched, neither claimed_at
// nor the result is written.
func (w *Worker) RunOne(ctx context.Context, id int64, opts types.RunOptions) (string, error) {
	job, err := w.jobs.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", fmt.Errorf("%w: %d", custom_errors.ErrJobNotFound, id)
	}
	if job.IsClaimed() && !opts.Force {
		return "", &custom_errors.AlreadyProcessedError{JobID: job.ID, Result: job.Result}
	}

	if !opts.Untouched {
		if err := w.jobs.MarkClaimed(ctx, job.ID); err != nil {
			return "", err
		}
	}

	result, failed := w.execute(context.WithoutCancel(ctx), job)
	if failed {
		w.logger.Warn("job failed", "job_id", job.ID, "result", deref(result))
	}

	if !opts.Untouched {
		if err := w.jobs.RecordResult(ctx, job.ID, result); err != nil {
			return deref(result), err
		}
	}
	return deref(result), nil
}

// ActiveInstances lists the live instances of the queue. Entries whose last heartbeat is
// older than HeartbeatTTL are deleted and left out.
func (w *Worker) ActiveInstances(ctx context.Context) ([]types.Heartbeat, error) {
	entries, err := w.heartbeats.List(ctx, heartbeat.Prefix(w.scope))
	if err != nil {
		return nil, err
	}

	cutoff := w.now().Add(-w.HeartbeatTTL())
	active := make([]types.Heartbeat, 0, len(entries))
	for _, entry := range entries {
		if entry.Value.LastHeartbeat.Before(cutoff) {
			if err := w.heartbeats.Delete(ctx, entry.Key); err != nil {
				w.logger.Warn("failed to evict stale heartbeat", "key", entry.Key, "err", err)
			}
			continue
		}
		active = append(active, entry.Value)
	}
	return active, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
