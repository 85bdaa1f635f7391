package worker

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RezaEskandarii/tablequeue/internal/heartbeat"
	"github.com/RezaEskandarii/tablequeue/internal/state"
	"github.com/RezaEskandarii/tablequeue/types"
)

// memoryJobStore is an in-process queue table guarded by one mutex, which plays the role of
// the claim transaction.
type memoryJobStore struct {
	mu       sync.Mutex
	jobs     map[int64]*types.Job
	nextID   int64
	now      func() time.Time
	claimErr error
	claims   int
}

func newMemoryJobStore(now func() time.Time) *memoryJobStore {
	return &memoryJobStore{jobs: map[int64]*types.Job{}, now: now}
}

func (s *memoryJobStore) Table() string { return `tablequeue."job_queue"` }

func (s *memoryJobStore) add(job types.Job) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	job.ID = s.nextID
	if job.Priority == 0 {
		job.Priority = types.DefaultPriority
	}
	s.jobs[job.ID] = &job
	return job.ID
}

func (s *memoryJobStore) Insert(ctx context.Context, req types.EnqueueRequest) (int64, error) {
	args, err := types.EncodePayload(req.Args)
	if err != nil {
		return -1, err
	}
	at := req.ScheduledAt
	if at.IsZero() {
		at = s.now()
	}
	return s.add(types.Job{
		ScheduledAt: at,
		Component:   req.Callable.ComponentPtr(),
		Callback:    req.Callable.Callback,
		Args:        args,
		Priority:    req.PriorityOrDefault(),
		CreatedAt:   s.now(),
	}), nil
}

func (s *memoryJobStore) BulkInsert(ctx context.Context, batch []types.EnqueueRequest) error {
	for _, req := range batch {
		if _, err := s.Insert(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryJobStore) ClaimNext(ctx context.Context) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims++
	if s.claimErr != nil {
		return nil, s.claimErr
	}

	now := s.now()
	var next *types.Job
	for _, job := range s.jobs {
		if job.IsEligible(now) && (next == nil || job.Before(next)) {
			next = job
		}
	}
	if next == nil {
		return nil, nil
	}
	snapshot := *next
	next.ClaimedAt = &now
	next.UpdatedAt = &now
	return &snapshot, nil
}

func (s *memoryJobStore) FindByID(ctx context.Context, id int64) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (s *memoryJobStore) RecordResult(ctx context.Context, id int64, result *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.jobs[id].Result = result
	s.jobs[id].UpdatedAt = &now
	return nil
}

func (s *memoryJobStore) MarkClaimed(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.jobs[id].ClaimedAt = &now
	s.jobs[id].UpdatedAt = &now
	return nil
}

func (s *memoryJobStore) CountByStatus(ctx context.Context) (map[state.JobStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[state.JobStatus]int{}
	for _, job := range s.jobs {
		counts[state.StatusOf(job)]++
	}
	return counts, nil
}

func (s *memoryJobStore) result(id int64) *string {
	job, _ := s.FindByID(context.Background(), id)
	return job.Result
}

func (s *memoryJobStore) claimCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims
}

type memoryStops struct {
	mu      sync.Mutex
	markers map[string]time.Time
	err     error
}

func newMemoryStops() *memoryStops {
	return &memoryStops{markers: map[string]time.Time{}}
}

func (s *memoryStops) Stop(ctx context.Context, queue string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[queue] = at
	return nil
}

func (s *memoryStops) LastStop(ctx context.Context, queue string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	at, ok := s.markers[queue]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

type memoryRegistry struct {
	mu      sync.Mutex
	entries map[string]types.Heartbeat
	puts    int
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{entries: map[string]types.Heartbeat{}}
}

func (r *memoryRegistry) Put(ctx context.Context, key string, value types.Heartbeat, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
	r.puts++
	return nil
}

func (r *memoryRegistry) Get(ctx context.Context, key string) (*types.Heartbeat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	return &value, nil
}

func (r *memoryRegistry) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}

func (r *memoryRegistry) List(ctx context.Context, prefix string) ([]heartbeat.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []heartbeat.Entry
	for key, value := range r.entries {
		if strings.HasPrefix(key, prefix) {
			entries = append(entries, heartbeat.Entry{Key: key, Value: value})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (r *memoryRegistry) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

func (r *memoryRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *memoryRegistry) putCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.puts
}
