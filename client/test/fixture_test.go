package test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/RezaEskandarii/tablequeue/client"
	"github.com/RezaEskandarii/tablequeue/client/test/mocks"
	"github.com/RezaEskandarii/tablequeue/internal/worker"
	"github.com/RezaEskandarii/tablequeue/types/config"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	stops       *mocks.MockStopSignalStore
	heartbeats  *mocks.MockHeartbeatRegistry
	provisioner *mocks.MockTableProvisioner
	handler     *config.JobHandler
	registry    *client.QueueRegistry

	mu     sync.Mutex
	stores map[string]*mocks.MockJobStore
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	f := &fixture{
		stops:       &mocks.MockStopSignalStore{},
		heartbeats:  &mocks.MockHeartbeatRegistry{},
		provisioner: &mocks.MockTableProvisioner{},
		handler:     config.NewJobHandler(),
		stores:      map[string]*mocks.MockJobStore{},
	}
	f.registry = client.NewQueueRegistry(f.provisioner, func(name, table string) (*client.Queue, error) {
		jobs := &mocks.MockJobStore{TableName: table}
		w, err := worker.New(name, jobs, f.stops, f.heartbeats, f.handler, worker.Config{
			PollInterval: 10 * time.Millisecond,
			Logger:       discard,
		})
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.stores[name] = jobs
		f.mu.Unlock()
		return &client.Queue{Name: name, Table: table, Jobs: jobs, Worker: w}, nil
	})
	return f
}

func (f *fixture) store(name string) *mocks.MockJobStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores[name]
}
