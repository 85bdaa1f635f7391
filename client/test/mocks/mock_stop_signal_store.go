package mocks

import (
	"context"
	"sync"
	"time"
)

// MockStopSignalStore is a mock implementation of store.StopSignalStore for testing. With no
// funcs set it keeps markers in memory.
type MockStopSignalStore struct {
	StopFunc     func(ctx context.Context, queue string, at time.Time) error
	LastStopFunc func(ctx context.Context, queue string) (*time.Time, error)

	mu      sync.Mutex
	markers map[string]time.Time
}

func (m *MockStopSignalStore) Stop(ctx context.Context, queue string, at time.Time) error {
	if m.StopFunc != nil {
		return m.StopFunc(ctx, queue, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markers == nil {
		m.markers = make(map[string]time.Time)
	}
	m.markers[queue] = at
	return nil
}

func (m *MockStopSignalStore) LastStop(ctx context.Context, queue string) (*time.Time, error) {
	if m.LastStopFunc != nil {
		return m.LastStopFunc(ctx, queue)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.markers[queue]
	if !ok {
		return nil, nil
	}
	return &at, nil
}
