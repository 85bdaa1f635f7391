package mocks

import (
	"context"
	"time"

	"github.com/RezaEskandarii/tablequeue/internal/heartbeat"
	"github.com/RezaEskandarii/tablequeue/types"
)

// MockHeartbeatRegistry is a mock implementation of heartbeat.Registry for testing.
type MockHeartbeatRegistry struct {
	PutFunc    func(ctx context.Context, key string, value types.Heartbeat, ttl time.Duration) error
	GetFunc    func(ctx context.Context, key string) (*types.Heartbeat, error)
	DeleteFunc func(ctx context.Context, key string) error
	ListFunc   func(ctx context.Context, prefix string) ([]heartbeat.Entry, error)
}

func (m *MockHeartbeatRegistry) Put(ctx context.Context, key string, value types.Heartbeat, ttl time.Duration) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, value, ttl)
	}
	return nil
}

func (m *MockHeartbeatRegistry) Get(ctx context.Context, key string) (*types.Heartbeat, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, nil
}

func (m *MockHeartbeatRegistry) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

func (m *MockHeartbeatRegistry) List(ctx context.Context, prefix string) ([]heartbeat.Entry, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, prefix)
	}
	return nil, nil
}
