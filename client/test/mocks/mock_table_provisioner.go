package mocks

import (
	"context"
	"fmt"
)

// MockTableProvisioner is a mock implementation of client.TableProvisioner for testing.
type MockTableProvisioner struct {
	EnsureQueueTableFunc func(ctx context.Context, queue string) (string, error)
	Calls                []string
}

func (m *MockTableProvisioner) EnsureQueueTable(ctx context.Context, queue string) (string, error) {
	m.Calls = append(m.Calls, queue)
	if m.EnsureQueueTableFunc != nil {
		return m.EnsureQueueTableFunc(ctx, queue)
	}
	return fmt.Sprintf(`tablequeue.%q`, queue), nil
}
