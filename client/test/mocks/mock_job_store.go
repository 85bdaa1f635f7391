package mocks

import (
	"context"

	"github.com/RezaEskandarii/tablequeue/internal/state"
	"github.com/RezaEskandarii/tablequeue/types"
)

// MockJobStore is a mock implementation of store.JobStore for testing.
type MockJobStore struct {
	TableName         string
	InsertFunc        func(ctx context.Context, req types.EnqueueRequest) (int64, error)
	BulkInsertFunc    func(ctx context.Context, batch []types.EnqueueRequest) error
	ClaimNextFunc     func(ctx context.Context) (*types.Job, error)
	FindByIDFunc      func(ctx context.Context, id int64) (*types.Job, error)
	RecordResultFunc  func(ctx context.Context, id int64, result *string) error
	MarkClaimedFunc   func(ctx context.Context, id int64) error
	CountByStatusFunc func(ctx context.Context) (map[state.JobStatus]int, error)
}

func (m *MockJobStore) Table() string {
	return m.TableName
}

func (m *MockJobStore) Insert(ctx context.Context, req types.EnqueueRequest) (int64, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, req)
	}
	return 0, nil
}

func (m *MockJobStore) BulkInsert(ctx context.Context, batch []types.EnqueueRequest) error {
	if m.BulkInsertFunc != nil {
		return m.BulkInsertFunc(ctx, batch)
	}
	return nil
}

func (m *MockJobStore) ClaimNext(ctx context.Context) (*types.Job, error) {
	if m.ClaimNextFunc != nil {
		return m.ClaimNextFunc(ctx)
	}
	return nil, nil
}

func (m *MockJobStore) FindByID(ctx context.Context, id int64) (*types.Job, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockJobStore) RecordResult(ctx context.Context, id int64, result *string) error {
	if m.RecordResultFunc != nil {
		return m.RecordResultFunc(ctx, id, result)
	}
	return nil
}

func (m *MockJobStore) MarkClaimed(ctx context.Context, id int64) error {
	if m.MarkClaimedFunc != nil {
		return m.MarkClaimedFunc(ctx, id)
	}
	return nil
}

func (m *MockJobStore) CountByStatus(ctx context.Context) (map[state.JobStatus]int, error) {
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx)
	}
	return map[state.JobStatus]int{}, nil
}
