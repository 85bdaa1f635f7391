package test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/RezaEskandarii/tablequeue/client/test/mocks"
	"github.com/RezaEskandarii/tablequeue/types"
)

func BenchmarkEnqueue_DirectMode(b *testing.B) {
	f := newFixture(b)
	jm := newTestJobManager(b, f, nil, false, "job_queue")
	var seq atomic.Int64
	f.store("job_queue").InsertFunc = func(ctx context.Context, req types.EnqueueRequest) (int64, error) {
		return seq.Add(1), nil
	}

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := types.EnqueueRequest{
			Callable: types.Method("Sms", fmt.Sprintf("job-%d", i%20)),
			Args:     []any{"+15550100", "hello"},
		}
		if _, err := jm.Enqueue(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEnqueue_QueueWriter(b *testing.B) {
	f := newFixture(b)
	jm := newTestJobManager(b, f, &mocks.MockMessageBroker{}, true, "job_queue")

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			req := types.EnqueueRequest{Callable: types.Func("cleanup"), Args: []any{"a", 1}}
			if _, err := jm.Enqueue(ctx, req); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
