package heartbeat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/RezaEskandarii/tablequeue/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBadgerRegistry(t *testing.T) *BadgerRegistry {
	t.Helper()
	db, err := OpenBadger("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry, err := NewBadgerRegistry(db)
	require.NoError(t, err)
	return registry
}

func sampleHeartbeat(runID string) types.Heartbeat {
	start := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	return types.Heartbeat{StartTime: start, LastHeartbeat: start.Add(time.Minute), RunID: runID}
}

func TestKeyAndPrefix(t *testing.T) {
	assert.Equal(t, "job_queue-emails-", Prefix("emails"))
	assert.Equal(t, "job_queue-emails-abc", Key("emails", "abc"))
	assert.False(t, strings.HasPrefix(Key("job_queue", "r1"), Prefix("job")), "one queue's prefix never matches another queue")
}

func TestBadgerRegistry_PutGetDelete(t *testing.T) {
	registry := newBadgerRegistry(t)
	ctx := context.Background()
	key := Key("emails", "run-1")

	value, err := registry.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, registry.Put(ctx, key, sampleHeartbeat("run-1"), time.Minute))

	value, err = registry.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "run-1", value.RunID)
	assert.True(t, value.StartTime.Equal(sampleHeartbeat("run-1").StartTime))

	require.NoError(t, registry.Delete(ctx, key))
	value, err = registry.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestBadgerRegistry_ListByPrefix(t *testing.T) {
	registry := newBadgerRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.Put(ctx, Key("emails", "a"), sampleHeartbeat("a"), time.Minute))
	require.NoError(t, registry.Put(ctx, Key("emails", "b"), sampleHeartbeat("b"), time.Minute))
	require.NoError(t, registry.Put(ctx, Key("emails_bulk", "c"), sampleHeartbeat("c"), time.Minute))

	entries, err := registry.List(ctx, Prefix("emails"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Key("emails", "a"), entries[0].Key)
	assert.Equal(t, "b", entries[1].Value.RunID)
}
