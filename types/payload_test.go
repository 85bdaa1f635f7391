package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePayload(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *string
	}{
		{"nil stays null", nil, nil},
		{"string passes through", "hello", ptr("hello")},
		{"bytes pass through", []byte("raw"), ptr("raw")},
		{"raw json passes through", json.RawMessage(`{"a":1}`), ptr(`{"a":1}`)},
		{"int", 42, ptr("42")},
		{"float", 1.5, ptr("1.5")},
		{"bool", true, ptr("true")},
		{"error message", errors.New("boom"), ptr("boom")},
		{"slice encoded", []any{"a", 1}, ptr(`["a",1]`)},
		{"map encoded", map[string]int{"n": 2}, ptr(`{"n":2}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodePayload(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodePayload_Unmarshalable(t *testing.T) {
	_, err := EncodePayload(make(chan int))
	assert.Error(t, err)
}

func TestDecodeArgs(t *testing.T) {
	assert.Nil(t, DecodeArgs(nil))
	assert.Nil(t, DecodeArgs(ptr("null")))
	assert.Equal(t, []any{"a", float64(2)}, DecodeArgs(ptr(`["a",2]`)))
	assert.Equal(t, []any{map[string]any{"to": "x"}}, DecodeArgs(ptr(`{"to":"x"}`)))
	assert.Equal(t, []any{float64(5)}, DecodeArgs(ptr("5")))
	assert.Equal(t, []any{"plain text"}, DecodeArgs(ptr("plain text")))
}

func TestJob_ClaimOrder(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := &Job{ID: 1, Priority: 20, ScheduledAt: now.Add(-3 * time.Minute)}
	b := &Job{ID: 2, Priority: 5, ScheduledAt: now.Add(-time.Minute)}
	c := &Job{ID: 3, Priority: 5, ScheduledAt: now.Add(-2 * time.Minute)}
	d := &Job{ID: 4, Priority: 5, ScheduledAt: now.Add(-2 * time.Minute)}

	assert.True(t, c.Before(b))
	assert.True(t, b.Before(a))
	assert.True(t, c.Before(d), "id breaks ties")
	assert.False(t, a.Before(c))
}

func TestJob_IsEligible(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	claimed := now

	assert.True(t, (&Job{ScheduledAt: now}).IsEligible(now))
	assert.False(t, (&Job{ScheduledAt: now.Add(time.Second)}).IsEligible(now))
	assert.False(t, (&Job{ScheduledAt: now, ClaimedAt: &claimed}).IsEligible(now))
}

func TestEnqueueRequest_PriorityOrDefault(t *testing.T) {
	assert.Equal(t, DefaultPriority, EnqueueRequest{}.PriorityOrDefault())
	assert.Equal(t, 0, EnqueueRequest{Priority: Priority(0)}.PriorityOrDefault())
	assert.Equal(t, 3, EnqueueRequest{Priority: Priority(3)}.PriorityOrDefault())
}

func TestParseCallable(t *testing.T) {
	assert.Equal(t, Func("cleanup"), ParseCallable("cleanup"))
	assert.Equal(t, Method("Mailer", "send"), ParseCallable("Mailer::send"))
	assert.Equal(t, "Mailer::send", Method("Mailer", "send").String())
	assert.Nil(t, Func("x").ComponentPtr())
	assert.Equal(t, "Mailer", *Method("Mailer", "send").ComponentPtr())
}

func ptr(s string) *string { return &s }
