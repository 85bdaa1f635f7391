package heartbeat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RezaEskandarii/tablequeue/internal/constants"
	"github.com/RezaEskandarii/tablequeue/types"
)

// Entry is one heartbeat found under a prefix.
type Entry struct {
	Key   string
	Value types.Heartbeat
}

// Registry is a key/value store with per-entry expiry holding worker liveness records.
type Registry interface {
	Put(ctx context.Context, key string, value types.Heartbeat, ttl time.Duration) error
	// Get returns nil when the key is missing or expired.
	Get(ctx context.Context, key string) (*types.Heartbeat, error)
	Delete(ctx context.Context, key string) error
	// List returns the live entries whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Entry, error)
}

// Prefix is the key prefix shared by every instance of queue, which workers pass already
// scoped by the table prefix. Neither can contain "-", so one queue's prefix never matches
// another queue's keys.
func Prefix(queue string) string {
	return constants.HeartbeatKeyPrefix + queue + "-"
}

// Key identifies one worker instance of queue.
func Key(queue, runID string) string {
	return Prefix(queue) + runID
}

func encode(value types.Heartbeat) ([]byte, error) {
	return json.Marshal(value)
}

func decode(data []byte) (types.Heartbeat, error) {
	var value types.Heartbeat
	err := json.Unmarshal(data, &value)
	return value, err
}
