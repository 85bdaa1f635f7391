package message_broaker

import "context"

// MessageBroker buffers enqueue requests in front of the database.
type MessageBroker interface {
	Publish(ctx context.Context, message []byte) error
	Consume(ctx context.Context) (<-chan []byte, error)
	Close() error
}
