package message_broaker

import (
	"context"
	"fmt"

	"github.com/RezaEskandarii/tablequeue/types/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultContentType = "application/json"
	consumeBuffer      = 1000
)

// channel is the part of *amqp.Channel the broker uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

type RabbitMQ struct {
	conn        *amqp.Connection
	channel     channel
	queue       string
	exchange    string
	routingKey  string
	contentType string
}

// NewRabbitMQ dials the broker and declares a durable direct exchange bound to the queue.
func NewRabbitMQ(cfg config.RabbitMQConfig) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := declare(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	broker := newRabbitMQ(ch, cfg)
	broker.conn = conn
	return broker, nil
}

func declare(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %q: %w", cfg.Exchange, err)
		}
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", cfg.Queue, err)
	}
	if cfg.Exchange != "" {
		if err := ch.QueueBind(cfg.Queue, routingKey(cfg), cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %q: %w", cfg.Queue, err)
		}
	}
	return nil
}

func newRabbitMQ(ch channel, cfg config.RabbitMQConfig) *RabbitMQ {
	contentType := cfg.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	return &RabbitMQ{
		channel:     ch,
		queue:       cfg.Queue,
		exchange:    cfg.Exchange,
		routingKey:  routingKey(cfg),
		contentType: contentType,
	}
}

// routingKey falls back to the queue name, which is what the default exchange routes on.
func routingKey(cfg config.RabbitMQConfig) string {
	if cfg.RoutingKey != "" {
		return cfg.RoutingKey
	}
	return cfg.Queue
}

func (r *RabbitMQ) Publish(ctx context.Context, message []byte) error {
	return r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  r.contentType,
			DeliveryMode: amqp.Persistent,
			Body:         message,
		},
	)
}

func (r *RabbitMQ) Consume(ctx context.Context) (<-chan []byte, error) {
	msgs, err := r.channel.Consume(
		r.queue,
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte, consumeBuffer)

	go func() {
		defer close(out)

		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Body:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		if r.conn != nil {
			_ = r.conn.Close()
		}
		return err
	}
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}
