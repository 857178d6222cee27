package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPQueue carries job ids over a durable RabbitMQ queue. Deliveries are
// acknowledged when handed to a worker, so a crash mid-job loses the
// delivery, matching the at-most-once contract of the memory queue.
type AMQPQueue struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	name       string
	deliveries <-chan amqp.Delivery
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewAMQPQueue(url, name string, prefetch int, logger *slog.Logger) (*AMQPQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	fail := func(err error) (*AMQPQueue, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("declare queue %s: %w", name, err))
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			return fail(fmt.Errorf("set qos: %w", err))
		}
	}
	deliveries, err := ch.Consume(name, "", false, false, false, false, nil)
	if err != nil {
		return fail(fmt.Errorf("consume from %s: %w", name, err))
	}
	logger.Info("queue.amqp.ready", "queue", name, "prefetch", prefetch)
	return &AMQPQueue{conn: conn, channel: ch, name: name, deliveries: deliveries, logger: logger}, nil
}

func (q *AMQPQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	err := q.channel.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         []byte(jobID.String()),
	})
	if err != nil {
		return fmt.Errorf("publish job %s: %w", jobID, err)
	}
	return nil
}

func (q *AMQPQueue) Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case d, open := <-q.deliveries:
			if !open {
				return uuid.Nil, false, ErrQueueClosed
			}
			if err := d.Ack(false); err != nil {
				q.logger.Warn("queue.amqp.ack_error", "error", err)
			}
			id, err := uuid.ParseBytes(d.Body)
			if err != nil {
				q.logger.Warn("queue.amqp.bad_message", "body", string(d.Body), "error", err)
				continue
			}
			return id, true, nil
		case <-ctx.Done():
			return uuid.Nil, false, ctx.Err()
		case <-timer.C:
			return uuid.Nil, false, nil
		}
	}
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	if err := q.channel.Close(); err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	if err := q.conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}
