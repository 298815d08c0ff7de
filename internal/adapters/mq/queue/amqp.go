package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/okian/sift/pkg/logger"
	"github.com/okian/sift/pkg/metrics"
)

// Queue name used on the broker.
const amqpQueueName = "sift.stage_tasks"

// AMQPQueue implements Queue on RabbitMQ so stage tasks survive a
// process restart and multiple workers can share the pipeline.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	mu     sync.RWMutex
	closed bool

	logger logger.Logger
}

// NewAMQPQueue dials the broker and declares the durable task queue.
func NewAMQPQueue(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(amqpQueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &AMQPQueue{
		conn:   conn,
		ch:     ch,
		logger: logger.Get().Named("amqp"),
	}, nil
}

// Enqueue publishes a task. The task ID travels as the message ID so
// consumers can replay their idempotency check.
func (q *AMQPQueue) Enqueue(ctx context.Context, t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.RecordQueueEnqueueError()
		return false
	}

	body, err := json.Marshal(t)
	if err != nil {
		metrics.RecordQueueEnqueueError()
		return false
	}
	err = q.ch.PublishWithContext(ctx, "", amqpQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    t.TaskID,
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		metrics.RecordQueueEnqueueError()
		q.logger.Error(ctx, "publish failed", logger.Error(err))
		return false
	}
	metrics.RecordQueueEnqueue()
	return true
}

// Dequeue consumes tasks from the broker. Deliveries that fail to
// decode are rejected without requeue; decoded tasks are acked once
// handed to the worker.
func (q *AMQPQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)
	deliveries, err := q.ch.Consume(amqpQueueName, "", false, false, false, false, nil)
	if err != nil {
		q.logger.Error(ctx, "consume failed", logger.Error(err))
		close(out)
		return out
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				var t Task
				if err := json.Unmarshal(d.Body, &t); err != nil {
					q.logger.Warn(ctx, "dropping undecodable task", logger.Error(err))
					_ = d.Reject(false)
					continue
				}
				select {
				case out <- t:
					metrics.RecordQueueDequeue()
					_ = d.Ack(false)
				case <-ctx.Done():
					_ = d.Reject(true)
					return
				}
			}
		}
	}()
	return out
}

// Len inspects the broker-side queue depth.
func (q *AMQPQueue) Len(_ context.Context) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return 0
	}
	state, err := q.ch.QueueDeclarePassive(amqpQueueName, true, false, false, false, nil)
	if err != nil {
		return 0
	}
	metrics.UpdateQueueSize(state.Messages)
	return state.Messages
}

// Close shuts down the channel and connection.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	if err := q.conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *AMQPQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
