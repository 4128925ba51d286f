package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/async-job-service/shared/rabbitmq"
)

const (
	// retryCountHeader is set on republished messages
	retryCountHeader = "x-retry-count"
	// deliveryCountHeader is maintained by the broker on quorum queues
	deliveryCountHeader = "x-delivery-count"
)

// AMQPClient is the part of rabbitmq.Client the queue uses
type AMQPClient interface {
	Publish(ctx context.Context, body []byte, contentType string) error
	Republish(ctx context.Context, d amqp.Delivery, headers amqp.Table) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Cancel(consumerTag string) error
}

var _ AMQPClient = (*rabbitmq.Client)(nil)

// RabbitMQQueue sends to the job exchange and consumes the job queue with
// manual acknowledgement.
type RabbitMQQueue struct {
	client      AMQPClient
	consumerTag string
	logger      *slog.Logger

	mu         sync.Mutex // guards deliveries
	deliveries <-chan amqp.Delivery
}

// NewRabbitMQQueue wraps a connected client. Consuming starts on the first Receive.
func NewRabbitMQQueue(client AMQPClient, consumerTag string, logger *slog.Logger) *RabbitMQQueue {
	return &RabbitMQQueue{
		client:      client,
		consumerTag: consumerTag,
		logger:      logger,
	}
}

func (q *RabbitMQQueue) Send(ctx context.Context, body []byte) error {
	return q.client.Publish(ctx, body, "application/json")
}

// Receive collects up to maxMessages deliveries, returning early when the
// batch is full and otherwise after wait elapses.
func (q *RabbitMQQueue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Delivery, error) {
	deliveries, err := q.consume()
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	return collect(ctx, deliveries, maxMessages, wait)
}

// consume starts the consumer once; a failed start is tried again on the
// next call.
func (q *RabbitMQQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.deliveries != nil {
		return q.deliveries, nil
	}

	deliveries, err := q.client.Consume(q.consumerTag)
	if err != nil {
		return nil, err
	}
	q.deliveries = deliveries

	return deliveries, nil
}

func (q *RabbitMQQueue) consuming() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.deliveries != nil
}

func collect(ctx context.Context, deliveries <-chan amqp.Delivery, maxMessages int, wait time.Duration) ([]Delivery, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	batch := make([]Delivery, 0, maxMessages)
	for len(batch) < maxMessages {
		select {
		case <-ctx.Done():
			// hand over what was already taken so it gets settled
			if len(batch) > 0 {
				return batch, nil
			}
			return nil, ctx.Err()
		case <-timer.C:
			return batch, nil
		case d, ok := <-deliveries:
			if !ok {
				if len(batch) > 0 {
					return batch, nil
				}
				return nil, ErrClosed
			}
			batch = append(batch, fromAMQP(d))
		}
	}

	return batch, nil
}

func fromAMQP(d amqp.Delivery) Delivery {
	id := d.MessageId
	if id == "" {
		id = strconv.FormatUint(d.DeliveryTag, 10)
	}

	return Delivery{
		ID:          id,
		Body:        d.Body,
		Redelivered: d.Redelivered,
		Attempt:     attemptOf(d),
		handle:      d,
	}
}

// attemptOf derives the delivery attempt from the retry header this queue
// sets, or from the broker's delivery count on quorum queues.
func attemptOf(d amqp.Delivery) int {
	if n, ok := headerInt(d.Headers, retryCountHeader); ok {
		return n + 1
	}
	if n, ok := headerInt(d.Headers, deliveryCountHeader); ok {
		return n + 1
	}
	if d.Redelivered {
		return 2
	}
	return 1
}

func headerInt(headers amqp.Table, key string) (int, bool) {
	switch v := headers[key].(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	default:
		return 0, false
	}
}

func amqpDelivery(d Delivery) (amqp.Delivery, error) {
	ad, ok := d.handle.(amqp.Delivery)
	if !ok {
		return amqp.Delivery{}, fmt.Errorf("delivery %s was not received from RabbitMQ", d.ID)
	}
	return ad, nil
}

func (q *RabbitMQQueue) Ack(_ context.Context, d Delivery) error {
	ad, err := amqpDelivery(d)
	if err != nil {
		return err
	}
	return ad.Ack(false)
}

// Discard nacks without requeue; the queue's dead letter exchange, when
// configured, keeps a copy.
func (q *RabbitMQQueue) Discard(_ context.Context, d Delivery) error {
	ad, err := amqpDelivery(d)
	if err != nil {
		return err
	}
	return ad.Nack(false, false)
}

// Retry republishes the message with its retry count raised and acks the
// original. When the republish fails the original is requeued as is.
func (q *RabbitMQQueue) Retry(ctx context.Context, d Delivery) error {
	ad, err := amqpDelivery(d)
	if err != nil {
		return err
	}

	headers := make(amqp.Table, len(ad.Headers)+1)
	for k, v := range ad.Headers {
		headers[k] = v
	}
	delete(headers, deliveryCountHeader)
	headers[retryCountHeader] = int32(max(d.Attempt, 1))

	if err := q.client.Republish(ctx, ad, headers); err != nil {
		q.logger.Warn("Failed to republish message for retry, requeueing",
			slog.String("message_id", d.ID),
			slog.Any("error", err),
		)
		return ad.Nack(false, true)
	}

	return ad.Ack(false)
}

// Close stops new deliveries to this consumer
func (q *RabbitMQQueue) Close() error {
	if !q.consuming() {
		return nil
	}
	if err := q.client.Cancel(q.consumerTag); err != nil {
		q.logger.Warn("Failed to cancel RabbitMQ consumer",
			slog.String("consumer_tag", q.consumerTag),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}
