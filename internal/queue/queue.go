package queue

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Receive once the underlying consumer has gone away
var ErrClosed = errors.New("queue consumer closed")

// Delivery is one received message. The handle ties it back to the driver
// for settlement.
type Delivery struct {
	ID          string
	Body        []byte
	Redelivered bool

	// Attempt counts deliveries of this message starting at 1; zero when
	// the driver cannot tell.
	Attempt int

	handle any
}

// Sender enqueues encoded messages
type Sender interface {
	Send(ctx context.Context, body []byte) error
}

// Receiver hands out batches and settles each delivery exactly once:
// Ack removes it, Discard drops it without redelivery, Retry makes it
// visible again.
type Receiver interface {
	Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	Discard(ctx context.Context, d Delivery) error
	Retry(ctx context.Context, d Delivery) error
}

// Queue is a driver that both sends and receives
type Queue interface {
	Sender
	Receiver
}
