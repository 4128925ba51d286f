package queue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	maxSQSBatch    = 10
	maxSQSLongPoll = 20 * time.Second
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// SQSQueue sends to and long-polls a single SQS queue
type SQSQueue struct {
	client   sqsAPI
	queueURL string
	logger   *slog.Logger
}

func NewSQSQueue(client sqsAPI, queueURL string, logger *slog.Logger) *SQSQueue {
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

func (q *SQSQueue) Send(ctx context.Context, body []byte) error {
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	q.logger.Debug("Message sent to SQS",
		slog.String("message_id", aws.ToString(out.MessageId)),
		slog.Int("body_size", len(body)),
	)

	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Delivery, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(min(max(maxMessages, 1), maxSQSBatch)),
		WaitTimeSeconds:     longPollSeconds(wait),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	batch := make([]Delivery, 0, len(out.Messages))
	for _, m := range out.Messages {
		receiveCount, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])

		batch = append(batch, Delivery{
			ID:          aws.ToString(m.MessageId),
			Body:        []byte(aws.ToString(m.Body)),
			Redelivered: receiveCount > 1,
			Attempt:     receiveCount,
			handle:      aws.ToString(m.ReceiptHandle),
		})
	}

	return batch, nil
}

func longPollSeconds(wait time.Duration) int32 {
	if wait <= 0 {
		return 0
	}
	wait = min(wait, maxSQSLongPoll)
	return int32(math.Ceil(wait.Seconds()))
}

func receiptHandle(d Delivery) (string, error) {
	handle, ok := d.handle.(string)
	if !ok || handle == "" {
		return "", fmt.Errorf("delivery %s was not received from SQS", d.ID)
	}
	return handle, nil
}

func (q *SQSQueue) Ack(ctx context.Context, d Delivery) error {
	handle, err := receiptHandle(d)
	if err != nil {
		return err
	}

	_, err = q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// Discard deletes the message; SQS has no reject, and a redrive policy
// would only kick in after repeated receives.
func (q *SQSQueue) Discard(ctx context.Context, d Delivery) error {
	return q.Ack(ctx, d)
}

// Retry makes the message visible again immediately
func (q *SQSQueue) Retry(ctx context.Context, d Delivery) error {
	handle, err := receiptHandle(d)
	if err != nil {
		return err
	}

	_, err = q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(handle),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("failed to reset message visibility: %w", err)
	}
	return nil
}
