package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/async-job-service/shared/logger"
)

type fakeSQS struct {
	sent       []*sqs.SendMessageInput
	received   *sqs.ReceiveMessageInput
	messages   []types.Message
	deleted    []string
	visibility map[string]int32
	err        error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.received = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibility(_ context.Context, in *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.visibility == nil {
		f.visibility = make(map[string]int32)
	}
	f.visibility[aws.ToString(in.ReceiptHandle)] = in.VisibilityTimeout
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

const queueURL = "http://localhost:4566/000000000000/async-jobs"

func TestSQSQueue_Send(t *testing.T) {
	fake := &fakeSQS{}
	q := NewSQSQueue(fake, queueURL, logger.Discard())

	require.NoError(t, q.Send(context.Background(), []byte(`{"job_id":"j"}`)))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, queueURL, aws.ToString(fake.sent[0].QueueUrl))
	assert.Equal(t, `{"job_id":"j"}`, aws.ToString(fake.sent[0].MessageBody))

	fake.err = errors.New("throttled")
	assert.Error(t, q.Send(context.Background(), []byte(`{}`)))
}

func TestSQSQueue_Receive(t *testing.T) {
	fake := &fakeSQS{
		messages: []types.Message{
			{
				MessageId:     aws.String("m-1"),
				ReceiptHandle: aws.String("r-1"),
				Body:          aws.String(`{"job_id":"a"}`),
				Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
			},
			{
				MessageId:     aws.String("m-2"),
				ReceiptHandle: aws.String("r-2"),
				Body:          aws.String(`{"job_id":"b"}`),
				Attributes:    map[string]string{"ApproximateReceiveCount": "3"},
			},
		},
	}
	q := NewSQSQueue(fake, queueURL, logger.Discard())

	batch, err := q.Receive(context.Background(), 25, 1500*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, int32(10), fake.received.MaxNumberOfMessages)
	assert.Equal(t, int32(2), fake.received.WaitTimeSeconds)

	require.Len(t, batch, 2)
	assert.Equal(t, "m-1", batch[0].ID)
	assert.False(t, batch[0].Redelivered)
	assert.True(t, batch[1].Redelivered)
	assert.Equal(t, 1, batch[0].Attempt)
	assert.Equal(t, 3, batch[1].Attempt)
	assert.Equal(t, []byte(`{"job_id":"b"}`), batch[1].Body)
}

func TestSQSQueue_Settle(t *testing.T) {
	fake := &fakeSQS{}
	q := NewSQSQueue(fake, queueURL, logger.Discard())
	ctx := context.Background()

	require.NoError(t, q.Ack(ctx, Delivery{ID: "m-1", handle: "r-1"}))
	require.NoError(t, q.Discard(ctx, Delivery{ID: "m-2", handle: "r-2"}))
	require.NoError(t, q.Retry(ctx, Delivery{ID: "m-3", handle: "r-3"}))

	assert.Equal(t, []string{"r-1", "r-2"}, fake.deleted)
	assert.Equal(t, map[string]int32{"r-3": 0}, fake.visibility)

	assert.Error(t, q.Ack(ctx, Delivery{ID: "m-4"}))
}

func TestLongPollSeconds(t *testing.T) {
	assert.Equal(t, int32(0), longPollSeconds(0))
	assert.Equal(t, int32(1), longPollSeconds(200*time.Millisecond))
	assert.Equal(t, int32(5), longPollSeconds(5*time.Second))
	assert.Equal(t, int32(20), longPollSeconds(time.Minute))
}
