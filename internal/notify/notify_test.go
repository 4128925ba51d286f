package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/async-job-service/internal/storage"
	"github.com/cuongbtq/async-job-service/shared/logger"
)

var testTopics = Topics{Success: "job.completed", Failure: "job.failed"}

func TestTopic(t *testing.T) {
	assert.Equal(t, "Async Job Completed", TopicSuccess.Subject())
	assert.Equal(t, "Async Job Failed", TopicFailure.Subject())

	assert.Equal(t, TopicSuccess, TopicFor(storage.StatusCompleted))
	assert.Equal(t, TopicFailure, TopicFor(storage.StatusFailed))

	id, err := testTopics.ID(TopicFailure)
	require.NoError(t, err)
	assert.Equal(t, "job.failed", id)

	_, err = testTopics.ID(Topic("audit"))
	assert.Error(t, err)
}

func TestNotification_Encode(t *testing.T) {
	t.Run("success has no reason", func(t *testing.T) {
		body, err := (&Notification{JobID: "j", Action: "generate_invoice", Status: storage.StatusCompleted}).Encode()
		require.NoError(t, err)
		assert.JSONEq(t, `{"job_id":"j","action":"generate_invoice","status":"completed"}`, string(body))
	})

	t.Run("failure carries reason", func(t *testing.T) {
		body, err := (&Notification{
			JobID:  "j",
			Action: "make_coffee",
			Status: storage.StatusFailed,
			Reason: "Unsupported action 'make_coffee'",
		}).Encode()
		require.NoError(t, err)
		assert.JSONEq(t, `{"job_id":"j","action":"make_coffee","status":"failed","reason":"Unsupported action 'make_coffee'"}`, string(body))
	})

	t.Run("absent action is null", func(t *testing.T) {
		body, err := (&Notification{
			JobID:  "j",
			Status: storage.StatusFailed,
			Reason: "Unsupported action 'null'",
		}).Encode()
		require.NoError(t, err)
		assert.JSONEq(t, `{"job_id":"j","action":null,"status":"failed","reason":"Unsupported action 'null'"}`, string(body))
	})
}

type recordedPublish struct {
	exchange, routingKey string
	body                 []byte
}

type fakeExchange struct {
	published []recordedPublish
	err       error
}

func (f *fakeExchange) PublishTo(_ context.Context, exchange, routingKey string, body []byte, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, recordedPublish{exchange, routingKey, body})
	return nil
}

func TestRabbitMQNotifier(t *testing.T) {
	fake := &fakeExchange{}
	n := NewRabbitMQNotifier(fake, "job_notifications", testTopics, logger.Discard())

	err := n.Publish(context.Background(), TopicSuccess, &Notification{JobID: "j", Status: storage.StatusCompleted})
	require.NoError(t, err)

	require.Len(t, fake.published, 1)
	assert.Equal(t, "job_notifications", fake.published[0].exchange)
	assert.Equal(t, "job.completed", fake.published[0].routingKey)
	assert.JSONEq(t, `{"job_id":"j","action":null,"status":"completed"}`, string(fake.published[0].body))

	fake.err = errors.New("channel closed")
	err = n.Publish(context.Background(), TopicFailure, &Notification{JobID: "j", Status: storage.StatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish failure notification")
}

func TestRedisNotifier(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "job.failed")
	t.Cleanup(func() { sub.Close() })

	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := NewRedisNotifier(rdb, testTopics, logger.Discard())
	err = n.Publish(ctx, TopicFailure, &Notification{
		JobID:  "j",
		Action: "bogus",
		Status: storage.StatusFailed,
		Reason: "Unsupported action 'bogus'",
	})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "job.failed", msg.Channel)
		assert.JSONEq(t, `{"job_id":"j","action":"bogus","status":"failed","reason":"Unsupported action 'bogus'"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received")
	}
}

func TestRedisNotifier_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	n := NewRedisNotifier(rdb, testTopics, logger.Discard())
	err := n.Publish(context.Background(), TopicSuccess, &Notification{JobID: "j"})
	assert.Error(t, err)
}

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func TestSNSNotifier(t *testing.T) {
	fake := &fakeSNS{}
	topics := Topics{
		Success: "arn:aws:sns:us-east-1:000000000000:job-success",
		Failure: "arn:aws:sns:us-east-1:000000000000:job-failure",
	}
	n := NewSNSNotifier(fake, topics, logger.Discard())
	ctx := context.Background()

	require.NoError(t, n.Publish(ctx, TopicSuccess, &Notification{JobID: "a", Action: "generate_invoice", Status: storage.StatusCompleted}))
	require.NoError(t, n.Publish(ctx, TopicFailure, &Notification{JobID: "b", Action: "x", Status: storage.StatusFailed, Reason: "Unsupported action 'x'"}))

	require.Len(t, fake.inputs, 2)
	assert.Equal(t, topics.Success, aws.ToString(fake.inputs[0].TopicArn))
	assert.Equal(t, "Async Job Completed", aws.ToString(fake.inputs[0].Subject))
	assert.Equal(t, topics.Failure, aws.ToString(fake.inputs[1].TopicArn))
	assert.Equal(t, "Async Job Failed", aws.ToString(fake.inputs[1].Subject))
	assert.JSONEq(t, `{"job_id":"b","action":"x","status":"failed","reason":"Unsupported action 'x'"}`, aws.ToString(fake.inputs[1].Message))

	fake.err = errors.New("AuthorizationError")
	assert.Error(t, n.Publish(ctx, TopicSuccess, &Notification{JobID: "c"}))
}
