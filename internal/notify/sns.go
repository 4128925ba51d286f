package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes to the SNS topic ARNs bound to each topic
type SNSNotifier struct {
	client snsAPI
	topics Topics
	logger *slog.Logger
}

func NewSNSNotifier(client snsAPI, topics Topics, logger *slog.Logger) *SNSNotifier {
	return &SNSNotifier{
		client: client,
		topics: topics,
		logger: logger,
	}
}

func (n *SNSNotifier) Publish(ctx context.Context, topic Topic, notification *Notification) error {
	arn, err := n.topics.ID(topic)
	if err != nil {
		return err
	}

	body, err := notification.Encode()
	if err != nil {
		return err
	}

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(arn),
		Message:  aws.String(string(body)),
		Subject:  aws.String(topic.Subject()),
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", topic, err)
	}

	n.logger.Debug("Notification published",
		slog.String("job_id", notification.JobID),
		slog.String("topic_arn", arn),
		slog.String("message_id", aws.ToString(out.MessageId)),
	)

	return nil
}
