package notify

import (
	"context"
	"fmt"
	"log/slog"
)

type exchangePublisher interface {
	PublishTo(ctx context.Context, exchange, routingKey string, body []byte, contentType string) error
}

// RabbitMQNotifier publishes on a topic exchange with the topic id as routing key
type RabbitMQNotifier struct {
	client   exchangePublisher
	exchange string
	topics   Topics
	logger   *slog.Logger
}

func NewRabbitMQNotifier(client exchangePublisher, exchange string, topics Topics, logger *slog.Logger) *RabbitMQNotifier {
	return &RabbitMQNotifier{
		client:   client,
		exchange: exchange,
		topics:   topics,
		logger:   logger,
	}
}

func (n *RabbitMQNotifier) Publish(ctx context.Context, topic Topic, notification *Notification) error {
	routingKey, err := n.topics.ID(topic)
	if err != nil {
		return err
	}

	body, err := notification.Encode()
	if err != nil {
		return err
	}

	if err := n.client.PublishTo(ctx, n.exchange, routingKey, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", topic, err)
	}

	n.logger.Debug("Notification published",
		slog.String("job_id", notification.JobID),
		slog.String("exchange", n.exchange),
		slog.String("routing_key", routingKey),
	)

	return nil
}
