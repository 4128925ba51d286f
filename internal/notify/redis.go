package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes on Redis pub/sub channels named by the topic ids
type RedisNotifier struct {
	rdb    *redis.Client
	topics Topics
	logger *slog.Logger
}

func NewRedisNotifier(rdb *redis.Client, topics Topics, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{
		rdb:    rdb,
		topics: topics,
		logger: logger,
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, topic Topic, notification *Notification) error {
	channel, err := n.topics.ID(topic)
	if err != nil {
		return err
	}

	body, err := notification.Encode()
	if err != nil {
		return err
	}

	receivers, err := n.rdb.Publish(ctx, channel, body).Result()
	if err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", topic, err)
	}

	n.logger.Debug("Notification published",
		slog.String("job_id", notification.JobID),
		slog.String("channel", channel),
		slog.Int64("receivers", receivers),
	)

	return nil
}
