// Package backend builds the status store, job queue and notifier selected
// in the configuration and owns the clients behind them.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	goredis "github.com/redis/go-redis/v9"

	"github.com/cuongbtq/async-job-service/internal/config"
	"github.com/cuongbtq/async-job-service/internal/notify"
	"github.com/cuongbtq/async-job-service/internal/queue"
	"github.com/cuongbtq/async-job-service/internal/storage"
	"github.com/cuongbtq/async-job-service/shared/awsclient"
	"github.com/cuongbtq/async-job-service/shared/postgresql"
	"github.com/cuongbtq/async-job-service/shared/rabbitmq"
	"github.com/cuongbtq/async-job-service/shared/redis"
)

// Backend opens clients on demand and closes them together
type Backend struct {
	cfg    *config.Config
	logger *slog.Logger

	db     *postgresql.Client
	rabbit *rabbitmq.Client
	rdb    *goredis.Client
	awsCfg *aws.Config

	closers []func() error
}

// New prepares a backend; nothing is connected until a component is requested
func New(cfg *config.Config, logger *slog.Logger) *Backend {
	return &Backend{
		cfg:    cfg,
		logger: logger,
	}
}

// Store opens the configured status store
func (b *Backend) Store(ctx context.Context) (storage.Store, error) {
	switch b.cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := b.postgres(ctx)
		if err != nil {
			return nil, err
		}

		store := storage.NewPostgresStore(db.GetDB(), b.cfg.Store.Table, b.logger)
		if b.cfg.Database.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil

	case config.StoreDriverDynamoDB:
		awsCfg, err := b.aws(ctx)
		if err != nil {
			return nil, err
		}
		return storage.NewDynamoDBStore(dynamodb.NewFromConfig(awsCfg), b.cfg.Store.Table, b.logger), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", b.cfg.Store.Driver)
	}
}

// Queue opens the configured job queue. consumerTag identifies this
// process to RabbitMQ and is ignored by SQS.
func (b *Backend) Queue(ctx context.Context, consumerTag string) (queue.Queue, error) {
	switch b.cfg.Queue.Driver {
	case config.QueueDriverRabbitMQ:
		client, err := b.rabbitMQ(ctx)
		if err != nil {
			return nil, err
		}
		return queue.NewRabbitMQQueue(client, consumerTag, b.logger), nil

	case config.QueueDriverSQS:
		awsCfg, err := b.aws(ctx)
		if err != nil {
			return nil, err
		}
		return queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), b.cfg.Queue.Name, b.logger), nil

	default:
		return nil, fmt.Errorf("unknown queue driver %q", b.cfg.Queue.Driver)
	}
}

// Notifier opens the configured notification publisher
func (b *Backend) Notifier(ctx context.Context) (notify.Publisher, error) {
	topics := notify.Topics{
		Success: b.cfg.Notifications.SuccessTopic,
		Failure: b.cfg.Notifications.FailureTopic,
	}

	switch b.cfg.Notifications.Driver {
	case config.NotifyDriverRabbitMQ:
		client, err := b.rabbitMQ(ctx)
		if err != nil {
			return nil, err
		}
		if client.NotificationExchange() == "" {
			return nil, errors.New("rabbitmq client was opened without the notification exchange")
		}
		return notify.NewRabbitMQNotifier(client, client.NotificationExchange(), topics, b.logger), nil

	case config.NotifyDriverRedis:
		rdb, err := b.redis(ctx)
		if err != nil {
			return nil, err
		}
		return notify.NewRedisNotifier(rdb, topics, b.logger), nil

	case config.NotifyDriverSNS:
		awsCfg, err := b.aws(ctx)
		if err != nil {
			return nil, err
		}
		return notify.NewSNSNotifier(sns.NewFromConfig(awsCfg), topics, b.logger), nil

	default:
		return nil, fmt.Errorf("unknown notifications driver %q", b.cfg.Notifications.Driver)
	}
}

// HealthCheck verifies the connections opened so far
func (b *Backend) HealthCheck(ctx context.Context) error {
	if b.db != nil {
		if err := b.db.HealthCheck(ctx); err != nil {
			return err
		}
	}

	if b.rabbit != nil && !b.rabbit.IsConnected() {
		return rabbitmq.ErrNotConnected
	}

	if b.rdb != nil {
		if err := b.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis health check failed: %w", err)
		}
	}

	return nil
}

// Close closes every opened client, most recent first
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

func (b *Backend) postgres(ctx context.Context) (*postgresql.Client, error) {
	if b.db != nil {
		return b.db, nil
	}

	client, err := postgresql.NewClient(ctx, PostgresConfig(&b.cfg.Database), b.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	b.db = client
	b.closers = append(b.closers, client.Close)
	return client, nil
}

// rabbitMQ opens a single client shared by the queue and the notifier. The
// job queue and the notification exchange are declared only for the
// drivers that use them.
func (b *Backend) rabbitMQ(ctx context.Context) (*rabbitmq.Client, error) {
	if b.rabbit != nil {
		return b.rabbit, nil
	}

	rabbitCfg := RabbitMQConfig(&b.cfg.RabbitMQ, b.cfg.Queue.Name)
	if b.cfg.Queue.Driver != config.QueueDriverRabbitMQ {
		rabbitCfg.QueueName = ""
	}
	if b.cfg.Notifications.Driver != config.NotifyDriverRabbitMQ {
		rabbitCfg.NotificationExchange = ""
	}

	client, err := rabbitmq.NewClient(ctx, rabbitCfg, b.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	b.rabbit = client
	b.closers = append(b.closers, client.Close)
	return client, nil
}

func (b *Backend) redis(ctx context.Context) (*goredis.Client, error) {
	if b.rdb != nil {
		return b.rdb, nil
	}

	rdb, err := redis.NewClient(ctx, &redis.Config{
		Addr:     b.cfg.Redis.Addr,
		Password: b.cfg.Redis.Password,
		DB:       b.cfg.Redis.DB,
	}, b.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	b.rdb = rdb
	b.closers = append(b.closers, rdb.Close)
	return rdb, nil
}

func (b *Backend) aws(ctx context.Context) (aws.Config, error) {
	if b.awsCfg != nil {
		return *b.awsCfg, nil
	}

	awsCfg, err := awsclient.Load(ctx, &awsclient.Config{
		Region:   b.cfg.AWS.Region,
		Endpoint: b.cfg.AWS.Endpoint,
	})
	if err != nil {
		return aws.Config{}, err
	}

	b.awsCfg = &awsCfg
	return awsCfg, nil
}

// PostgresConfig maps the database section onto the client config
func PostgresConfig(cfg *config.DatabaseConfig) *postgresql.Config {
	return &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
}

// RabbitMQConfig maps the rabbitmq section onto the client config
func RabbitMQConfig(cfg *config.RabbitMQConfig, queueName string) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:                        cfg.Host,
		Port:                        cfg.Port,
		User:                        cfg.User,
		Password:                    cfg.Password,
		VHost:                       cfg.VHost,
		ExchangeName:                cfg.Exchange.Name,
		ExchangeType:                cfg.Exchange.Type,
		ExchangeDurable:             cfg.Exchange.Durable,
		ExchangeAutoDelete:          cfg.Exchange.AutoDelete,
		QueueName:                   queueName,
		QueueDurable:                cfg.Queue.Durable,
		QueueAutoDelete:             cfg.Queue.AutoDelete,
		QueueExclusive:              cfg.Queue.Exclusive,
		DeadLetterExchange:          cfg.Queue.DeadLetterExchange,
		RoutingKey:                  cfg.RoutingKey,
		NotificationExchange:        cfg.NotificationExchange.Name,
		NotificationExchangeType:    cfg.NotificationExchange.Type,
		NotificationExchangeDurable: cfg.NotificationExchange.Durable,
		RetryAttempts:               cfg.Connection.RetryAttempts,
		RetryInterval:               cfg.Connection.RetryInterval,
		Heartbeat:                   cfg.Connection.Heartbeat,
		ConnectionTimeout:           cfg.Connection.ConnectionTimeout,
		PublishConfirm:              cfg.Publish.Confirm,
		ConfirmTimeout:              cfg.Publish.ConfirmTimeout,
		PrefetchCount:               cfg.Consumer.PrefetchCount,
	}
}
