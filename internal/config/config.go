package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// MaxSQSBatchSize is the largest batch SQS hands out per receive
	MaxSQSBatchSize = 10
)

// Driver names accepted in the store, queue and notifications sections.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverDynamoDB = "dynamodb"

	QueueDriverRabbitMQ = "rabbitmq"
	QueueDriverSQS      = "sqs"

	NotifyDriverRabbitMQ = "rabbitmq"
	NotifyDriverRedis    = "redis"
	NotifyDriverSNS      = "sns"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	RabbitMQ      RabbitMQConfig     `yaml:"rabbitmq"`
	Redis         RedisConfig        `yaml:"redis"`
	AWS           AWSConfig          `yaml:"aws"`
	Store         StoreConfig        `yaml:"store"`
	Queue         QueueConfig        `yaml:"queue"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	App           AppConfig          `yaml:"app"`
	Worker        WorkerConfig       `yaml:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	EnsureSchema    bool          `yaml:"ensure_schema"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration.
// The queue name itself lives in QueueConfig.Name.
type RabbitMQConfig struct {
	Host                 string             `yaml:"host"`
	Port                 int                `yaml:"port"`
	User                 string             `yaml:"user"`
	Password             string             `yaml:"password"`
	VHost                string             `yaml:"vhost"`
	Exchange             ExchangeConfig     `yaml:"exchange"`
	Queue                RabbitQueueOptions `yaml:"queue"`
	RoutingKey           string             `yaml:"routing_key"`
	NotificationExchange ExchangeConfig     `yaml:"notification_exchange"`
	Connection           ConnectionConfig   `yaml:"connection"`
	Publish              PublishConfig      `yaml:"publish"`
	Consumer             ConsumerConfig     `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// RabbitQueueOptions holds RabbitMQ queue declaration flags
type RabbitQueueOptions struct {
	Durable            bool   `yaml:"durable"`
	AutoDelete         bool   `yaml:"auto_delete"`
	Exclusive          bool   `yaml:"exclusive"`
	DeadLetterExchange string `yaml:"dead_letter_exchange"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish settings
type PublishConfig struct {
	Confirm        bool          `yaml:"confirm"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	Exclusive     bool `yaml:"exclusive"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AWSConfig holds the region and an optional endpoint override (LocalStack)
type AWSConfig struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// StoreConfig selects the status store backend
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Table  string `yaml:"table"`
}

// QueueConfig selects the job queue backend. Name is the RabbitMQ queue
// name or the SQS queue URL.
type QueueConfig struct {
	Driver string `yaml:"driver"`
	Name   string `yaml:"name"`
}

// NotificationConfig selects the notification backend and the two topics
type NotificationConfig struct {
	Driver       string `yaml:"driver"`
	SuccessTopic string `yaml:"success_topic"`
	FailureTopic string `yaml:"failure_topic"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	TimeFormat   string `yaml:"time_format"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	BatchSize       int           `yaml:"batch_size"`
	BatchWait       time.Duration `yaml:"batch_wait"`
	SimulatedWork   time.Duration `yaml:"simulated_work"`
	MaxRetries      int           `yaml:"max_retries"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	OpsPort         int           `yaml:"ops_port"`
}

// Load reads the configuration file, expands ${VAR} references from the
// environment and parses the result.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverPostgres
	}
	if c.Queue.Driver == "" {
		c.Queue.Driver = QueueDriverRabbitMQ
	}
	if c.Notifications.Driver == "" {
		c.Notifications.Driver = NotifyDriverRabbitMQ
	}
	if c.RabbitMQ.NotificationExchange.Type == "" {
		c.RabbitMQ.NotificationExchange.Type = "topic"
	}
	if c.RabbitMQ.Publish.ConfirmTimeout == 0 {
		c.RabbitMQ.Publish.ConfirmTimeout = 5 * time.Second
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 1
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = MaxSQSBatchSize
	}
	if c.Worker.BatchWait == 0 {
		c.Worker.BatchWait = time.Second
	}
	if c.Worker.SimulatedWork == 0 {
		c.Worker.SimulatedWork = 3 * time.Second
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 3
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
}

// Validate checks the sections both services share: the status store and
// the job queue.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	return c.validateQueue()
}

// ValidateAPIConfig checks the configuration of the api-service
func (c *Config) ValidateAPIConfig() error {
	if err := validatePort("server", c.Server.Port); err != nil {
		return err
	}
	return c.Validate()
}

// ValidateWorkerConfig checks the configuration of the worker-service
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := c.validateNotifications(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be greater than 0")
	}

	if c.Worker.BatchSize <= 0 {
		return errors.New("worker batch_size must be greater than 0")
	}

	if c.Queue.Driver == QueueDriverSQS && c.Worker.BatchSize > MaxSQSBatchSize {
		return fmt.Errorf("worker batch_size must not exceed %d with the sqs driver", MaxSQSBatchSize)
	}

	if c.Worker.BatchWait <= 0 {
		return errors.New("worker batch_wait must be greater than 0")
	}

	if c.Worker.SimulatedWork < 0 {
		return errors.New("worker simulated_work must not be negative")
	}

	if c.Worker.MaxRetries < 0 {
		return errors.New("worker max_retries must not be negative")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return errors.New("worker shutdown_timeout must be greater than 0")
	}

	if c.Worker.OpsPort != 0 {
		if err := validatePort("worker ops", c.Worker.OpsPort); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Table == "" {
		return errors.New("store table is required")
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if !identifierPattern.MatchString(c.Store.Table) {
			return fmt.Errorf("invalid store table name: %q", c.Store.Table)
		}
		return c.validateDatabase()
	case StoreDriverDynamoDB:
		return c.validateAWS()
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}
}

func (c *Config) validateQueue() error {
	if c.Queue.Name == "" {
		return errors.New("queue name is required")
	}

	switch c.Queue.Driver {
	case QueueDriverRabbitMQ:
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return errors.New("rabbitmq exchange name is required")
		}
		return nil
	case QueueDriverSQS:
		return c.validateAWS()
	default:
		return fmt.Errorf("unknown queue driver: %q", c.Queue.Driver)
	}
}

func (c *Config) validateNotifications() error {
	if c.Notifications.SuccessTopic == "" {
		return errors.New("notifications success_topic is required")
	}

	if c.Notifications.FailureTopic == "" {
		return errors.New("notifications failure_topic is required")
	}

	switch c.Notifications.Driver {
	case NotifyDriverRabbitMQ:
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
		if c.RabbitMQ.NotificationExchange.Name == "" {
			return errors.New("rabbitmq notification_exchange name is required")
		}
		return nil
	case NotifyDriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis addr is required")
		}
		return nil
	case NotifyDriverSNS:
		return c.validateAWS()
	default:
		return fmt.Errorf("unknown notifications driver: %q", c.Notifications.Driver)
	}
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return errors.New("database host is required")
	}

	if err := validatePort("database", c.Database.Port); err != nil {
		return err
	}

	if c.Database.Database == "" {
		return errors.New("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return errors.New("rabbitmq host is required")
	}

	return validatePort("rabbitmq", c.RabbitMQ.Port)
}

func (c *Config) validateAWS() error {
	if c.AWS.Region == "" {
		return errors.New("aws region is required")
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("invalid %s port: %d (must be between %d and %d)", name, port, MinPort, MaxPort)
	}
	return nil
}
