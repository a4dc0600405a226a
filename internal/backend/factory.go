package backend

import (
	"context"
	"errors"
	"fmt"

	"finanzas/internal/amqp"
	"finanzas/internal/events"
	"finanzas/internal/events/kafka"
	"finanzas/internal/log"
	"finanzas/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.createRepository(ctx, config)
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Repository: repo, Publisher: events.Nop{}}
	if err := f.attachPublisher(result, config); err != nil {
		repo.Close()
		return nil, err
	}

	publisher := result.Publisher
	result.Cleanup = func() error {
		return errors.Join(publisher.Close(), repo.Close())
	}

	f.logger.Info("Initialized backend",
		"storage", config.Storage.String(),
		"events", config.Events.String())
	return result, nil
}

func (f *DefaultFactory) createRepository(ctx context.Context, config Config) (*storage.Repository, error) {
	switch config.Storage {
	case SQLiteStorage:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		return repo, nil
	case PostgresStorage:
		repo, err := storage.NewPostgresRepository(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Storage)
	}
}

// attachPublisher sets the publisher for the configured events backend. An
// unreachable RabbitMQ degrades to the no-op publisher unless
// RequireEvents is set.
func (f *DefaultFactory) attachPublisher(result *BackendResult, config Config) error {
	switch config.Events {
	case AMQPEvents:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			if config.RequireEvents {
				return fmt.Errorf("failed to initialize AMQP client: %w", err)
			}
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
			return nil
		}
		f.logger.Info("Initialized AMQP client",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		result.AMQP = client
		result.Publisher = client
	case KafkaEvents:
		result.Publisher = kafka.NewPublisher(config.KafkaBrokers, config.KafkaTopic)
		f.logger.Info("Initialized Kafka publisher",
			"brokers", config.KafkaBrokers,
			"topic", config.KafkaTopic)
	}
	return nil
}
