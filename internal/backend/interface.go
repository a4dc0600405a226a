package backend

import (
	"context"

	"finanzas/internal/amqp"
	"finanzas/internal/events"
	"finanzas/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds what a process needs to serve the ledger: the
// repository, the event publisher and, when events go through RabbitMQ,
// the AMQP client the worker consumes from.
type BackendResult struct {
	Repository *storage.Repository
	Publisher  events.Publisher
	AMQP       *amqp.Client
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Storage StorageType
	Events  EventsType

	SQLiteDBPath string
	DatabaseURL  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	KafkaBrokers []string
	KafkaTopic   string

	// RequireEvents makes a broker connection failure fatal instead of
	// degrading to a no-op publisher.
	RequireEvents bool
}

type StorageType string

const (
	SQLiteStorage   StorageType = "sqlite"
	PostgresStorage StorageType = "postgres"
)

func (t StorageType) String() string {
	return string(t)
}

func (t StorageType) IsValid() bool {
	switch t {
	case SQLiteStorage, PostgresStorage:
		return true
	default:
		return false
	}
}

type EventsType string

const (
	NoEvents    EventsType = "none"
	AMQPEvents  EventsType = "amqp"
	KafkaEvents EventsType = "kafka"
)

func (t EventsType) String() string {
	return string(t)
}

func (t EventsType) IsValid() bool {
	switch t {
	case NoEvents, AMQPEvents, KafkaEvents:
		return true
	default:
		return false
	}
}
