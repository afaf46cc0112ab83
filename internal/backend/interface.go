package backend

import (
	"context"

	"kopilka/internal/amqp"
	"kopilka/internal/ports"
	"kopilka/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the created store, the optional broker client and the
// function releasing both.
type Result struct {
	Store   ports.Store
	Broker  *amqp.Client
	Cleanup CleanupFunc
}

// Publisher returns the broker as a services.Publisher, or a nil interface
// when no broker is configured.
func (r *Result) Publisher() services.Publisher {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	// SkipMigrations leaves schema management to cmd/kopilka-migrate.
	SkipMigrations bool

	// Broker, optional for every backend type
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
