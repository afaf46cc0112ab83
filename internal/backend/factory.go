package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kopilka/internal/amqp"
	"kopilka/internal/ports"
	"kopilka/internal/storage"
	"kopilka/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the configured store and, when a broker URL is set,
// connects the AMQP client. A broker that cannot be reached is logged and
// skipped; the store alone is enough to serve requests.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store ports.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.createSQLiteStore(config)
	case MemoryBackend:
		store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Store: store}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without broker", "error", err)
		} else {
			result.Broker = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		if result.Broker != nil {
			if err := result.Broker.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close broker: %w", err))
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		return errors.Join(errs...)
	}

	return result, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (ports.Store, error) {
	if !config.SkipMigrations {
		if err := storage.RunMigrations(config.SQLiteDBPath); err != nil {
			return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
		}
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"migrations", !config.SkipMigrations)

	return repo, nil
}
