package backend

import (
	"context"
	"errors"
	"fmt"

	"txview/internal/amqp"
	"txview/internal/diagnostics"
	"txview/internal/log"
	"txview/internal/middleware/trace"
	"txview/internal/storage"
	"txview/internal/store"
	"txview/internal/store/memory"
	"txview/internal/store/rest"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend. The journal is required
// once configured; AMQP is best effort and skipped when the broker is down.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	var (
		closers []func() error
		opts    = []diagnostics.DispatcherOption{diagnostics.WithRequestIDFunc(trace.RequestIDFromContext)}
		journal *storage.SQLiteRepository
	)

	if config.DiagnosticsDBPath != "" {
		journal, err = storage.NewSQLiteRepository(config.DiagnosticsDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize diagnostics journal: %w", err)
		}
		closers = append(closers, journal.Close)
		opts = append(opts, diagnostics.WithSink("journal", journal))
		f.logger.InfoContext(ctx, "Initialized diagnostics journal", "db_path", config.DiagnosticsDBPath)
	}

	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without publishing",
				log.FieldError, err)
		} else {
			closers = append(closers, amqpClient.Close)
			opts = append(opts, diagnostics.WithSink("amqp", amqpClient))
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	dispatcher := diagnostics.NewDispatcher(f.logger, opts...)

	return &BackendResult{
		Store:      st,
		Dispatcher: dispatcher,
		Journal:    journal,
		Cleanup: func() error {
			var errs []error
			for i := len(closers) - 1; i >= 0; i-- {
				errs = append(errs, closers[i]())
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createStore(config Config) (store.Store, error) {
	switch config.Type {
	case RESTBackend:
		client, err := rest.New(config.StoreBaseURL, config.StoreTimeout, rest.WithLogger(f.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize REST store: %w", err)
		}
		f.logger.Info("Initialized REST store", "base_url", client.BaseURL(), "timeout", config.StoreTimeout.String())
		return client, nil
	case MemoryBackend:
		st, err := memory.NewFromDir(config.DataDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory store: %w", err)
		}
		f.logger.Info("Initialized memory store", "data_directory", config.DataDirectory)
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
