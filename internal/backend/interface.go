package backend

import (
	"context"
	"time"

	"txview/internal/diagnostics"
	"txview/internal/storage"
	"txview/internal/store"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult is everything a command needs to drive transaction views.
// Journal is nil when the diagnostics journal is disabled.
type BackendResult struct {
	Store      store.Store
	Dispatcher *diagnostics.Dispatcher
	Journal    *storage.SQLiteRepository
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// REST specific
	StoreBaseURL string
	StoreTimeout time.Duration

	// Memory specific
	DataDirectory string

	// Diagnostics sinks, each optional
	DiagnosticsDBPath string
	AMQPURL           string
	AMQPExchange      string
	AMQPQueue         string
}

// BackendType represents the type of transaction store
type BackendType string

const (
	RESTBackend   BackendType = "rest"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case RESTBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
