package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"txview/internal/core"
	"txview/internal/diagnostics"
	"txview/internal/log"
	"txview/internal/store"

	_ "modernc.org/sqlite"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
)

var (
	_ diagnostics.Sink   = (*SQLiteRepository)(nil)
	_ diagnostics.Reader = (*SQLiteRepository)(nil)
)

// SQLiteRepository is the diagnostics journal.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Record implements diagnostics.Sink
func (r *SQLiteRepository) Record(ctx context.Context, e diagnostics.Event) error {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	row, err := r.queries.CreateDiagnostic(ctx, CreateDiagnosticParams{
		Kind:          string(e.Kind),
		Operation:     string(e.Operation),
		Cause:         e.Cause,
		StatusCode:    int64(e.StatusCode),
		TransactionID: e.TransactionID.String(),
		SearchTerm:    e.SearchTerm,
		RequestID:     e.RequestID,
		OccurredAt:    at.UTC(),
	})
	if err != nil {
		return fmt.Errorf("create diagnostic: %w", err)
	}

	r.logger.DebugContext(ctx, "Diagnostic saved to SQLite",
		"id", row.ID,
		log.FieldOperation, row.Operation,
		log.FieldStatusCode, row.StatusCode)
	return nil
}

// Recent implements diagnostics.Reader. A non-positive limit means the default.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]diagnostics.Event, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	rows, err := r.queries.ListRecentDiagnostics(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent diagnostics: %w", err)
	}

	events := make([]diagnostics.Event, len(rows))
	for i, row := range rows {
		events[i] = diagnostics.Event{
			Kind:          diagnostics.Kind(row.Kind),
			Operation:     store.Operation(row.Operation),
			Cause:         row.Cause,
			StatusCode:    int(row.StatusCode),
			TransactionID: core.ID(row.TransactionID),
			SearchTerm:    row.SearchTerm,
			RequestID:     row.RequestID,
			At:            row.OccurredAt.UTC(),
		}
	}
	return events, nil
}

// CountByOperation returns the number of journaled events per operation.
func (r *SQLiteRepository) CountByOperation(ctx context.Context) (map[store.Operation]int64, error) {
	rows, err := r.queries.CountDiagnosticsByOperation(ctx)
	if err != nil {
		return nil, fmt.Errorf("count diagnostics: %w", err)
	}
	out := make(map[store.Operation]int64, len(rows))
	for _, row := range rows {
		out[store.Operation(row.Operation)] = row.Total
	}
	return out, nil
}

// Prune drops events older than before and reports how many went.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	n, err := r.queries.DeleteDiagnosticsBefore(ctx, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune diagnostics: %w", err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "Pruned diagnostics journal", log.FieldCount, n)
	}
	return n, nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
