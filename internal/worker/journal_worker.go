// Package worker runs background upkeep for the diagnostics journal.
package worker

import (
	"context"
	"fmt"
	"time"

	"txview/internal/amqp"
	"txview/internal/diagnostics"
	"txview/internal/log"
	"txview/internal/store"
)

// Journal is the part of the diagnostics journal the worker maintains.
type Journal interface {
	diagnostics.Sink
	Prune(ctx context.Context, before time.Time) (int64, error)
	CountByOperation(ctx context.Context) (map[store.Operation]int64, error)
}

// JournalWorker mirrors broker messages into the journal and prunes events
// older than the retention window.
type JournalWorker struct {
	journal   Journal
	retention time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// NewJournalWorker returns a worker for journal. A retention of zero keeps
// events forever.
func NewJournalWorker(journal Journal, retention time.Duration, logger *log.Logger) *JournalWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &JournalWorker{
		journal:   journal,
		retention: retention,
		logger:    logger.WithComponent(log.ComponentStorage),
		now:       time.Now,
	}
}

// HandleDiagnosticMessage records a message consumed from the broker.
func (w *JournalWorker) HandleDiagnosticMessage(ctx context.Context, msg *amqp.DiagnosticMessage) error {
	e := msg.Event()
	if err := w.journal.Record(ctx, e); err != nil {
		return fmt.Errorf("record diagnostic: %w", err)
	}
	w.logger.DebugContext(ctx, "Mirrored diagnostic message",
		log.FieldOperation, string(e.Operation),
		log.FieldRequestID, e.RequestID)
	return nil
}

// StartupCheck logs what the journal holds and prunes once.
func (w *JournalWorker) StartupCheck(ctx context.Context) error {
	counts, err := w.journal.CountByOperation(ctx)
	if err != nil {
		return fmt.Errorf("count journaled failures: %w", err)
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	w.logger.InfoContext(ctx, "Diagnostics journal opened",
		log.FieldCount, total,
		"list", counts[store.OpList],
		"create", counts[store.OpCreate],
		"delete", counts[store.OpDelete])

	_, err = w.Prune(ctx)
	return err
}

// Prune removes events older than the retention window.
func (w *JournalWorker) Prune(ctx context.Context) (int64, error) {
	if w.retention <= 0 {
		return 0, nil
	}
	cutoff := w.now().Add(-w.retention)
	n, err := w.journal.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "Pruned diagnostics journal",
			log.FieldCount, n,
			"cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// Run prunes every interval until ctx ends.
func (w *JournalWorker) Run(ctx context.Context, interval time.Duration) {
	if w.retention <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Prune(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Periodic prune failed", log.FieldError, err)
			}
		}
	}
}
