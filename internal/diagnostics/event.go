// Package diagnostics carries store failures from the view to operators.
// The web UI never shows them; they end up in logs, the SQLite journal, the
// AMQP exchange and the metrics counters.
package diagnostics

import (
	"context"
	"errors"
	"time"

	"txview/internal/core"
	"txview/internal/store"
)

// Kind classifies an event. There is currently one.
type Kind string

const KindRequestFailed Kind = "request_failed"

// Event describes one failed store call.
type Event struct {
	Kind          Kind            `json:"kind"`
	Operation     store.Operation `json:"operation"`
	Cause         string          `json:"cause"`
	StatusCode    int             `json:"status_code,omitempty"`
	TransactionID core.ID         `json:"transaction_id,omitempty"`
	SearchTerm    string          `json:"search_term,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	At            time.Time       `json:"at"`
}

// Reporter accepts events. Report never fails from the caller's view.
type Reporter interface {
	Report(ctx context.Context, e Event)
}

// Sink persists or forwards an event.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Reader returns the most recent events, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, e Event)

func (f ReporterFunc) Report(ctx context.Context, e Event) { f(ctx, e) }

// Nop drops every event.
var Nop Reporter = ReporterFunc(func(context.Context, Event) {})

// FromError builds a request_failed event for op. Status and cause are taken
// from a *store.RequestError when err carries one.
func FromError(op store.Operation, err error) Event {
	e := Event{
		Kind:      KindRequestFailed,
		Operation: op,
		At:        time.Now().UTC(),
	}
	e.StatusCode = store.StatusCode(err)
	var re *store.RequestError
	if errors.As(err, &re) && re.Op != "" {
		e.Operation = re.Op
	}
	if err != nil {
		e.Cause = err.Error()
	}
	return e
}
