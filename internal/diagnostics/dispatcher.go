package diagnostics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"txview/internal/log"
	"txview/internal/store"
)

const defaultSinkTimeout = 5 * time.Second

// Dispatcher logs every event and fans it out to the configured sinks.
type Dispatcher struct {
	logger  *log.Logger
	sinks   []namedSink
	timeout time.Duration
	reqID   func(context.Context) string

	mu       sync.RWMutex
	counters map[store.Operation]*atomic.Int64
	sinkErrs atomic.Int64
}

type namedSink struct {
	name string
	sink Sink
}

type DispatcherOption func(*Dispatcher)

// WithSink adds a sink under name. Nil sinks are ignored.
func WithSink(name string, s Sink) DispatcherOption {
	return func(d *Dispatcher) {
		if s != nil {
			d.sinks = append(d.sinks, namedSink{name: name, sink: s})
		}
	}
}

func WithSinkTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithRequestIDFunc sets how events pick up the request id from ctx.
func WithRequestIDFunc(fn func(context.Context) string) DispatcherOption {
	return func(d *Dispatcher) {
		d.reqID = fn
	}
}

func NewDispatcher(logger *log.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = log.Discard()
	}
	d := &Dispatcher{
		logger:   logger.WithComponent(log.ComponentDiagnostics),
		timeout:  defaultSinkTimeout,
		counters: make(map[store.Operation]*atomic.Int64),
	}
	for _, op := range []store.Operation{store.OpList, store.OpCreate, store.OpDelete} {
		d.counters[op] = new(atomic.Int64)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Report implements Reporter. Sink failures are logged, never returned.
func (d *Dispatcher) Report(ctx context.Context, e Event) {
	if e.Kind == "" {
		e.Kind = KindRequestFailed
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if e.RequestID == "" && d.reqID != nil {
		e.RequestID = d.reqID(ctx)
	}
	d.counter(e.Operation).Add(1)

	d.logger.WarnContext(ctx, "Store request failed",
		"kind", string(e.Kind),
		log.FieldOperation, string(e.Operation),
		log.FieldStatusCode, e.StatusCode,
		log.FieldTransactionID, e.TransactionID.String(),
		log.FieldSearchTerm, e.SearchTerm,
		log.FieldRequestID, e.RequestID,
		log.FieldErrorType, log.ErrorTypeRequestFailed,
		log.FieldError, e.Cause)

	if len(d.sinks) == 0 {
		return
	}

	// Sinks outlive request cancellation but not the timeout.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	var g errgroup.Group
	for _, ns := range d.sinks {
		g.Go(func() error {
			if err := ns.sink.Record(sctx, e); err != nil {
				d.sinkErrs.Add(1)
				d.logger.ErrorContext(ctx, "Failed to record diagnostic",
					"sink", ns.name,
					log.FieldOperation, log.OpRecord,
					log.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) counter(op store.Operation) *atomic.Int64 {
	d.mu.RLock()
	c, ok := d.counters[op]
	d.mu.RUnlock()
	if ok {
		return c
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok = d.counters[op]; !ok {
		c = new(atomic.Int64)
		d.counters[op] = c
	}
	return c
}

// Stats is a point-in-time copy of the dispatcher counters.
type Stats struct {
	Failures   map[store.Operation]int64
	SinkErrors int64
	Sinks      []string
}

func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := Stats{
		Failures:   make(map[store.Operation]int64, len(d.counters)),
		SinkErrors: d.sinkErrs.Load(),
	}
	for op, c := range d.counters {
		s.Failures[op] = c.Load()
	}
	for _, ns := range d.sinks {
		s.Sinks = append(s.Sinks, ns.name)
	}
	return s
}
