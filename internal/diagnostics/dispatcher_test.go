package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txview/internal/log"
	"txview/internal/store"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	delay  time.Duration
}

func (s *recordingSink) Record(ctx context.Context, e Event) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) recorded() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func bufferLogger(buf *bytes.Buffer) *log.Logger {
	return log.New(log.Config{Level: slog.LevelDebug, Format: "text", Output: buf})
}

func TestFromErrorUsesRequestError(t *testing.T) {
	err := &store.RequestError{Op: store.OpDelete, Method: http.MethodDelete, URL: "http://x/transactions/2", StatusCode: 404}
	e := FromError(store.OpDelete, err)

	assert.Equal(t, KindRequestFailed, e.Kind)
	assert.Equal(t, store.OpDelete, e.Operation)
	assert.Equal(t, 404, e.StatusCode)
	assert.Contains(t, e.Cause, "404")
	assert.False(t, e.At.IsZero())
}

func TestFromErrorPlainError(t *testing.T) {
	e := FromError(store.OpList, errors.New("boom"))
	assert.Equal(t, store.OpList, e.Operation)
	assert.Equal(t, 0, e.StatusCode)
	assert.Equal(t, "boom", e.Cause)
}

func TestDispatcherLogsAndFansOut(t *testing.T) {
	var buf bytes.Buffer
	a, b := &recordingSink{}, &recordingSink{}
	d := NewDispatcher(bufferLogger(&buf),
		WithSink("journal", a),
		WithSink("amqp", b),
		WithSink("nil", nil),
		WithRequestIDFunc(func(context.Context) string { return "req-1" }))

	d.Report(context.Background(), Event{Operation: store.OpCreate, Cause: "HTTP status 500", StatusCode: 500})

	require.Len(t, a.recorded(), 1)
	require.Len(t, b.recorded(), 1)
	got := a.recorded()[0]
	assert.Equal(t, KindRequestFailed, got.Kind)
	assert.Equal(t, "req-1", got.RequestID)
	assert.False(t, got.At.IsZero())

	out := buf.String()
	assert.Contains(t, out, "Store request failed")
	assert.Contains(t, out, "component=diagnostics")
	assert.Contains(t, out, "operation=create")

	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Failures[store.OpCreate])
	assert.Equal(t, int64(0), stats.Failures[store.OpList])
	assert.Equal(t, []string{"journal", "amqp"}, stats.Sinks)
}

func TestDispatcherSwallowsSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	failing := &recordingSink{err: errors.New("disk full")}
	ok := &recordingSink{}
	d := NewDispatcher(bufferLogger(&buf), WithSink("journal", failing), WithSink("amqp", ok))

	d.Report(context.Background(), FromError(store.OpList, errors.New("dial tcp: refused")))

	assert.Len(t, ok.recorded(), 1)
	assert.Equal(t, int64(1), d.Stats().SinkErrors)
	assert.Contains(t, buf.String(), "disk full")
}

func TestDispatcherSinkTimeout(t *testing.T) {
	slow := &recordingSink{delay: time.Second}
	d := NewDispatcher(nil, WithSink("slow", slow), WithSinkTimeout(20*time.Millisecond))

	start := time.Now()
	d.Report(context.Background(), Event{Operation: store.OpDelete})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int64(1), d.Stats().SinkErrors)
}

func TestDispatcherIgnoresCallerCancellation(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(nil, WithSink("journal", sink))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Report(ctx, Event{Operation: store.OpList})

	assert.Len(t, sink.recorded(), 1)
}

func TestNopReporter(t *testing.T) {
	assert.NotPanics(t, func() { Nop.Report(context.Background(), Event{}) })
}
