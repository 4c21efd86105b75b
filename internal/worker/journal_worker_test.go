package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txview/internal/amqp"
	"txview/internal/diagnostics"
	"txview/internal/store"
)

type fakeJournal struct {
	mu        sync.Mutex
	recorded  []diagnostics.Event
	cutoffs   []time.Time
	pruneN    int64
	recordErr error
}

func (j *fakeJournal) Record(ctx context.Context, e diagnostics.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.recordErr != nil {
		return j.recordErr
	}
	j.recorded = append(j.recorded, e)
	return nil
}

func (j *fakeJournal) Prune(ctx context.Context, before time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cutoffs = append(j.cutoffs, before)
	return j.pruneN, nil
}

func (j *fakeJournal) CountByOperation(ctx context.Context) (map[store.Operation]int64, error) {
	return map[store.Operation]int64{store.OpList: 2, store.OpDelete: 1}, nil
}

func (j *fakeJournal) pruneCalls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.cutoffs)
}

func TestHandleDiagnosticMessageRecords(t *testing.T) {
	j := &fakeJournal{}
	w := NewJournalWorker(j, 0, nil)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := amqp.NewDiagnosticMessage(diagnostics.Event{
		Kind:          diagnostics.KindRequestFailed,
		Operation:     store.OpDelete,
		Cause:         "404 Not Found",
		StatusCode:    404,
		TransactionID: "7",
		At:            at,
	})

	require.NoError(t, w.HandleDiagnosticMessage(context.Background(), msg))
	require.Len(t, j.recorded, 1)
	assert.Equal(t, store.OpDelete, j.recorded[0].Operation)
	assert.Equal(t, "7", j.recorded[0].TransactionID.String())
	assert.True(t, at.Equal(j.recorded[0].At))
}

func TestHandleDiagnosticMessageError(t *testing.T) {
	j := &fakeJournal{recordErr: errors.New("disk full")}
	w := NewJournalWorker(j, 0, nil)

	err := w.HandleDiagnosticMessage(context.Background(), amqp.NewDiagnosticMessage(diagnostics.Event{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPruneUsesRetentionWindow(t *testing.T) {
	j := &fakeJournal{pruneN: 3}
	w := NewJournalWorker(j, 24*time.Hour, nil)
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	n, err := w.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, j.cutoffs, 1)
	assert.Equal(t, now.Add(-24*time.Hour), j.cutoffs[0])
}

func TestZeroRetentionKeepsEverything(t *testing.T) {
	j := &fakeJournal{}
	w := NewJournalWorker(j, 0, nil)

	n, err := w.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, j.pruneCalls())

	// Run returns immediately without a retention window.
	done := make(chan struct{})
	go func() {
		w.Run(context.Background(), time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return when retention is disabled")
	}
}

func TestStartupCheckPrunesOnce(t *testing.T) {
	j := &fakeJournal{}
	w := NewJournalWorker(j, time.Hour, nil)

	require.NoError(t, w.StartupCheck(context.Background()))
	assert.Equal(t, 1, j.pruneCalls())
}

func TestRunPrunesUntilCancelled(t *testing.T) {
	j := &fakeJournal{}
	w := NewJournalWorker(j, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return j.pruneCalls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
