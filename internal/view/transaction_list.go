// Package view holds the state behind one transaction list screen: the
// collection last read from the store, the active search term and the
// filtered subset derived from both.
package view

import (
	"context"
	"errors"
	"sync"

	"txview/internal/core"
	"txview/internal/diagnostics"
	"txview/internal/log"
	"txview/internal/store"
)

// ErrSuperseded is returned by Load when a newer Load started before this
// one finished. The superseded result is discarded.
var ErrSuperseded = errors.New("load superseded by a newer load")

// ErrClosed is returned once the list has been closed.
var ErrClosed = errors.New("transaction list closed")

type TransactionList struct {
	store    store.Store
	reporter diagnostics.Reporter
	logger   *log.Logger

	mu           sync.Mutex
	searchTerm   string
	transactions []core.Transaction
	filtered     []core.Transaction
	loaded       bool
	closed       bool

	loadSeq    uint64
	cancelLoad context.CancelFunc
}

type Option func(*TransactionList)

func WithReporter(r diagnostics.Reporter) Option {
	return func(l *TransactionList) {
		if r != nil {
			l.reporter = r
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(l *TransactionList) {
		if logger != nil {
			l.logger = logger.WithComponent(log.ComponentView)
		}
	}
}

// New returns an empty list backed by s.
func New(s store.Store, opts ...Option) *TransactionList {
	l := &TransactionList{
		store:        s,
		reporter:     diagnostics.Nop,
		logger:       log.Discard(),
		transactions: []core.Transaction{},
		filtered:     []core.Transaction{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load sets the search term and re-reads the collection. A Load in flight
// on the same list is cancelled. On failure both the collection and the
// filtered view stay as they were.
func (l *TransactionList) Load(ctx context.Context, searchTerm string) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.cancelLoad != nil {
		l.cancelLoad()
	}
	l.loadSeq++
	seq := l.loadSeq
	l.searchTerm = searchTerm
	ctx, cancel := context.WithCancel(ctx)
	l.cancelLoad = cancel
	l.mu.Unlock()
	defer cancel()

	data, err := l.store.List(ctx)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if seq != l.loadSeq {
		l.mu.Unlock()
		l.logger.DebugContext(ctx, "Discarding superseded load", log.FieldSearchTerm, searchTerm)
		return ErrSuperseded
	}
	l.cancelLoad = nil
	if err != nil {
		l.mu.Unlock()
		// Sinks may block; the list stays usable meanwhile.
		e := diagnostics.FromError(store.OpList, err)
		e.SearchTerm = searchTerm
		l.reporter.Report(ctx, e)
		return err
	}
	defer l.mu.Unlock()

	l.transactions = data
	l.filtered = core.Filter(data, searchTerm)
	l.loaded = true
	l.logger.DebugContext(ctx, "Transactions loaded",
		log.FieldSearchTerm, searchTerm,
		log.FieldCount, len(l.transactions),
		log.FieldFiltered, len(l.filtered))
	return nil
}

// AddTransaction creates t in the store and appends the stored
// representation locally. No reload follows.
func (l *TransactionList) AddTransaction(ctx context.Context, t core.NewTransaction) (core.Transaction, error) {
	if l.isClosed() {
		return core.Transaction{}, ErrClosed
	}
	created, err := l.store.Create(ctx, t)
	if err != nil {
		l.reporter.Report(ctx, diagnostics.FromError(store.OpCreate, err))
		return core.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]core.Transaction, len(l.transactions), len(l.transactions)+1)
	copy(next, l.transactions)
	l.transactions = append(next, created)
	l.filtered = core.Filter(l.transactions, l.searchTerm)

	l.logger.InfoContext(ctx, "Transaction added",
		log.NewFields().WithTransaction(created.ID.String(), created.Date, created.Description,
			created.Category, created.Amount.String()).ToSlice()...)
	return created, nil
}

// DeleteTransaction deletes id in the store and drops it locally.
func (l *TransactionList) DeleteTransaction(ctx context.Context, id core.ID) error {
	if l.isClosed() {
		return ErrClosed
	}
	if err := l.store.Delete(ctx, id); err != nil {
		e := diagnostics.FromError(store.OpDelete, err)
		e.TransactionID = id
		l.reporter.Report(ctx, e)
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.transactions = core.Without(l.transactions, id)
	l.filtered = core.Filter(l.transactions, l.searchTerm)

	l.logger.InfoContext(ctx, "Transaction deleted", log.FieldTransactionID, id.String())
	return nil
}

// Snapshot is a copy of the list state at one instant.
type Snapshot struct {
	SearchTerm   string
	Transactions []core.Transaction
	Filtered     []core.Transaction
	Loaded       bool
}

func (l *TransactionList) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		SearchTerm:   l.searchTerm,
		Transactions: append([]core.Transaction{}, l.transactions...),
		Filtered:     append([]core.Transaction{}, l.filtered...),
		Loaded:       l.loaded,
	}
}

func (l *TransactionList) SearchTerm() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.searchTerm
}

// Close cancels any Load in flight. Later calls fail with ErrClosed.
func (l *TransactionList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.cancelLoad != nil {
		l.cancelLoad()
		l.cancelLoad = nil
	}
}

func (l *TransactionList) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
