// Package memory is an in-process transaction store used for local runs and
// tests. It assigns sequential numeric ids the way json-server does.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"txview/internal/core"
	"txview/internal/store"
)

// SeedFile is the file NewFromDir looks for.
const SeedFile = "transactions.json"

var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	items  []core.Transaction
	nextID int64
}

func New(seed []core.Transaction) *Store {
	s := &Store{nextID: 1}
	for _, t := range seed {
		if t.ID.IsZero() {
			t.ID = core.ID(strconv.FormatInt(s.nextID, 10))
		}
		if n, err := strconv.ParseInt(t.ID.String(), 10, 64); err == nil && n >= s.nextID {
			s.nextID = n + 1
		}
		s.items = append(s.items, t)
	}
	return s
}

// NewFromDir seeds the store from <dir>/transactions.json. The file may hold
// either a bare array or a json-server db object with a "transactions" key.
// A missing file yields an empty store.
func NewFromDir(dir string) (*Store, error) {
	if dir == "" {
		return New(nil), nil
	}
	b, err := os.ReadFile(filepath.Join(dir, SeedFile))
	if os.IsNotExist(err) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	seed, err := decodeSeed(b)
	if err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", SeedFile, err)
	}
	return New(seed), nil
}

func decodeSeed(b []byte) ([]core.Transaction, error) {
	var list []core.Transaction
	if err := json.Unmarshal(b, &list); err == nil {
		return list, nil
	}
	var db struct {
		Transactions []core.Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(b, &db); err != nil {
		return nil, err
	}
	return db.Transactions, nil
}

func (s *Store) List(ctx context.Context) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.fail(store.OpList, http.MethodGet, "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction{}, s.items...), nil
}

func (s *Store) Create(ctx context.Context, t core.NewTransaction) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return core.Transaction{}, s.fail(store.OpCreate, http.MethodPost, "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created := t.WithID(core.ID(strconv.FormatInt(s.nextID, 10)))
	s.nextID++
	s.items = append(s.items, created)
	return created, nil
}

// Delete removes the transaction with id. Unknown ids fail with a 404 like
// the remote store would.
func (s *Store) Delete(ctx context.Context, id core.ID) error {
	if err := ctx.Err(); err != nil {
		return s.fail(store.OpDelete, http.MethodDelete, id.String(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !core.Contains(s.items, id) {
		return &store.RequestError{
			Op:         store.OpDelete,
			Method:     http.MethodDelete,
			URL:        "memory:/transactions/" + id.String(),
			StatusCode: http.StatusNotFound,
		}
	}
	s.items = core.Without(s.items, id)
	return nil
}

func (s *Store) fail(op store.Operation, method, id string, err error) error {
	target := "memory:/transactions"
	if id != "" {
		target += "/" + id
	}
	return &store.RequestError{Op: op, Method: method, URL: target, Err: err}
}
