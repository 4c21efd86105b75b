// Package session gives every browser its own transaction list view.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"txview/internal/cache"
	"txview/internal/log"
	"txview/internal/view"
)

const CookieName = "txview_session"

// Factory builds a fresh view for a new session.
type Factory func() *view.TransactionList

// Manager maps session ids to views. Idle or overflowing sessions are
// evicted and their views closed.
type Manager struct {
	views   *cache.LRUCache[*view.TransactionList]
	factory Factory
	ttl     time.Duration
	secure  bool
	logger  *log.Logger
}

type Option func(*Manager)

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger.WithComponent(log.ComponentSession)
		}
	}
}

func NewManager(factory Factory, maxSessions int, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		views:   cache.NewLRUCache[*view.TransactionList](maxSessions, ttl),
		factory: factory,
		ttl:     ttl,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.views.OnEvict(func(id string, v *view.TransactionList, reason cache.EvictReason) {
		v.Close()
		m.logger.Debug("Session closed", log.FieldSessionID, id, "reason", reason.String())
	})
	return m
}

// Cache exposes the underlying cache so a cache.Manager can sweep it.
func (m *Manager) Cache() *cache.LRUCache[*view.TransactionList] {
	return m.views
}

// Get returns the view for id, if it is still live.
func (m *Manager) Get(id string) (*view.TransactionList, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	return m.views.Get(id)
}

// Create starts a new session and returns its id and view.
func (m *Manager) Create() (string, *view.TransactionList) {
	id := uuid.NewString()
	v := m.factory()
	m.views.Set(id, v)
	m.logger.Debug("Session created", log.FieldSessionID, id)
	return id, v
}

// Resolve returns the view tied to r's session cookie, starting a new
// session (and setting the cookie on w) when there is none.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (string, *view.TransactionList) {
	if c, err := r.Cookie(CookieName); err == nil {
		if v, ok := m.Get(c.Value); ok {
			// The server-side TTL slides on every hit, so the cookie does too.
			m.setCookie(w, c.Value)
			return c.Value, v
		}
	}
	id, v := m.Create()
	m.setCookie(w, id)
	return id, v
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) Count() int {
	return m.views.Size()
}

// Close ends every session.
func (m *Manager) Close(_ context.Context) {
	m.views.Purge()
}
