package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txview/internal/core"
	"txview/internal/store/memory"
	"txview/internal/view"
)

func newManager(max int) *Manager {
	st := memory.New([]core.Transaction{{ID: "1", Description: "Coffee"}})
	return NewManager(func() *view.TransactionList { return view.New(st) }, max, time.Minute)
}

func TestResolveCreatesSessionAndCookie(t *testing.T) {
	m := newManager(10)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	id, v := m.Resolve(rec, req)
	require.NotNil(t, v)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, id, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 1, m.Count())
}

func TestResolveReusesExistingSession(t *testing.T) {
	m := newManager(10)
	id, v := m.Create()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: id})

	gotID, got := m.Resolve(rec, req)
	assert.Equal(t, id, gotID)
	assert.Same(t, v, got)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1, "cookie lifetime should slide with the session")
	assert.Equal(t, id, cookies[0].Value)
	assert.Equal(t, int(time.Minute.Seconds()), cookies[0].MaxAge)
}

func TestResolveIgnoresForgedCookie(t *testing.T) {
	m := newManager(10)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-uuid"})

	id, _ := m.Resolve(rec, req)
	assert.NotEqual(t, "not-a-uuid", id)
}

func TestEvictionClosesView(t *testing.T) {
	m := newManager(1)
	first, v := m.Create()
	m.Create()

	_, ok := m.Get(first)
	assert.False(t, ok)
	assert.ErrorIs(t, v.Load(context.Background(), ""), view.ErrClosed)
}

func TestCloseEndsEverySession(t *testing.T) {
	m := newManager(10)
	_, v := m.Create()
	_, other := m.Create()
	require.NoError(t, other.Load(context.Background(), ""))

	m.Close(context.Background())
	assert.Equal(t, 0, m.Count())
	assert.ErrorIs(t, v.Load(context.Background(), ""), view.ErrClosed)
	assert.ErrorIs(t, other.Load(context.Background(), ""), view.ErrClosed)
}
