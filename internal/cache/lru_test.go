package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, size int, ttl time.Duration) (*LRUCache[string], *fakeClock, *[]string) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.Now
	var evictions []string
	c.OnEvict(func(key string, _ string, reason EvictReason) {
		evictions = append(evictions, key+":"+reason.String())
	})
	return c, clock, &evictions
}

func TestLRUGetSet(t *testing.T) {
	c, _, _ := newTestCache(t, 2, time.Minute)
	c.Set("a", "1")

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _, evictions := newTestCache(t, 2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"b:capacity"}, *evictions)
}

func TestLRUSlidingExpiry(t *testing.T) {
	c, clock, evictions := newTestCache(t, 10, time.Minute)
	c.Set("a", "1")

	clock.Advance(50 * time.Second)
	_, ok := c.Get("a")
	require.True(t, ok, "access within ttl should hit")

	clock.Advance(50 * time.Second)
	_, ok = c.Get("a")
	require.True(t, ok, "previous access should have extended expiry")

	clock.Advance(61 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"a:expired"}, *evictions)
}

func TestLRUCleanExpired(t *testing.T) {
	c, clock, evictions := newTestCache(t, 10, time.Minute)
	c.Set("a", "1")
	clock.Advance(30 * time.Second)
	c.Set("b", "2")
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, []string{"a:expired"}, *evictions)
}

func TestLRUDeleteReplaceAndPurge(t *testing.T) {
	c, _, evictions := newTestCache(t, 10, time.Minute)
	c.Set("a", "1")
	c.Set("a", "2")
	c.Set("b", "3")
	c.Delete("b")
	c.Delete("nope")
	c.Purge()

	assert.Equal(t, 0, c.Size())
	assert.Equal(t, []string{"a:replaced", "b:deleted", "a:deleted"}, *evictions)
}

func TestEvictCallbackMayReenterCache(t *testing.T) {
	c := NewLRUCache[int](1, time.Minute)
	c.OnEvict(func(key string, _ int, _ EvictReason) {
		_ = c.Size()
	})
	c.Set("a", 1)
	assert.NotPanics(t, func() { c.Set("b", 2) })
}

type countingCleaner struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCleaner) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 1
}

func (c *countingCleaner) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestManagerCleansPeriodically(t *testing.T) {
	m := NewManager(nil)
	cleaner := &countingCleaner{}
	m.Register("sessions", cleaner)

	assert.Equal(t, 1, m.CleanNow())

	m.StartCleanup(5 * time.Millisecond)
	assert.Eventually(t, func() bool { return cleaner.Calls() >= 3 }, time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	assert.NotPanics(t, m.Stop)
}
