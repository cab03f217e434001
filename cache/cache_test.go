package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStoreSetGet(t *testing.T) {
	store := New()

	_, found := store.Get("/")
	assert.False(t, found)

	require.NoError(t, store.Set("/", Entry{StatusCode: 200, Body: "home", Headers: map[string]string{"Content-Type": "text/html"}}))

	entry, found := store.Get("/")
	require.True(t, found)
	assert.Equal(t, 200, entry.StatusCode)
	assert.Equal(t, "home", entry.Body)
	assert.Equal(t, "text/html", entry.Headers["Content-Type"])
	assert.False(t, entry.StoredAt.IsZero())
	assert.Equal(t, DefaultTTL, store.TTL())
}

func TestStoreRejectsEmptyKey(t *testing.T) {
	store := New()

	assert.ErrorIs(t, store.Set("", Entry{}), ErrInvalidKey)
	assert.Equal(t, 0, store.Len())
}

func TestStoreExpiry(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	store := New(WithTTL(10*time.Second), WithClock(c.Now))

	require.NoError(t, store.Set("/products?page=1", Entry{StatusCode: 200}))

	c.Advance(9 * time.Second)
	_, found := store.Get("/products?page=1")
	assert.True(t, found)

	c.Advance(time.Second)
	_, found = store.Get("/products?page=1")
	assert.False(t, found)
	assert.Equal(t, 0, store.Len(), "expired entry is dropped on read")
}

func TestStoreZeroTTLNeverExpires(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	store := New(WithTTL(0), WithClock(c.Now))

	require.NoError(t, store.Set("k", Entry{}))
	c.Advance(24 * 365 * time.Hour)

	_, found := store.Get("k")
	assert.True(t, found)
}

func TestStorePurge(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	store := New(WithTTL(time.Minute), WithClock(c.Now))

	require.NoError(t, store.Set("old", Entry{}))
	c.Advance(30 * time.Second)
	require.NoError(t, store.Set("new", Entry{}))
	c.Advance(45 * time.Second)

	assert.Equal(t, 1, store.Purge())
	assert.Equal(t, 1, store.Len())

	_, found := store.Get("new")
	assert.True(t, found)
}

func TestStoreFlush(t *testing.T) {
	store := New()
	require.NoError(t, store.Set("a", Entry{}))
	require.NoError(t, store.Set("b", Entry{}))

	store.Flush()

	assert.Equal(t, 0, store.Len())
	_, found := store.Get("a")
	assert.False(t, found)
}

func TestStoreKeysAreNotNormalized(t *testing.T) {
	store := New()
	require.NoError(t, store.Set("/p?a=1&b=2", Entry{Body: "x"}))

	_, found := store.Get("/p?b=2&a=1")
	assert.False(t, found)
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = store.Set("k", Entry{StatusCode: 200})
				store.Get("k")
				if j%25 == 0 {
					store.Flush()
				}
			}
		}()
	}
	wg.Wait()
}
