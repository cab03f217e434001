// Package cache keeps rendered responses in memory for replay.
package cache

import (
	"errors"
	"sync"
	"time"
)

const DefaultTTL = 600 * time.Second

var ErrInvalidKey = errors.New("cache: invalid key")

// Entry is a captured response.
type Entry struct {
	StatusCode int
	Headers    map[string]string
	Body       string
	StoredAt   time.Time
}

// Store is a concurrency-safe map of entries that treats entries older than
// its TTL as absent. Writes are last-write-wins.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Store)

// WithTTL sets the maximum entry age. Zero keeps entries until Flush.
func WithTTL(ttl time.Duration) Option {
	return func(store *Store) {
		store.ttl = ttl
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(store *Store) {
		store.now = now
	}
}

func New(opts ...Option) *Store {
	store := &Store{
		entries: make(map[string]Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Get returns the live entry stored under key.
func (store *Store) Get(key string) (Entry, bool) {
	store.mu.RLock()
	entry, found := store.entries[key]
	store.mu.RUnlock()

	if !found {
		return Entry{}, false
	}

	if store.expired(entry, store.now()) {
		store.mu.Lock()
		if current, ok := store.entries[key]; ok && current.StoredAt.Equal(entry.StoredAt) {
			delete(store.entries, key)
		}
		store.mu.Unlock()
		return Entry{}, false
	}

	return entry, true
}

// Set stores entry under key, stamping StoredAt.
func (store *Store) Set(key string, entry Entry) error {
	if key == "" {
		return ErrInvalidKey
	}

	entry.StoredAt = store.now()

	store.mu.Lock()
	store.entries[key] = entry
	store.mu.Unlock()

	return nil
}

// Flush removes every entry.
func (store *Store) Flush() {
	store.mu.Lock()
	store.entries = make(map[string]Entry)
	store.mu.Unlock()
}

// Purge removes expired entries and returns how many were dropped.
func (store *Store) Purge() int {
	now := store.now()

	store.mu.Lock()
	defer store.mu.Unlock()

	removed := 0
	for key, entry := range store.entries {
		if store.expired(entry, now) {
			delete(store.entries, key)
			removed++
		}
	}

	return removed
}

// Len counts stored entries, including expired ones not yet purged.
func (store *Store) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.entries)
}

func (store *Store) TTL() time.Duration {
	return store.ttl
}

func (store *Store) expired(entry Entry, now time.Time) bool {
	return store.ttl > 0 && now.Sub(entry.StoredAt) >= store.ttl
}
