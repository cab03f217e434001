package storage

import (
	"sync"

	"github.com/freekieb7/storefront/session"
)

const MemorySessionStoreName = "memory"

// MemorySessionStore keeps sessions for the lifetime of the process.
type MemorySessionStore struct {
	mu   sync.RWMutex
	data map[string]session.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		data: make(map[string]session.Session),
	}
}

var _ SessionStore = (*MemorySessionStore)(nil)

func (m *MemorySessionStore) Close() error {
	m.mu.Lock()
	m.data = make(map[string]session.Session)
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, found := m.data[id]
	return found
}

func (m *MemorySessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemorySessionStore) Get(id string) (session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, found := m.data[id]
	if !found {
		return nil, session.ErrSessionNotFound
	}

	return sess, nil
}

func (m *MemorySessionStore) Save(sess session.Session) error {
	m.mu.Lock()
	m.data[sess.GetId()] = sess
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Delete(id string) error {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
	return nil
}
