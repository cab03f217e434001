package session

import (
	"errors"
	"maps"
	"sync"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session: session not found")

// CookieName carries the session id between requests.
const CookieName = "sessionId"

// Session is an attribute bag bound to one visitor.
type Session interface {
	GetId() string
	Has(name string) bool
	Get(name string, fallback any) any
	Set(name string, value any)
	All() map[string]any
	Replace(attributes map[string]any)
	Remove(name string)
	Clear()
}

// Store resolves sessions by id.
type Store interface {
	Get(id string) (Session, error)
	Save(session Session) error
	Delete(id string) error
}

type defaultSession struct {
	mu         sync.RWMutex
	id         string
	attributes map[string]any
}

func NewDefaultSession(id string, attributes map[string]any) Session {
	if attributes == nil {
		attributes = make(map[string]any)
	}

	return &defaultSession{
		id:         id,
		attributes: attributes,
	}
}

// New starts a session with a random id.
func New() Session {
	return NewDefaultSession(uuid.NewString(), nil)
}

func (s *defaultSession) GetId() string {
	return s.id
}

// All returns a copy of the attributes.
func (s *defaultSession) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.attributes)
}

func (s *defaultSession) Clear() {
	s.mu.Lock()
	s.attributes = make(map[string]any)
	s.mu.Unlock()
}

func (s *defaultSession) Get(name string, fallback any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, found := s.attributes[name]
	if !found {
		return fallback
	}

	return value
}

func (s *defaultSession) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, found := s.attributes[name]
	return found
}

func (s *defaultSession) Remove(name string) {
	s.mu.Lock()
	delete(s.attributes, name)
	s.mu.Unlock()
}

func (s *defaultSession) Replace(attributes map[string]any) {
	s.mu.Lock()
	s.attributes = maps.Clone(attributes)
	if s.attributes == nil {
		s.attributes = make(map[string]any)
	}
	s.mu.Unlock()
}

func (s *defaultSession) Set(name string, value any) {
	s.mu.Lock()
	s.attributes[name] = value
	s.mu.Unlock()
}
