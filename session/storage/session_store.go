package storage

import "github.com/freekieb7/storefront/session"

// SessionStore is a session.Store that can be enumerated and released.
type SessionStore interface {
	session.Store
	Has(id string) bool
	Len() int
	Close() error
}
