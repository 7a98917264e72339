// Package persistence keeps session state in client-local durable storage,
// one JSON document per fixed key.
package persistence

import (
	"context"
	"errors"
	"sync"
)

// Fixed storage keys, one per entity
const (
	KeyActiveLocation = "location.active"
	KeyEditedLocation = "location.edited"
	KeyCatalog        = "catalog"
	KeyCart           = "cart"
	KeyWishlist       = "wishlist"
	KeyProducts       = "products"
)

// AllKeys lists every key the session writes
var AllKeys = []string{
	KeyActiveLocation,
	KeyEditedLocation,
	KeyCatalog,
	KeyCart,
	KeyWishlist,
	KeyProducts,
}

// ErrNotFound is returned when nothing is stored under a key
var ErrNotFound = errors.New("persisted value not found")

// Store saves and loads raw JSON documents
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// MemoryStore keeps documents in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

func (m *MemoryStore) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.docs, key)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
