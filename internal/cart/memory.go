package cart

import (
	"context"
	"sync"

	"jewel-store/internal/domain"
)

// MemorySideStore keeps snapshots in process memory. It backs CART_STORE=memory
// for local runs without Postgres, Redis or MongoDB.
type MemorySideStore struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

// NewMemorySideStore returns an empty in-memory side-store.
func NewMemorySideStore() *MemorySideStore {
	return &MemorySideStore{carts: make(map[string]*domain.Cart)}
}

func (m *MemorySideStore) LoadCart(ctx context.Context, key string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[key]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (m *MemorySideStore) SaveCart(ctx context.Context, key string, c *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[key] = c.Clone()
	return nil
}
