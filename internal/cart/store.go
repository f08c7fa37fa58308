package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"jewel-store/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SideStore persists whole cart snapshots keyed by session key.
type SideStore interface {
	// LoadCart returns domain.ErrCartNotFound when no snapshot exists for key.
	LoadCart(ctx context.Context, key string) (*domain.Cart, error)
	SaveCart(ctx context.Context, key string, cart *domain.Cart) error
}

// Store is the authoritative cart of one shopper session.
//
// Every mutation applies to memory and then writes the full cart to the side-store
// before returning. Mutations of one Store are serialized together with their
// writes, so snapshots reach the side-store strictly in the order the mutations
// were applied. A failed write is retried once; if it still fails the mutation
// stays applied in memory and the caller gets ErrPersistenceFailure.
type Store struct {
	key    string
	side   SideStore
	logger *zap.Logger

	// persistMu orders mutation+write pairs; mu guards cart for readers.
	persistMu sync.Mutex
	mu        sync.RWMutex
	cart      *domain.Cart
}

// NewStore rehydrates the session's cart from the side-store, or starts empty.
func NewStore(ctx context.Context, key string, side SideStore, logger *zap.Logger) (*Store, error) {
	c, err := side.LoadCart(ctx, key)
	switch {
	case errors.Is(err, domain.ErrCartNotFound):
		c = domain.NewCart()
	case err != nil:
		return nil, fmt.Errorf("%w: failed to load cart: %w", domain.ErrPersistenceFailure, err)
	}
	if c.Items == nil {
		c.Items = []domain.LineItem{}
	}

	return &Store{
		key:    key,
		side:   side,
		logger: logger.With(zap.String("session_key", key)),
		cart:   c,
	}, nil
}

// Key returns the session key the cart is persisted under.
func (s *Store) Key() string {
	return s.key
}

// AddItem merges quantity into the line with the same product and variant signature,
// or appends a new line.
func (s *Store) AddItem(ctx context.Context, productID uuid.UUID, sel domain.Selection, unitPrice domain.Money, quantity int, display domain.Display) error {
	if quantity < 1 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}
	signature := sel.Signature()

	return s.mutate(ctx, func(c *domain.Cart) {
		for i := range c.Items {
			if c.Items[i].ProductID == productID && c.Items[i].VariantSignature == signature {
				c.Items[i].Quantity += quantity
				return
			}
		}
		c.Items = append(c.Items, domain.LineItem{
			ProductID:        productID,
			VariantSignature: signature,
			Selection:        sel.Clone(),
			Quantity:         quantity,
			UnitPrice:        unitPrice,
			DisplayName:      display.Name,
			DisplayImage:     display.Image,
		})
	})
}

// RemoveItem removes the line matching signature, or every line of the product when
// signature is empty. Removing a missing line is a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID uuid.UUID, signature string) error {
	return s.mutate(ctx, func(c *domain.Cart) {
		kept := c.Items[:0]
		for _, item := range c.Items {
			if item.ProductID == productID && (signature == "" || item.VariantSignature == signature) {
				continue
			}
			kept = append(kept, item)
		}
		c.Items = kept
	})
}

// Clear empties the cart and persists the empty state.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func(c *domain.Cart) {
		c.Items = []domain.LineItem{}
	})
}

// Items returns a copy of the current lines.
func (s *Store) Items() []domain.LineItem {
	return s.Snapshot().Items
}

// Snapshot returns a deep copy of the current cart.
func (s *Store) Snapshot() *domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Total is recomputed from the current lines on every call.
func (s *Store) Total() domain.Money {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Total()
}

func (s *Store) mutate(ctx context.Context, apply func(c *domain.Cart)) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	apply(s.cart)
	snapshot := s.cart.Clone()
	s.mu.Unlock()

	return s.persist(ctx, snapshot)
}

func (s *Store) persist(ctx context.Context, snapshot *domain.Cart) error {
	err := s.side.SaveCart(ctx, s.key, snapshot)
	if err == nil {
		return nil
	}
	s.logger.Warn("Cart save failed, retrying", zap.Error(err))

	if err = s.side.SaveCart(ctx, s.key, snapshot); err != nil {
		s.logger.Error("Cart save failed after retry", zap.Error(err), zap.Int("items", len(snapshot.Items)))
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	return nil
}
