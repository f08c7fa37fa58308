package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jewel-store/internal/cart"
	"jewel-store/internal/domain"
	"jewel-store/internal/pricing"
	"jewel-store/internal/repository"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultLiveCarts = 10000
	cartLoadTimeout  = 10 * time.Second
)

// CartService keeps the live cart of every active shopper session. Carts are
// looked up by session key and rehydrated from the side-store on first use.
type CartService interface {
	Get(ctx context.Context, sessionKey string) (*domain.Cart, error)
	AddItem(ctx context.Context, sessionKey string, productID uuid.UUID, sel domain.Selection, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, sessionKey string, productID uuid.UUID, signature string) (*domain.Cart, error)
	Clear(ctx context.Context, sessionKey string) error
}

type cartService struct {
	products repository.ProductRepository
	side     cart.SideStore
	logger   *zap.Logger

	// live holds *cart.Store by session key; an evicted store is rebuilt from
	// its last snapshot. held pins the store of every session with a request
	// in flight, so eviction never lets a second store appear next to it.
	// loads collapses concurrent misses for one key.
	mu    sync.Mutex
	live  *lru.Cache
	held  map[string]*heldStore
	loads singleflight.Group
}

type heldStore struct {
	store *cart.Store
	refs  int
}

// NewCartService creates a CartService keeping at most size carts in memory
func NewCartService(
	products repository.ProductRepository,
	side cart.SideStore,
	size int,
	logger *zap.Logger,
) (CartService, error) {
	if size < 1 {
		size = defaultLiveCarts
	}
	live, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart cache: %w", err)
	}
	return &cartService{
		products: products,
		side:     side,
		logger:   logger,
		live:     live,
		held:     make(map[string]*heldStore),
	}, nil
}

func (s *cartService) Get(ctx context.Context, sessionKey string) (*domain.Cart, error) {
	store, release, err := s.acquire(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	defer release()
	return store.Snapshot(), nil
}

// AddItem prices the selection against the current catalog and adds it to the
// session's cart, merging with an existing line of the same variant.
func (s *cartService) AddItem(ctx context.Context, sessionKey string, productID uuid.UUID, sel domain.Selection, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	unitPrice, err := pricing.ResolveUnitPrice(product, sel)
	if err != nil {
		return nil, err
	}

	store, release, err := s.acquire(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	defer release()

	display := domain.Display{Name: product.Name, Image: product.PrimaryImage()}
	if err := store.AddItem(ctx, product.ID, sel, unitPrice, quantity, display); err != nil {
		return nil, err
	}

	s.logger.Debug("Cart item added",
		zap.String("session_key", sessionKey),
		zap.String("product_id", product.ID.String()),
		zap.String("variant", sel.Signature()),
		zap.Int("quantity", quantity),
	)
	return store.Snapshot(), nil
}

// RemoveItem drops one variant line, or every line of the product when signature is empty.
func (s *cartService) RemoveItem(ctx context.Context, sessionKey string, productID uuid.UUID, signature string) (*domain.Cart, error) {
	store, release, err := s.acquire(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := store.RemoveItem(ctx, productID, signature); err != nil {
		return nil, err
	}
	return store.Snapshot(), nil
}

func (s *cartService) Clear(ctx context.Context, sessionKey string) error {
	store, release, err := s.acquire(ctx, sessionKey)
	if err != nil {
		return err
	}
	defer release()
	return store.Clear(ctx)
}

// acquire returns the session's store pinned until release is called.
func (s *cartService) acquire(ctx context.Context, sessionKey string) (*cart.Store, func(), error) {
	release := func() { s.release(sessionKey) }

	s.mu.Lock()
	if store, ok := s.pinLocked(sessionKey); ok {
		s.mu.Unlock()
		return store, release, nil
	}
	s.mu.Unlock()

	// The load outlives a cancelled caller: other requests may be waiting on it.
	v, err, _ := s.loads.Do(sessionKey, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartLoadTimeout)
		defer cancel()
		return cart.NewStore(loadCtx, sessionKey, s.side, s.logger)
	})
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A request that loaded first wins; this load is dropped.
	if store, ok := s.pinLocked(sessionKey); ok {
		return store, release, nil
	}
	store := v.(*cart.Store)
	s.live.Add(sessionKey, store)
	s.held[sessionKey] = &heldStore{store: store, refs: 1}
	return store, release, nil
}

// pinLocked pins the session's store if one is held or cached. s.mu must be held.
func (s *cartService) pinLocked(sessionKey string) (*cart.Store, bool) {
	if h, ok := s.held[sessionKey]; ok {
		h.refs++
		if _, cached := s.live.Get(sessionKey); !cached {
			s.live.Add(sessionKey, h.store)
		}
		return h.store, true
	}
	if v, ok := s.live.Get(sessionKey); ok {
		store := v.(*cart.Store)
		s.held[sessionKey] = &heldStore{store: store, refs: 1}
		return store, true
	}
	return nil, false
}

func (s *cartService) release(sessionKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.held[sessionKey]
	if !ok {
		return
	}
	if h.refs--; h.refs == 0 {
		delete(s.held, sessionKey)
	}
}
