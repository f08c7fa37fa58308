package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"jewel-store/internal/cart"
	"jewel-store/internal/checkout"
	"jewel-store/internal/domain"
	"jewel-store/internal/payment/stripe"
	"jewel-store/internal/repository"

	"github.com/google/uuid"
)

// Mock repositories for testing
type mockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	findErr  error
}

func newMockProductRepository(products ...*domain.Product) *mockProductRepository {
	m := &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.products {
		if filter.CategoryID != nil && p.CategoryID != *filter.CategoryID {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockProductRepository) Recommended(ctx context.Context, categoryID uuid.UUID, excludeID uuid.UUID, limit int) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.products {
		if p.CategoryID == categoryID && p.ID != excludeID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCategoryRepository struct {
	categories map[uuid.UUID]*domain.Category
}

func newMockCategoryRepository(categories ...*domain.Category) *mockCategoryRepository {
	m := &mockCategoryRepository{categories: make(map[uuid.UUID]*domain.Category)}
	for _, c := range categories {
		m.categories[c.ID] = c
	}
	return m
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	for _, c := range m.categories {
		if c.Slug == category.Slug {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	out := make([]*domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}
	return c, nil
}

func (m *mockCategoryRepository) FindBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	for _, c := range m.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, domain.ErrCategoryNotFound
}

type mockOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*domain.Order)}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[order.CheckoutSessionID]; exists {
		return repository.ErrOrderAlreadyExists
	}
	m.orders[order.CheckoutSessionID] = order
	return nil
}

func (m *mockOrderRepository) FindByCheckoutSessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[sessionID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *mockOrderRepository) UpdatePaymentStatus(ctx context.Context, sessionID string, status domain.PaymentStatus, customerEmail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[sessionID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.PaymentStatus = status
	if customerEmail != "" {
		order.CustomerEmail = customerEmail
	}
	return nil
}

func (m *mockOrderRepository) ListBySessionKey(ctx context.Context, sessionKey string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.SessionKey == sessionKey {
			out = append(out, o)
		}
	}
	return out, nil
}

// mockPaymentProcessor hands out sequential session ids and records requests.
type mockPaymentProcessor struct {
	created   []checkout.SessionRequest
	sessions  map[string]*stripe.Session
	createErr error
	event     *stripe.Event
	eventErr  error
}

func newMockPaymentProcessor() *mockPaymentProcessor {
	return &mockPaymentProcessor{sessions: make(map[string]*stripe.Session)}
}

func (m *mockPaymentProcessor) Currency() string { return "usd" }

func (m *mockPaymentProcessor) CreateCheckoutSession(ctx context.Context, req checkout.SessionRequest) (*stripe.Session, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, req)
	id := "cs_test_" + uuid.NewString()
	session := &stripe.Session{
		ID:              id,
		URL:             "https://checkout.stripe.test/" + id,
		Status:          domain.PaymentPending,
		AmountTotal:     req.Total(),
		Currency:        req.Currency,
		CustomerEmail:   req.CustomerEmail,
		ClientReference: req.ClientReference,
	}
	m.sessions[id] = session
	return session, nil
}

func (m *mockPaymentProcessor) RetrieveSession(ctx context.Context, sessionID string) (*stripe.Session, error) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, stripe.ErrRequestFailed
	}
	copied := *session
	return &copied, nil
}

func (m *mockPaymentProcessor) ParseWebhook(signatureHeader string, body []byte, now time.Time) (*stripe.Event, error) {
	if m.eventErr != nil {
		return nil, m.eventErr
	}
	if m.event == nil {
		return nil, errors.New("no event configured")
	}
	return m.event, nil
}

// failingSideStore fails every save after the first failAfter successes.
type failingSideStore struct {
	mu        sync.Mutex
	saves     int
	failAfter int
}

func (f *failingSideStore) LoadCart(ctx context.Context, key string) (*domain.Cart, error) {
	return nil, domain.ErrCartNotFound
}

func (f *failingSideStore) SaveCart(ctx context.Context, key string, c *domain.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saves > f.failAfter {
		return errors.New("connection refused")
	}
	return nil
}

// slowLoadSideStore holds the first LoadCart until unblock is closed and then
// honours the context it was given.
type slowLoadSideStore struct {
	*cart.MemorySideStore
	once    sync.Once
	started chan struct{}
	unblock chan struct{}
}

func newSlowLoadSideStore() *slowLoadSideStore {
	return &slowLoadSideStore{
		MemorySideStore: cart.NewMemorySideStore(),
		started:         make(chan struct{}),
		unblock:         make(chan struct{}),
	}
}

func (s *slowLoadSideStore) LoadCart(ctx context.Context, key string) (*domain.Cart, error) {
	s.once.Do(func() {
		close(s.started)
		<-s.unblock
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemorySideStore.LoadCart(ctx, key)
}

// gatedSideStore parks the first save of key until gate is closed.
type gatedSideStore struct {
	*cart.MemorySideStore
	key     string
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func newGatedSideStore(key string) *gatedSideStore {
	return &gatedSideStore{
		MemorySideStore: cart.NewMemorySideStore(),
		key:             key,
		entered:         make(chan struct{}),
		gate:            make(chan struct{}),
	}
}

func (g *gatedSideStore) SaveCart(ctx context.Context, key string, c *domain.Cart) error {
	if key == g.key {
		g.once.Do(func() {
			close(g.entered)
			<-g.gate
		})
	}
	return g.MemorySideStore.SaveCart(ctx, key, c)
}
