package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"jewel-store/internal/cart"
	"jewel-store/internal/domain"
	"jewel-store/internal/middleware"
	"jewel-store/internal/payment/stripe"
	"jewel-store/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	testJWTSecret     = "test-secret"
	testWebhookSecret = "whsec_test"
)

var ringsCategory = &domain.Category{ID: uuid.New(), Slug: "rings", Name: "Rings"}

// eternityBand is table priced on metal and size; engraving adds on top.
func eternityBand() *domain.Product {
	return &domain.Product{
		ID:         uuid.New(),
		CategoryID: ringsCategory.ID,
		Name:       "Eternity Band",
		Images:     domain.Images{"https://cdn.example.com/eternity.jpg"},
		VariantGroups: domain.VariantGroups{
			{Dimension: "metal", Options: []domain.Option{{Label: "14K"}, {Label: "18K"}}},
			{Dimension: "size", Options: []domain.Option{{Label: "6"}, {Label: "7"}}},
			{Dimension: "engraving", Options: []domain.Option{
				{Label: "None"},
				{Label: "Script", PriceContribution: 4500},
			}},
		},
		Pricing: domain.TablePricing("metal", "size", map[string]map[string]domain.Money{
			"14K": {"6": 89900, "7": 94900},
			"18K": {"6": 119900, "7": 124900},
		}),
		DisplayPrice: 89900,
	}
}

// fakeStripe serves the two Checkout Session endpoints the client calls.
type fakeStripe struct {
	mu       sync.Mutex
	next     int
	sessions map[string]map[string]interface{}
	fail     bool
}

func newFakeStripe(t *testing.T) (*fakeStripe, *httptest.Server) {
	t.Helper()
	f := &fakeStripe{sessions: make(map[string]map[string]interface{})}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/checkout/sessions", f.create)
	mux.HandleFunc("GET /v1/checkout/sessions/{id}", f.retrieve)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeStripe) create(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"try again later"}}`))
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var total int64
	for i := 0; ; i++ {
		prefix := fmt.Sprintf("line_items[%d]", i)
		qty := r.PostForm.Get(prefix + "[quantity]")
		if qty == "" {
			break
		}
		q, _ := strconv.ParseInt(qty, 10, 64)
		unit, _ := strconv.ParseInt(r.PostForm.Get(prefix+"[price_data][unit_amount]"), 10, 64)
		total += q * unit
	}

	f.next++
	id := fmt.Sprintf("cs_test_%d", f.next)
	session := map[string]interface{}{
		"id":                  id,
		"object":              "checkout.session",
		"url":                 "https://checkout.stripe.com/c/pay/" + id,
		"status":              "open",
		"payment_status":      "unpaid",
		"amount_total":        total,
		"currency":            r.PostForm.Get("line_items[0][price_data][currency]"),
		"customer_email":      r.PostForm.Get("customer_email"),
		"client_reference_id": r.PostForm.Get("client_reference_id"),
	}
	f.sessions[id] = session
	json.NewEncoder(w).Encode(session)
}

func (f *fakeStripe) retrieve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[r.PathValue("id")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"No such checkout.session"}}`))
		return
	}
	json.NewEncoder(w).Encode(session)
}

func (f *fakeStripe) failRequests() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = true
}

func (f *fakeStripe) markPaid(id string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	session := f.sessions[id]
	session["status"] = "complete"
	session["payment_status"] = "paid"
	return session
}

// testAPI is the storefront router wired to in-memory repositories, a memory
// cart side-store, miniredis for rate limiting and a fake Stripe.
type testAPI struct {
	router   http.Handler
	products *mockProductRepository
	orders   *mockOrderRepository
	stripe   *fakeStripe
	band     *domain.Product
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	band := eternityBand()

	products := newMockProductRepository(band)
	categories := newMockCategoryRepository(ringsCategory)
	orders := newMockOrderRepository()

	fake, server := newFakeStripe(t)
	client, err := stripe.NewClient(stripe.Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		APIBaseURL:    server.URL,
		Currency:      "usd",
	}, logger)
	if err != nil {
		t.Fatalf("stripe.NewClient failed: %v", err)
	}

	carts, err := service.NewCartService(products, cart.NewMemorySideStore(), 100, logger)
	if err != nil {
		t.Fatalf("NewCartService failed: %v", err)
	}
	catalog := service.NewCatalogService(products, categories, logger)
	checkout := service.NewCheckoutService(carts, orders, client, service.CheckoutURLs{
		SuccessURL: "https://shop.example.com/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://shop.example.com/cart",
	}, logger)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	sessionMiddleware := middleware.SessionMiddleware(testJWTSecret, logger)
	rateLimit := middleware.RateLimitMiddleware(redisClient, middleware.RateLimitConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:checkout",
	}, logger)

	r := chi.NewRouter()
	r.Use(middleware.ErrorHandlingMiddleware(logger))
	NewCatalogHandler(catalog, logger).RegisterRoutes(r)
	NewCartHandler(carts, logger).RegisterRoutes(r, sessionMiddleware)
	NewCheckoutHandler(checkout, logger).RegisterRoutes(r, sessionMiddleware, rateLimit)
	NewAdminHandler(catalog, logger).RegisterRoutes(r, middleware.AuthMiddleware(testJWTSecret, logger))

	return &testAPI{router: r, products: products, orders: orders, stripe: fake, band: band}
}

// do sends body as JSON with the given headers and returns the recorder.
func (a *testAPI) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func anonHeaders(sessionID string) map[string]string {
	return map[string]string{middleware.SessionIDHeader: sessionID}
}

func bearerHeaders(t *testing.T, userID, role string) map[string]string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + signed}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func jsonDecode(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp middleware.ErrorResponse
	decode(t, w, &resp)
	return resp.Error.Message
}
