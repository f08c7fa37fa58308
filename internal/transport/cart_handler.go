package transport

import (
	"net/http"

	"jewel-store/internal/domain"
	"jewel-store/internal/middleware"
	"jewel-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddItemRequest adds a priced variant of a product to the session's cart
type AddItemRequest struct {
	ProductID string           `json:"product_id" validate:"required,uuid"`
	Selection domain.Selection `json:"selection"`
	Quantity  int              `json:"quantity" validate:"required,gte=1,lte=99"`
}

// CartResponse is the cart with its total, recomputed on every read
type CartResponse struct {
	Items []domain.LineItem `json:"items"`
	Total domain.Money      `json:"total"`
	Count int               `json:"count"`
}

func newCartResponse(c *domain.Cart) CartResponse {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return CartResponse{Items: c.Items, Total: c.Total(), Count: count}
}

// CartHandler exposes the shopper's cart. Every route runs behind SessionMiddleware.
type CartHandler struct {
	carts  service.CartService
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:  carts,
		logger: logger,
	}
}

// RegisterRoutes registers the cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router, sessionMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(sessionMiddleware)
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Delete("/items/{productId}", h.RemoveItem)
	})
}

// GetCart returns the session's cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}
	c, err := h.carts.Get(r.Context(), key)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to load cart")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(c))
}

// AddItem prices the selection and adds it to the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if req.Selection == nil {
		req.Selection = domain.Selection{}
	}

	c, err := h.carts.AddItem(r.Context(), key, productID, req.Selection, req.Quantity)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to save cart")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(c))
}

// RemoveItem removes one variant line (?signature=) or every line of the product
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r, "productId")
	if !ok {
		return
	}

	signature := r.URL.Query().Get("signature")
	if signature != "" {
		if _, err := domain.ParseSignature(signature); err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid variant signature")
			return
		}
	}

	c, err := h.carts.RemoveItem(r.Context(), key, productID, signature)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to save cart")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(c))
}

// ClearCart empties the cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}
	if err := h.carts.Clear(r.Context(), key); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to save cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sessionKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, ok := middleware.GetSessionKey(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusBadRequest, "missing session")
		return "", false
	}
	return key, true
}
