package transport

import (
	"io"
	"net/http"

	"jewel-store/internal/middleware"
	"jewel-store/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBodyBytes   = 64 << 10
)

// CreateCheckoutRequest opens a hosted checkout for the session's cart
type CreateCheckoutRequest struct {
	CustomerEmail string `json:"customer_email,omitempty" validate:"omitempty,email"`
}

// CheckoutHandler opens payment sessions and receives processor webhooks
type CheckoutHandler struct {
	checkout service.CheckoutService
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkout service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		logger:   logger,
	}
}

// RegisterRoutes registers the checkout routes. The webhook route is outside the
// session and rate limit middleware: the processor calls it, not the shopper.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router, sessionMiddleware, rateLimit func(http.Handler) http.Handler) {
	r.Post("/api/checkout/webhook", h.Webhook)
	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware)
		r.Get("/api/checkout/orders", h.Orders)
		r.With(rateLimit).Post("/api/checkout/session", h.CreateSession)
		r.With(rateLimit).Get("/api/checkout/verify/{sessionId}", h.VerifyPayment)
	})
}

// CreateSession builds a checkout request from the cart and returns the hosted page URL
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}

	var req CreateCheckoutRequest
	if r.ContentLength != 0 {
		if err := middleware.DecodeAndValidate(r, &req); err != nil {
			middleware.RespondWithDecodeError(w, err)
			return
		}
	}

	session, err := h.checkout.CreateSession(r.Context(), key, req.CustomerEmail)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to create checkout session")
		return
	}

	h.logger.Info("Checkout session created",
		zap.String("checkout_session_id", session.SessionID),
		zap.Int64("total", int64(session.Total)),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, session)
}

// VerifyPayment reports the payment state of a checkout session
func (h *CheckoutHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "session id is required")
		return
	}

	verification, err := h.checkout.VerifyPayment(r.Context(), key, sessionID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to verify payment")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, verification)
}

// Orders lists the orders placed by the current session, newest first
func (h *CheckoutHandler) Orders(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}
	orders, err := h.checkout.Orders(r.Context(), key)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to list orders")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// Webhook verifies and applies a processor event. Errors other than a bad
// signature answer 5xx so the processor redelivers.
func (h *CheckoutHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "unreadable webhook body")
		return
	}

	if err := h.checkout.HandleWebhook(r.Context(), r.Header.Get(stripeSignatureHeader), body); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to process webhook")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
