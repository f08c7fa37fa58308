package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jewel-store/internal/checkout"
	"jewel-store/internal/domain"
	"jewel-store/internal/payment/stripe"
	"jewel-store/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrPaymentProvider wraps failures talking to the hosted payment processor.
	ErrPaymentProvider = errors.New("payment provider unavailable")
	// ErrInvalidWebhook is returned for webhook deliveries that fail verification.
	ErrInvalidWebhook = errors.New("invalid webhook")
)

// PaymentProcessor opens hosted checkout sessions and reports on them.
type PaymentProcessor interface {
	Currency() string
	CreateCheckoutSession(ctx context.Context, req checkout.SessionRequest) (*stripe.Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*stripe.Session, error)
	ParseWebhook(signatureHeader string, body []byte, now time.Time) (*stripe.Event, error)
}

// CheckoutURLs are where the hosted page sends the shopper afterwards.
type CheckoutURLs struct {
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is what the storefront needs to redirect to the hosted page.
type CheckoutSession struct {
	SessionID   string       `json:"session_id"`
	RedirectURL string       `json:"redirect_url"`
	Total       domain.Money `json:"total"`
	Currency    string       `json:"currency"`
}

// PaymentVerification is the payment state of one checkout session.
type PaymentVerification struct {
	SessionID     string               `json:"session_id"`
	Status        domain.PaymentStatus `json:"status"`
	Paid          bool                 `json:"paid"`
	AmountTotal   domain.Money         `json:"amount_total"`
	Currency      string               `json:"currency"`
	CustomerEmail string               `json:"customer_email,omitempty"`
}

// CheckoutService hands carts to the payment processor and settles the outcome.
type CheckoutService interface {
	CreateSession(ctx context.Context, sessionKey, customerEmail string) (*CheckoutSession, error)
	VerifyPayment(ctx context.Context, sessionKey, checkoutSessionID string) (*PaymentVerification, error)
	HandleWebhook(ctx context.Context, signatureHeader string, body []byte) error
	Orders(ctx context.Context, sessionKey string) ([]*domain.Order, error)
}

type checkoutService struct {
	carts    CartService
	orders   repository.OrderRepository
	payments PaymentProcessor
	urls     CheckoutURLs
	logger   *zap.Logger
	now      func() time.Time
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(
	carts CartService,
	orders repository.OrderRepository,
	payments PaymentProcessor,
	urls CheckoutURLs,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		carts:    carts,
		orders:   orders,
		payments: payments,
		urls:     urls,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateSession builds a checkout request from the session's cart, opens a hosted
// session for it and records a pending order. The cart itself is left untouched
// until payment succeeds.
func (s *checkoutService) CreateSession(ctx context.Context, sessionKey, customerEmail string) (*CheckoutSession, error) {
	c, err := s.carts.Get(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	req, err := checkout.BuildSessionRequest(c, s.urls.SuccessURL, s.urls.CancelURL)
	if err != nil {
		return nil, err
	}
	req.Currency = s.payments.Currency()
	req.CustomerEmail = customerEmail
	req.ClientReference = sessionKey

	session, err := s.payments.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Error("Failed to create checkout session",
			zap.String("session_key", sessionKey),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrPaymentProvider, err)
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:                uuid.New(),
		CheckoutSessionID: session.ID,
		SessionKey:        sessionKey,
		CustomerEmail:     customerEmail,
		Items:             domain.LineItems(c.Items),
		Total:             req.Total(),
		Currency:          req.Currency,
		PaymentStatus:     domain.PaymentPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to record order: %w", err)
	}

	s.logger.Info("Checkout started",
		zap.String("session_key", sessionKey),
		zap.String("checkout_session_id", session.ID),
		zap.Stringer("total", order.Total),
	)

	return &CheckoutSession{
		SessionID:   session.ID,
		RedirectURL: session.URL,
		Total:       order.Total,
		Currency:    order.Currency,
	}, nil
}

// VerifyPayment asks the processor for the session's state and settles the order
// the same way the webhook would. Only the shopper session that placed the order
// may verify it; any other caller gets ErrOrderNotFound.
func (s *checkoutService) VerifyPayment(ctx context.Context, sessionKey, checkoutSessionID string) (*PaymentVerification, error) {
	order, err := s.orders.FindByCheckoutSessionID(ctx, checkoutSessionID)
	if err != nil {
		return nil, err
	}
	if order.SessionKey != sessionKey {
		s.logger.Warn("Checkout session verified by another shopper session",
			zap.String("checkout_session_id", checkoutSessionID),
			zap.String("session_key", sessionKey),
		)
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, checkoutSessionID)
	}

	session, err := s.payments.RetrieveSession(ctx, checkoutSessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentProvider, err)
	}

	if err := s.settle(ctx, *session, session.Status); err != nil {
		return nil, err
	}

	return &PaymentVerification{
		SessionID:     session.ID,
		Status:        session.Status,
		Paid:          session.Status == domain.PaymentPaid,
		AmountTotal:   session.AmountTotal,
		Currency:      session.Currency,
		CustomerEmail: session.CustomerEmail,
	}, nil
}

// HandleWebhook verifies a processor event and settles the checkout session it
// is about. Events for other objects are acknowledged and ignored.
func (s *checkoutService) HandleWebhook(ctx context.Context, signatureHeader string, body []byte) error {
	event, err := s.payments.ParseWebhook(signatureHeader, body, s.now())
	if err != nil {
		s.logger.Warn("Rejected webhook", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}

	if event.Session.ID == "" || event.Status == "" {
		s.logger.Debug("Ignoring webhook event", zap.String("event_id", event.ID), zap.String("type", event.Type))
		return nil
	}

	s.logger.Info("Webhook received",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("checkout_session_id", event.Session.ID),
		zap.String("status", string(event.Status)),
	)
	return s.settle(ctx, event.Session, event.Status)
}

func (s *checkoutService) Orders(ctx context.Context, sessionKey string) ([]*domain.Order, error) {
	return s.orders.ListBySessionKey(ctx, sessionKey)
}

// settle moves the order to status. The shopper's cart is cleared only on the
// transition into paid, so redelivered events leave a newer cart alone.
func (s *checkoutService) settle(ctx context.Context, session stripe.Session, status domain.PaymentStatus) error {
	if status == domain.PaymentPending {
		return nil
	}

	sessionKey := session.ClientReference
	order, err := s.orders.FindByCheckoutSessionID(ctx, session.ID)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		s.logger.Warn("No order for checkout session", zap.String("checkout_session_id", session.ID))
	case err != nil:
		return err
	default:
		if order.PaymentStatus == status {
			return nil
		}
		if order.PaymentStatus == domain.PaymentPaid {
			s.logger.Warn("Ignoring status change of a paid order",
				zap.String("checkout_session_id", session.ID),
				zap.String("status", string(status)),
			)
			return nil
		}
		if err := s.orders.UpdatePaymentStatus(ctx, session.ID, status, session.CustomerEmail); err != nil {
			return err
		}
		sessionKey = order.SessionKey
	}

	if status != domain.PaymentPaid || sessionKey == "" {
		return nil
	}
	if err := s.carts.Clear(ctx, sessionKey); err != nil {
		return fmt.Errorf("failed to clear cart after payment: %w", err)
	}
	s.logger.Info("Cart cleared after payment",
		zap.String("session_key", sessionKey),
		zap.String("checkout_session_id", session.ID),
	)
	return nil
}
