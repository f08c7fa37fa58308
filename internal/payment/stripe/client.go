// Package stripe opens hosted Stripe Checkout Sessions over the REST API and
// verifies the webhooks Stripe sends back when a session completes.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jewel-store/internal/checkout"
	"jewel-store/internal/domain"

	"go.uber.org/zap"
)

var (
	ErrConfigInvalid    = errors.New("stripe config invalid")
	ErrRequestFailed    = errors.New("stripe request failed")
	ErrResponseInvalid  = errors.New("stripe response invalid")
	ErrSignatureInvalid = errors.New("stripe signature invalid")
)

const (
	defaultAPIBaseURL       = "https://api.stripe.com"
	defaultTimeout          = 12 * time.Second
	defaultWebhookTolerance = 5 * time.Minute
)

// Config holds the Stripe account settings.
type Config struct {
	SecretKey        string
	WebhookSecret    string
	APIBaseURL       string
	Currency         string
	AllowedCountries []string
	WebhookTolerance time.Duration
}

// Session is the subset of a Checkout Session the storefront reads back.
type Session struct {
	ID              string
	URL             string
	Status          domain.PaymentStatus
	AmountTotal     domain.Money
	Currency        string
	CustomerEmail   string
	ClientReference string
}

// Client talks to the Stripe REST API with form-encoded requests.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient validates cfg and fills defaults.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.WebhookSecret = strings.TrimSpace(cfg.WebhookSecret)
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	cfg.Currency = strings.ToLower(strings.TrimSpace(cfg.Currency))
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = defaultWebhookTolerance
	}

	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: secret key is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("%w: api base url is invalid", ErrConfigInvalid)
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}, nil
}

// Currency returns the lower-case ISO currency sessions are opened in.
func (c *Client) Currency() string {
	return c.cfg.Currency
}

// CreateCheckoutSession opens a hosted checkout session with one Stripe line item
// per request line.
func (c *Client) CreateCheckoutSession(ctx context.Context, req checkout.SessionRequest) (*Session, error) {
	if len(req.LineItems) == 0 {
		return nil, domain.ErrEmptyCart
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = c.cfg.Currency
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("billing_address_collection", "required")
	if req.ClientReference != "" {
		form.Set("client_reference_id", req.ClientReference)
		form.Set("metadata[session_key]", req.ClientReference)
	}
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	for _, country := range c.cfg.AllowedCountries {
		form.Add("shipping_address_collection[allowed_countries][]", strings.ToUpper(strings.TrimSpace(country)))
	}
	for i, li := range req.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.Itoa(li.Quantity))
		form.Set(prefix+"[price_data][currency]", currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(li.UnitAmountMinorUnits, 10))
		form.Set(prefix+"[price_data][product_data][name]", li.DisplayName)
		if strings.HasPrefix(li.DisplayImage, "http") {
			form.Set(prefix+"[price_data][product_data][images][0]", li.DisplayImage)
		}
		form.Set(prefix+"[price_data][product_data][metadata][product_id]", li.ProductID.String())
		form.Set(prefix+"[price_data][product_data][metadata][variant_signature]", li.VariantSignature)
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" || resp.URL == "" {
		return nil, fmt.Errorf("%w: missing session id or url", ErrResponseInvalid)
	}

	c.logger.Info("Checkout session created",
		zap.String("session_id", resp.ID),
		zap.Int("line_items", len(req.LineItems)),
	)
	return resp.toSession(), nil
}

// RetrieveSession looks a checkout session up by id.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrRequestFailed)
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrResponseInvalid)
	}
	return resp.toSession(), nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request failed: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		_ = json.Unmarshal(raw, &apiErr)
		c.logger.Warn("Stripe request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Error.Message),
		)
		return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, apiErr.Error.Message)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return nil
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type sessionResponse struct {
	ID                string `json:"id"`
	Object            string `json:"object"`
	URL               string `json:"url"`
	Status            string `json:"status"`
	PaymentStatus     string `json:"payment_status"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
	CustomerEmail     string `json:"customer_email"`
	ClientReferenceID string `json:"client_reference_id"`
	CustomerDetails   struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

func (r sessionResponse) toSession() *Session {
	email := r.CustomerDetails.Email
	if email == "" {
		email = r.CustomerEmail
	}
	return &Session{
		ID:              r.ID,
		URL:             r.URL,
		Status:          mapCheckoutSessionStatus(r.PaymentStatus, r.Status),
		AmountTotal:     domain.Money(r.AmountTotal),
		Currency:        r.Currency,
		CustomerEmail:   email,
		ClientReference: r.ClientReferenceID,
	}
}

func mapCheckoutSessionStatus(paymentStatus, sessionStatus string) domain.PaymentStatus {
	paymentStatus = strings.ToLower(strings.TrimSpace(paymentStatus))
	sessionStatus = strings.ToLower(strings.TrimSpace(sessionStatus))
	if paymentStatus == "paid" {
		return domain.PaymentPaid
	}
	if sessionStatus == "expired" {
		return domain.PaymentExpired
	}
	if sessionStatus == "complete" && paymentStatus == "no_payment_required" {
		return domain.PaymentPaid
	}
	return domain.PaymentPending
}
