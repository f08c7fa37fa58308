package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jewel-store/internal/domain"
)

// Event is a verified webhook event about a checkout session.
type Event struct {
	ID      string
	Type    string
	Status  domain.PaymentStatus
	Session Session
}

type eventPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object sessionResponse `json:"object"`
	} `json:"data"`
}

// ParseWebhook checks the Stripe-Signature header against the raw body and decodes
// the checkout session the event refers to. Events about other object types are
// returned with an empty Session.
func (c *Client) ParseWebhook(signatureHeader string, body []byte, now time.Time) (*Event, error) {
	if c.cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret is required", ErrConfigInvalid)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrResponseInvalid)
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, fmt.Errorf("%w: Stripe-Signature is required", ErrSignatureInvalid)
	}

	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}
	if delta := now.Sub(time.Unix(timestamp, 0)).Abs(); delta > c.cfg.WebhookTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	expected := computeSignature(c.cfg.WebhookSecret, timestamp, body)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}

	var payload eventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode event failed", ErrResponseInvalid)
	}
	if payload.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrResponseInvalid)
	}

	event := &Event{ID: payload.ID, Type: payload.Type}
	if payload.Data.Object.Object == "checkout.session" {
		event.Session = *payload.Data.Object.toSession()
		event.Status = event.Session.Status
	}
	// completed only means paid once payment_status says so; delayed methods
	// follow up with async_payment_succeeded or async_payment_failed
	if status, ok := mapEventTypeStatus(payload.Type); ok {
		event.Status = status
	}
	return event, nil
}

func mapEventTypeStatus(eventType string) (domain.PaymentStatus, bool) {
	switch eventType {
	case "checkout.session.async_payment_succeeded":
		return domain.PaymentPaid, true
	case "checkout.session.expired":
		return domain.PaymentExpired, true
	case "checkout.session.async_payment_failed":
		return domain.PaymentFailed, true
	default:
		return "", false
	}
}

func computeSignature(secret string, timestamp int64, body []byte) string {
	payload := strconv.FormatInt(timestamp, 10) + "." + string(body)
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// SignPayload builds a Stripe-Signature header value for body.
func SignPayload(secret string, timestamp time.Time, body []byte) string {
	ts := timestamp.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, computeSignature(secret, ts, body))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil || parsed <= 0 {
				return 0, nil, fmt.Errorf("%w: invalid timestamp", ErrSignatureInvalid)
			}
			timestamp = parsed
		case "v1":
			if v := strings.TrimSpace(value); v != "" {
				signatures = append(signatures, strings.ToLower(v))
			}
		}
	}
	if timestamp <= 0 {
		return 0, nil, fmt.Errorf("%w: timestamp is missing", ErrSignatureInvalid)
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: v1 signature is missing", ErrSignatureInvalid)
	}
	return timestamp, signatures, nil
}
