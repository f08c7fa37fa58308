package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the state of an order's hosted checkout session.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentExpired PaymentStatus = "expired"
)

// Order records one checkout session handed to the payment processor.
type Order struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	CheckoutSessionID string        `json:"checkout_session_id" db:"checkout_session_id"`
	SessionKey        string        `json:"-" db:"session_key"`
	CustomerEmail     string        `json:"customer_email,omitempty" db:"customer_email"`
	Items             LineItems     `json:"items" db:"items"`
	Total             Money         `json:"total" db:"total"`
	Currency          string        `json:"currency" db:"currency"`
	PaymentStatus     PaymentStatus `json:"payment_status" db:"payment_status"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}
