package domain

import (
	"database/sql/driver"
	"encoding/json"
	"net/url"

	"github.com/google/uuid"
)

// Selection maps each variant group dimension to the chosen option label.
type Selection map[string]string

// Signature is the canonical serialization of the selection: entries sorted by
// dimension and query-escaped, so identical selections collide regardless of
// the order in which dimensions were chosen.
func (s Selection) Signature() string {
	values := make(url.Values, len(s))
	for dimension, label := range s {
		values.Set(dimension, label)
	}
	return values.Encode()
}

// Clone returns an independent copy of the selection.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ParseSignature rebuilds the selection a signature was derived from.
func ParseSignature(signature string) (Selection, error) {
	values, err := url.ParseQuery(signature)
	if err != nil {
		return nil, err
	}
	sel := make(Selection, len(values))
	for dimension := range values {
		sel[dimension] = values.Get(dimension)
	}
	return sel, nil
}

// Display holds what a cart line shows for its product.
type Display struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// LineItem is one row in a cart: a product, a selection and a quantity.
type LineItem struct {
	ProductID        uuid.UUID `json:"product_id"`
	VariantSignature string    `json:"variant_signature"`
	Selection        Selection `json:"selection"`
	Quantity         int       `json:"quantity"`
	UnitPrice        Money     `json:"unit_price"`
	DisplayName      string    `json:"display_name"`
	DisplayImage     string    `json:"display_image"`
}

// LineTotal returns unit price times quantity.
func (li LineItem) LineTotal() Money {
	return li.UnitPrice.Times(li.Quantity)
}

// LineItems is an ordered list of lines stored as one JSONB column, used for cart
// snapshots and for the items captured on an order.
type LineItems []LineItem

// Value implements driver.Valuer
func (li LineItems) Value() (driver.Value, error) {
	if li == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(li)
}

// Scan implements sql.Scanner
func (li *LineItems) Scan(value interface{}) error {
	return scanJSON(value, li)
}

// Cart is the ordered list of line items owned by one shopper session.
type Cart struct {
	Items []LineItem `json:"items"`
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{Items: []LineItem{}}
}

// Total sums unit price times quantity over all items.
func (c *Cart) Total() Money {
	var total Money
	for _, item := range c.Items {
		total += item.LineTotal()
	}
	return total
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c *Cart) Clone() *Cart {
	out := &Cart{Items: make([]LineItem, len(c.Items))}
	for i, item := range c.Items {
		item.Selection = item.Selection.Clone()
		out.Items[i] = item
	}
	return out
}
