// Package checkout turns a cart into the request a hosted payment processor needs
// to open a checkout session. It never talks to the processor itself.
package checkout

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"jewel-store/internal/domain"

	"github.com/google/uuid"
)

// LineItem is one priced row of a checkout session.
type LineItem struct {
	ProductID            uuid.UUID
	VariantSignature     string
	DisplayName          string
	DisplayImage         string
	UnitAmountMinorUnits int64
	Quantity             int
}

// SessionRequest is everything the payment processor needs to open a hosted session.
type SessionRequest struct {
	LineItems     []LineItem
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string

	// ClientReference ties the session back to the shopper's cart session key.
	ClientReference string
}

// Total sums unit amount times quantity across the request's line items.
func (r SessionRequest) Total() domain.Money {
	var total domain.Money
	for _, li := range r.LineItems {
		total += domain.Money(li.UnitAmountMinorUnits).Times(li.Quantity)
	}
	return total
}

// BuildSessionRequest maps every cart line to a session line item. Prices already
// live in minor units, so amounts are copied without conversion.
func BuildSessionRequest(cart *domain.Cart, successURL, cancelURL string) (SessionRequest, error) {
	if cart == nil || len(cart.Items) == 0 {
		return SessionRequest{}, domain.ErrEmptyCart
	}

	items := make([]LineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.Quantity < 1 {
			return SessionRequest{}, fmt.Errorf("%w: %s has quantity %d", domain.ErrInvalidQuantity, item.DisplayName, item.Quantity)
		}
		items = append(items, LineItem{
			ProductID:            item.ProductID,
			VariantSignature:     item.VariantSignature,
			DisplayName:          lineName(item),
			DisplayImage:         item.DisplayImage,
			UnitAmountMinorUnits: int64(item.UnitPrice),
			Quantity:             item.Quantity,
		})
	}

	return SessionRequest{
		LineItems:  items,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	}, nil
}

// lineName appends the chosen options so the hosted page shows which variant was bought.
func lineName(item domain.LineItem) string {
	if len(item.Selection) == 0 {
		return item.DisplayName
	}
	return fmt.Sprintf("%s (%s)", item.DisplayName, describe(item.Selection))
}

func describe(sel domain.Selection) string {
	labels := make([]string, 0, len(sel))
	for _, dim := range slices.Sorted(maps.Keys(sel)) {
		labels = append(labels, sel[dim])
	}
	return strings.Join(labels, ", ")
}
