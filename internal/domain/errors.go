package domain

import "errors"

// Error kinds surfaced by pricing, cart and checkout code. Callers match them
// with errors.Is; details such as the offending dimension are wrapped on top.
var (
	ErrUnknownDimension    = errors.New("unknown dimension")
	ErrIncompleteSelection = errors.New("incomplete selection")
	ErrInvalidOptionLabel  = errors.New("invalid option label")
	ErrInvalidQuantity     = errors.New("quantity must be a positive integer")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrPersistenceFailure  = errors.New("cart persistence failed")
	ErrInvalidPricing      = errors.New("invalid pricing")

	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCartNotFound     = errors.New("cart not found")
	ErrOrderNotFound    = errors.New("order not found")
)
