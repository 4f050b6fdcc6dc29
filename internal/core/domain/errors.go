package domain

import "errors"

// Validation failures. All are raised before any cart state is mutated.
var (
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrIncompleteProduct = errors.New("product snapshot missing id, name or price")
	ErrInvalidPrice      = errors.New("product price must be non-negative")
	ErrProductInactive   = errors.New("product is no longer for sale")
	ErrStockExceeded     = errors.New("quantity exceeds stock limit")
	ErrItemUnavailable   = errors.New("item is unavailable")
)
