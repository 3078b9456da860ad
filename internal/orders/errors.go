package orders

import (
	"errors"
	"fmt"
)

// Business outcomes the caller is expected to handle. Infrastructure
// failures (pool exhausted, connection dropped) are returned as-is.
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrLineItemNotFound    = errors.New("line item not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrProductUnavailable  = errors.New("product not available for sale")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConcurrencyConflict = errors.New("row modified concurrently")
	ErrConflict            = errors.New("conflicting state")
)

// StockError reports how far a request overshot the available stock.
// On updates Requested is the increase, not the full new quantity.
type StockError struct {
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
