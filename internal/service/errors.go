package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation")         // 400
	ErrUnauthorized      = errors.New("unauthorized")       // 401
	ErrForbidden         = errors.New("forbidden")          // 403
	ErrNotFound          = errors.New("not found")          // 404
	ErrConflict          = errors.New("conflict")           // 409
	ErrCartEmpty         = errors.New("cart is empty")      // 400
	ErrInsufficientStock = errors.New("insufficient stock") // 400
	ErrUnavailable       = errors.New("unavailable")        // 503
)

// InsufficientStockError reports how many units of a product are still available.
type InsufficientStockError struct {
	ProductID uint
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: %d remaining", e.ProductID, e.Remaining)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
