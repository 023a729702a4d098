package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Detail errors below unwrap to one of these, so callers can
// branch with errors.Is and still pull details out with errors.As.
var (
	ErrValidation         = errors.New("validation failed")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrConflict           = errors.New("conflict")

	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrSequenceExhausted    = errors.New("daily order sequence exhausted")
	ErrVersionConflict      = errors.New("order was modified concurrently")
	ErrStockConflict        = errors.New("stock adjustment rejected")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// OrNil returns nil when no field failed, so callers can `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

type UnavailableError struct {
	ProductID string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

func (e *UnavailableError) Unwrap() error { return ErrProductUnavailable }

type StockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s. Available: %d", e.Name, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order cannot move from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Kind maps an error onto its machine-readable kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrConflict), errors.Is(err, ErrVersionConflict):
		return "conflict"
	default:
		return "internal"
	}
}
