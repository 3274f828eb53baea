package stock

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("stock: product not found")
	ErrInvalidQuantity   = errors.New("stock: invalid quantity")
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	ErrSystem            = errors.New("stock: system error")
	// ErrDuplicateRecord means a record with the same id is still live; nothing was deducted.
	ErrDuplicateRecord = errors.New("stock: record id already used")
)

const (
	// DefaultRecordTTL is how long a record lives in the fast store unless the caller overrides it.
	DefaultRecordTTL = 7 * 24 * time.Hour
	// OfflineRecordTTL is the grace window applied to records of a delisted product.
	OfflineRecordTTL = 24 * time.Hour
)

// DeductResult is the business outcome of a deduction. Failures here are routine and are not errors.
type DeductResult int

const (
	DeductSucceeded DeductResult = iota + 1
	DeductInvalidAmount
	DeductProductNotFound
	DeductInsufficientStock
)

func (r DeductResult) String() string {
	switch r {
	case DeductSucceeded:
		return "success"
	case DeductInvalidAmount:
		return "invalid_amount"
	case DeductProductNotFound:
		return "product_not_found"
	case DeductInsufficientStock:
		return "insufficient_stock"
	default:
		return "unknown"
	}
}

// Err maps a non-success outcome to its sentinel so transports can branch with errors.Is.
func (r DeductResult) Err() error {
	switch r {
	case DeductSucceeded:
		return nil
	case DeductInvalidAmount:
		return ErrInvalidQuantity
	case DeductProductNotFound:
		return ErrNotFound
	case DeductInsufficientStock:
		return ErrInsufficientStock
	default:
		return ErrSystem
	}
}

// AsSystemError wraps err with ErrSystem unless it already carries it.
func AsSystemError(err error) error {
	if err == nil || errors.Is(err, ErrSystem) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSystem, err)
}
