package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the four failure kinds this core can produce. Callers
// branch with errors.Is and pull context with errors.As; message text is not
// part of the contract.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrStorage           = errors.New("storage failure")
)

// NotFoundError reports a missing product or transaction.
type NotFoundError struct {
	Entity string // "product" or "transaction"
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError reports a movement that would drive stock_quantity
// below zero. Requested is the signed delta that was attempted.
type InsufficientStockError struct {
	ProductID int
	Current   int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: have %d, requested delta %d",
		e.ProductID, e.Current, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvalidInputError reports a business-rule violation in the caller's input.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// StorageError wraps a failure of the underlying store. The enclosing atomic
// unit is rolled back, so callers may retry the whole operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// IsRetryable reports whether the operation may succeed if reissued as-is.
// Business-rule rejections are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsClientError reports whether the failure is attributable to the caller.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidInput)
}
