package model

import (
	"fmt"
	"time"
)

type InvalidRangeError struct {
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range [%s, %s]: %s",
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"), e.Reason)
}

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

type BookingNotFoundError struct {
	BookingID string
}

func (e *BookingNotFoundError) Error() string {
	return fmt.Sprintf("booking not found: %s", e.BookingID)
}

// InsufficientInventoryError is a business rejection, not a system failure.
// It always names the first product that could not be satisfied.
type InsufficientInventoryError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ConcurrencyConflictError marks a transient serialization failure. Callers
// may retry the whole attempt; the coordinator does so a bounded number of
// times before surfacing it.
type ConcurrencyConflictError struct {
	Err error
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrent booking conflict: %v", e.Err)
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }

type InvalidTransitionError struct {
	BookingID string
	From      BookingStatus
	To        BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("booking %s cannot move from %s to %s", e.BookingID, e.From, e.To)
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
