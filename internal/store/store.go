package store

import (
	"context"
	"time"

	"rental-platform/internal/model"
)

// View is the read side of the reservation index. The public availability
// query reads a committed view; the coordinator reads the same methods
// through its transaction so both paths share one overlap implementation.
type View interface {
	Product(ctx context.Context, id string) (*model.Product, error)

	// OverlappingWindows returns the ACTIVE windows for productID whose
	// inclusive date range intersects [start, end]. Windows belonging to
	// excludeBookingID are skipped when it is non-empty.
	OverlappingWindows(ctx context.Context, productID string, start, end time.Time, excludeBookingID string) ([]model.ReservationWindow, error)

	Booking(ctx context.Context, id string) (*model.Booking, error)
}

// Tx is the write scope handed to a RunInTx function. Nothing written
// through it is visible to other callers until the function returns nil.
type Tx interface {
	View

	InsertBooking(ctx context.Context, b *model.Booking) error
	InsertWindow(ctx context.Context, w *model.ReservationWindow) error
	UpdateBookingStatus(ctx context.Context, bookingID string, status model.BookingStatus, reason string) error
	UpdateWindowStatus(ctx context.Context, bookingID string, status model.WindowStatus) error

	// NextOrderSequence atomically increments and returns the per-scope
	// order counter. The draw is part of the transaction, so an aborted
	// booking never leaves an orphaned number behind.
	NextOrderSequence(ctx context.Context, scope string) (int, error)
}

type Store interface {
	View

	UpsertProduct(ctx context.Context, p *model.Product) error

	// RunInTx executes fn atomically while holding consistency locks on the
	// given products, serializing it against any other transaction touching
	// them. fn's error is returned unchanged after a full rollback.
	RunInTx(ctx context.Context, productIDs []string, fn func(tx Tx) error) error

	Close()
}
