package service

import (
	"context"
	"time"

	"rental-platform/internal/model"
	"rental-platform/internal/store"
)

// AvailableIn is the single implementation of the availability contract:
// total quantity minus maintenance units minus the summed quantity of ACTIVE
// windows overlapping [start, end], clamped at zero. The public query path
// and the coordinator's in-transaction check both go through it, so there is
// exactly one overlap predicate in the system.
func AvailableIn(ctx context.Context, view store.View, productID string, start, end time.Time, excludeBookingID string) (int, error) {
	start = model.Day(start)
	end = model.Day(end)
	if end.Before(start) {
		return 0, &model.InvalidRangeError{Start: start, End: end, Reason: "end date before start date"}
	}

	product, err := view.Product(ctx, productID)
	if err != nil {
		return 0, err
	}

	windows, err := view.OverlappingWindows(ctx, productID, start, end, excludeBookingID)
	if err != nil {
		return 0, err
	}

	reserved := 0
	for _, w := range windows {
		reserved += w.Quantity
	}

	free := product.RentableQuantity() - reserved
	if free < 0 {
		free = 0
	}
	return free, nil
}

type AvailabilityService struct {
	store store.Store
}

func NewAvailabilityService(st store.Store) *AvailabilityService {
	return &AvailabilityService{store: st}
}

func (s *AvailabilityService) AvailableQuantity(ctx context.Context, productID string, start, end time.Time) (int, error) {
	return AvailableIn(ctx, s.store, productID, start, end, "")
}

// AvailableQuantityExcluding ignores the windows owned by excludeBookingID,
// so a booking being modified is not counted against itself.
func (s *AvailabilityService) AvailableQuantityExcluding(ctx context.Context, productID string, start, end time.Time, excludeBookingID string) (int, error) {
	return AvailableIn(ctx, s.store, productID, start, end, excludeBookingID)
}
