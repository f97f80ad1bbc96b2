package service

import (
	"context"
	"time"

	"rental-platform/internal/model"
	"rental-platform/internal/store"
)

// LedgerService derives per-product unit counts from the reservation
// windows. Reserved and available are never stored as counters; they are a
// view over ACTIVE windows, so they cannot drift from the index.
type LedgerService struct {
	store store.Store
}

func NewLedgerService(st store.Store) *LedgerService {
	return &LedgerService{store: st}
}

func (s *LedgerService) QuantityReservedAt(ctx context.Context, productID string, at time.Time) (int, error) {
	day := model.Day(at)

	windows, err := s.store.OverlappingWindows(ctx, productID, day, day, "")
	if err != nil {
		return 0, err
	}

	reserved := 0
	for _, w := range windows {
		reserved += w.Quantity
	}
	return reserved, nil
}

func (s *LedgerService) Snapshot(ctx context.Context, productID string, at time.Time) (*model.StockLevel, error) {
	product, err := s.store.Product(ctx, productID)
	if err != nil {
		return nil, err
	}

	reserved, err := s.QuantityReservedAt(ctx, productID, at)
	if err != nil {
		return nil, err
	}

	available := product.TotalQuantity - product.MaintenanceQuantity - reserved
	if available < 0 {
		available = 0
	}

	return &model.StockLevel{
		ProductID:   productID,
		Total:       product.TotalQuantity,
		Maintenance: product.MaintenanceQuantity,
		Reserved:    reserved,
		Available:   available,
	}, nil
}
