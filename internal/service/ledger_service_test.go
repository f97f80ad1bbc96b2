package service

import (
	"context"
	"testing"
	"time"
)

func TestLedgerService_QuantityReservedAt(t *testing.T) {
	st := newTestStore(t, 5)
	reserve(t, st, "booking-a", 3, date(2026, time.August, 1), date(2026, time.August, 10))
	reserve(t, st, "booking-b", 1, date(2026, time.August, 8), date(2026, time.August, 20))

	ledger := NewLedgerService(st)

	reserved, err := ledger.QuantityReservedAt(context.Background(), "tent", date(2026, time.August, 9))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if reserved != 4 {
		t.Errorf("Expected 4 reserved on Aug 9, got %d", reserved)
	}

	reserved, err = ledger.QuantityReservedAt(context.Background(), "tent", date(2026, time.August, 15))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if reserved != 1 {
		t.Errorf("Expected 1 reserved on Aug 15, got %d", reserved)
	}
}

func TestLedgerService_SnapshotBalances(t *testing.T) {
	st := newTestStore(t, 5)
	reserve(t, st, "booking-a", 2, date(2026, time.August, 1), date(2026, time.August, 10))

	ledger := NewLedgerService(st)

	level, err := ledger.Snapshot(context.Background(), "tent", date(2026, time.August, 5))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if level.Total != 5 {
		t.Errorf("Expected total 5, got %d", level.Total)
	}
	if level.Reserved != 2 {
		t.Errorf("Expected reserved 2, got %d", level.Reserved)
	}
	if level.Available != 3 {
		t.Errorf("Expected available 3, got %d", level.Available)
	}
	if level.Total != level.Available+level.Reserved+level.Maintenance {
		t.Errorf("Expected total = available + reserved + maintenance, got %+v", level)
	}
}

func TestLedgerService_SnapshotUnknownProduct(t *testing.T) {
	ledger := NewLedgerService(newTestStore(t, 5))

	_, err := ledger.Snapshot(context.Background(), "kayak", date(2026, time.August, 5))
	if err == nil {
		t.Fatal("Expected error for unknown product")
	}
}
