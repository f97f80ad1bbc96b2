package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"rental-platform/internal/store"
)

func TestOrderNumberGenerator_Format(t *testing.T) {
	st := store.NewMemory()
	gen := NewOrderNumberGenerator("RNT")

	var number string
	err := st.RunInTx(context.Background(), nil, func(tx store.Tx) error {
		var err error
		number, err = gen.Next(context.Background(), tx, date(2026, time.August, 15))
		return err
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if number != "RNT2026080001" {
		t.Errorf("Expected RNT2026080001, got %s", number)
	}
}

func TestOrderNumberGenerator_SequencePerMonth(t *testing.T) {
	st := store.NewMemory()
	gen := NewOrderNumberGenerator("RNT")

	next := func(at time.Time) string {
		var number string
		err := st.RunInTx(context.Background(), nil, func(tx store.Tx) error {
			var err error
			number, err = gen.Next(context.Background(), tx, at)
			return err
		})
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		return number
	}

	if got := next(date(2026, time.August, 1)); got != "RNT2026080001" {
		t.Errorf("Expected RNT2026080001, got %s", got)
	}
	if got := next(date(2026, time.August, 20)); got != "RNT2026080002" {
		t.Errorf("Expected RNT2026080002, got %s", got)
	}
	if got := next(date(2026, time.September, 1)); got != "RNT2026090001" {
		t.Errorf("Expected new scope to restart at 0001, got %s", got)
	}
}

func TestOrderNumberGenerator_AbortedTransactionDrawsNoNumber(t *testing.T) {
	st := store.NewMemory()
	gen := NewOrderNumberGenerator("RNT")
	boom := context.DeadlineExceeded

	err := st.RunInTx(context.Background(), nil, func(tx store.Tx) error {
		if _, err := gen.Next(context.Background(), tx, date(2026, time.August, 1)); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("Expected injected error, got: %v", err)
	}

	var number string
	err = st.RunInTx(context.Background(), nil, func(tx store.Tx) error {
		var err error
		number, err = gen.Next(context.Background(), tx, date(2026, time.August, 1))
		return err
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if number != "RNT2026080001" {
		t.Errorf("Expected aborted draw to be rolled back, got %s", number)
	}
}

func TestOrderNumberGenerator_ConcurrentDrawsAreUnique(t *testing.T) {
	st := store.NewMemory()
	gen := NewOrderNumberGenerator("RNT")
	at := date(2026, time.August, 1)

	const workers = 50
	numbers := make(chan string, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.RunInTx(context.Background(), nil, func(tx store.Tx) error {
				number, err := gen.Next(context.Background(), tx, at)
				if err != nil {
					return err
				}
				numbers <- number
				return nil
			})
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		}()
	}

	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for number := range numbers {
		if seen[number] {
			t.Errorf("Duplicate order number: %s", number)
		}
		seen[number] = true
	}
	if len(seen) != workers {
		t.Errorf("Expected %d distinct numbers, got %d", workers, len(seen))
	}
}
