package store

import (
	"context"
	"sync"
	"time"

	"rental-platform/internal/model"
)

// Memory is the single-process store. One mutex serializes transactions,
// which makes RunInTx trivially atomic; the product lock list is only
// meaningful for the shared-database implementation.
type Memory struct {
	mu           sync.RWMutex
	products     map[string]*model.Product
	bookings     map[string]*model.Booking
	windows      map[string][]*model.ReservationWindow
	winByBooking map[string][]*model.ReservationWindow
	counters     map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		products:     make(map[string]*model.Product),
		bookings:     make(map[string]*model.Booking),
		windows:      make(map[string][]*model.ReservationWindow),
		winByBooking: make(map[string][]*model.ReservationWindow),
		counters:     make(map[string]int),
	}
}

func (m *Memory) Close() {}

func (m *Memory) UpsertProduct(ctx context.Context, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *Memory) Product(ctx context.Context, id string) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.productLocked(id)
}

func (m *Memory) Booking(ctx context.Context, id string) (*model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bookingLocked(id)
}

func (m *Memory) OverlappingWindows(ctx context.Context, productID string, start, end time.Time, excludeBookingID string) ([]model.ReservationWindow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overlappingLocked(productID, start, end, excludeBookingID, nil, nil), nil
}

func (m *Memory) RunInTx(ctx context.Context, productIDs []string, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		m:             m,
		bookingStatus: make(map[string]bookingStatusChange),
		windowStatus:  make(map[string]model.WindowStatus),
		counters:      make(map[string]int),
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx.commit()
	return nil
}

func (m *Memory) productLocked(id string) (*model.Product, error) {
	p, exists := m.products[id]
	if !exists {
		return nil, &model.ProductNotFoundError{ProductID: id}
	}

	cp := *p
	return &cp, nil
}

func (m *Memory) bookingLocked(id string) (*model.Booking, error) {
	b, exists := m.bookings[id]
	if !exists {
		return nil, &model.BookingNotFoundError{BookingID: id}
	}
	return copyBooking(b), nil
}

// overlappingLocked applies the transaction's pending status changes and
// staged windows on top of committed state, so an in-flight transaction
// observes its own writes.
func (m *Memory) overlappingLocked(productID string, start, end time.Time, excludeBookingID string, staged []*model.ReservationWindow, statusOverride map[string]model.WindowStatus) []model.ReservationWindow {
	var result []model.ReservationWindow

	collect := func(w *model.ReservationWindow) {
		status := w.Status
		if statusOverride != nil {
			if s, ok := statusOverride[w.BookingID]; ok {
				status = s
			}
		}
		if status != model.WindowStatusActive {
			return
		}
		if excludeBookingID != "" && w.BookingID == excludeBookingID {
			return
		}
		if !w.Overlaps(start, end) {
			return
		}
		result = append(result, *w)
	}

	for _, w := range m.windows[productID] {
		collect(w)
	}
	for _, w := range staged {
		if w.ProductID == productID {
			collect(w)
		}
	}

	return result
}

type bookingStatusChange struct {
	status model.BookingStatus
	reason string
}

type memTx struct {
	m             *Memory
	bookings      []*model.Booking
	windows       []*model.ReservationWindow
	bookingStatus map[string]bookingStatusChange
	windowStatus  map[string]model.WindowStatus
	counters      map[string]int
}

func (tx *memTx) Product(ctx context.Context, id string) (*model.Product, error) {
	return tx.m.productLocked(id)
}

func (tx *memTx) Booking(ctx context.Context, id string) (*model.Booking, error) {
	for _, b := range tx.bookings {
		if b.ID == id {
			cp := copyBooking(b)
			tx.applyStatus(cp)
			return cp, nil
		}
	}

	b, err := tx.m.bookingLocked(id)
	if err != nil {
		return nil, err
	}
	tx.applyStatus(b)
	return b, nil
}

func (tx *memTx) OverlappingWindows(ctx context.Context, productID string, start, end time.Time, excludeBookingID string) ([]model.ReservationWindow, error) {
	return tx.m.overlappingLocked(productID, start, end, excludeBookingID, tx.windows, tx.windowStatus), nil
}

func (tx *memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	tx.bookings = append(tx.bookings, copyBooking(b))
	return nil
}

func (tx *memTx) InsertWindow(ctx context.Context, w *model.ReservationWindow) error {
	cp := *w
	tx.windows = append(tx.windows, &cp)
	return nil
}

func (tx *memTx) UpdateBookingStatus(ctx context.Context, bookingID string, status model.BookingStatus, reason string) error {
	if _, err := tx.Booking(ctx, bookingID); err != nil {
		return err
	}
	tx.bookingStatus[bookingID] = bookingStatusChange{status: status, reason: reason}
	return nil
}

func (tx *memTx) UpdateWindowStatus(ctx context.Context, bookingID string, status model.WindowStatus) error {
	tx.windowStatus[bookingID] = status
	return nil
}

func (tx *memTx) NextOrderSequence(ctx context.Context, scope string) (int, error) {
	next, staged := tx.counters[scope]
	if !staged {
		next = tx.m.counters[scope]
	}
	next++
	tx.counters[scope] = next
	return next, nil
}

func (tx *memTx) applyStatus(b *model.Booking) {
	if change, ok := tx.bookingStatus[b.ID]; ok {
		b.Status = change.status
		if change.reason != "" {
			b.CancelReason = change.reason
		}
	}
}

func (tx *memTx) commit() {
	now := time.Now()

	for _, b := range tx.bookings {
		tx.m.bookings[b.ID] = b
	}
	for _, w := range tx.windows {
		tx.m.windows[w.ProductID] = append(tx.m.windows[w.ProductID], w)
		tx.m.winByBooking[w.BookingID] = append(tx.m.winByBooking[w.BookingID], w)
	}
	for id, change := range tx.bookingStatus {
		if b, exists := tx.m.bookings[id]; exists {
			b.Status = change.status
			if change.reason != "" {
				b.CancelReason = change.reason
			}
			b.UpdatedAt = now
		}
	}
	for bookingID, status := range tx.windowStatus {
		for _, w := range tx.m.winByBooking[bookingID] {
			w.Status = status
		}
	}
	for scope, value := range tx.counters {
		tx.m.counters[scope] = value
	}
}

func copyBooking(b *model.Booking) *model.Booking {
	cp := *b
	cp.Items = append([]model.LineItem(nil), b.Items...)
	return &cp
}
