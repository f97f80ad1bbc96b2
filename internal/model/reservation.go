package model

import "time"

type ReservationWindow struct {
	ID        string
	ProductID string
	BookingID string
	StartDate time.Time
	EndDate   time.Time
	Quantity  int
	Status    WindowStatus
}

type WindowStatus string

const (
	WindowStatusActive    WindowStatus = "active"
	WindowStatusReturned  WindowStatus = "returned"
	WindowStatusCancelled WindowStatus = "cancelled"
)

// Overlaps reports whether the window's date range intersects [start, end].
// Both boundaries are inclusive: a window ending on a given day still holds
// its units for the whole of that day.
func (w *ReservationWindow) Overlaps(start, end time.Time) bool {
	return !w.StartDate.After(end) && !w.EndDate.Before(start)
}

func (w *ReservationWindow) Covers(instant time.Time) bool {
	return w.Overlaps(instant, instant)
}
