package model

import "time"

type Booking struct {
	ID           string
	OrderNumber  string
	CustomerID   string
	StartDate    time.Time
	EndDate      time.Time
	Items        []LineItem
	Status       BookingStatus
	Subtotal     float64
	Discount     float64
	Tax          float64
	Total        float64
	CancelReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type LineItem struct {
	ProductID string
	Quantity  int
	UnitRate  float64
	LineTotal float64
}

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusActive    BookingStatus = "active"
	BookingStatusReturned  BookingStatus = "returned"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Cancellable reports whether the booking can still be cancelled, which is
// only the case before pickup.
func (b *Booking) Cancellable() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

func (b *Booking) ProductIDs() []string {
	ids := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
