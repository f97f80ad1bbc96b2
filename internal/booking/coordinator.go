package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rental-platform/internal/model"
	"rental-platform/internal/service"
	"rental-platform/internal/store"
)

type CreateBookingRequest struct {
	CustomerID string
	StartDate  time.Time
	EndDate    time.Time
	Items      []ItemRequest
}

type ItemRequest struct {
	ProductID string
	Quantity  int
	UnitRate  *float64
}

// Coordinator runs the booking protocol: validate availability for every
// line item, price the order, draw an order number and persist the booking
// with its reservation windows, all inside one store transaction. Either the
// whole booking commits or nothing does.
type Coordinator struct {
	store        store.Store
	pricing      *service.PricingService
	orderNumbers *service.OrderNumberGenerator
	logger       *zap.Logger

	maxRetries  int
	baseBackoff time.Duration
	now         func() time.Time
}

func NewCoordinator(st store.Store, pricing *service.PricingService, gen *service.OrderNumberGenerator, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:        st,
		pricing:      pricing,
		orderNumbers: gen,
		logger:       logger,
		maxRetries:   3,
		baseBackoff:  50 * time.Millisecond,
		now:          time.Now,
	}
}

func (c *Coordinator) SetRetryPolicy(maxRetries int, baseBackoff time.Duration) {
	c.maxRetries = maxRetries
	c.baseBackoff = baseBackoff
}

func (c *Coordinator) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	start := model.Day(req.StartDate)
	end := model.Day(req.EndDate)

	if len(req.Items) == 0 {
		return nil, fmt.Errorf("booking requires at least one line item")
	}
	if end.Before(start) {
		return nil, &model.InvalidRangeError{Start: start, End: end, Reason: "end date before start date"}
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("quantity must be positive for product %s", item.ProductID)
		}
	}

	days := model.RentalDays(start, end)

	var booking *model.Booking
	var err error

	// Only transient serialization conflicts are retried. Business
	// rejections like InsufficientInventory are terminal.
	for attempt := 0; ; attempt++ {
		booking, err = c.attemptCreate(ctx, req, start, end, days)

		var conflict *model.ConcurrencyConflictError
		if err == nil || !errors.As(err, &conflict) || attempt >= c.maxRetries {
			break
		}

		c.logger.Warn("booking attempt conflicted, retrying",
			zap.String("customer_id", req.CustomerID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if werr := c.backoff(ctx, attempt); werr != nil {
			return nil, werr
		}
	}

	if err != nil {
		return nil, err
	}

	c.logger.Info("booking committed",
		zap.String("booking_id", booking.ID),
		zap.String("order_number", booking.OrderNumber),
		zap.String("customer_id", booking.CustomerID),
		zap.Int("line_items", len(booking.Items)),
		zap.Float64("total", booking.Total))

	return booking, nil
}

func (c *Coordinator) attemptCreate(ctx context.Context, req CreateBookingRequest, start, end time.Time, days int) (*model.Booking, error) {
	productIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	var booking *model.Booking

	err := c.store.RunInTx(ctx, productIDs, func(tx store.Tx) error {
		items := make([]model.LineItem, 0, len(req.Items))
		claimed := make(map[string]int)

		for _, ir := range req.Items {
			product, err := tx.Product(ctx, ir.ProductID)
			if err != nil {
				return err
			}
			if !product.Active {
				// a product pulled from the catalog is not rentable
				return &model.ProductNotFoundError{ProductID: ir.ProductID}
			}
			if product.MinRentalDays > 0 && days < product.MinRentalDays {
				return &model.InvalidRangeError{Start: start, End: end,
					Reason: fmt.Sprintf("product %s requires at least %d rental days", product.ID, product.MinRentalDays)}
			}
			if product.MaxRentalDays > 0 && days > product.MaxRentalDays {
				return &model.InvalidRangeError{Start: start, End: end,
					Reason: fmt.Sprintf("product %s allows at most %d rental days", product.ID, product.MaxRentalDays)}
			}

			available, err := service.AvailableIn(ctx, tx, ir.ProductID, start, end, "")
			if err != nil {
				return err
			}
			// claimed tracks earlier line items of the same request so two
			// lines for one product cannot each pass against the same units
			available -= claimed[ir.ProductID]
			if available < ir.Quantity {
				return &model.InsufficientInventoryError{
					ProductID: ir.ProductID,
					Available: available,
					Requested: ir.Quantity,
				}
			}
			claimed[ir.ProductID] += ir.Quantity

			rate := product.BaseRate
			if ir.UnitRate != nil {
				rate = *ir.UnitRate
			}
			items = append(items, model.LineItem{
				ProductID: ir.ProductID,
				Quantity:  ir.Quantity,
				UnitRate:  rate,
				LineTotal: service.LineTotal(rate, ir.Quantity, days),
			})
		}

		quote := c.pricing.Quote(req.CustomerID, items)
		now := c.now()

		orderNumber, err := c.orderNumbers.Next(ctx, tx, now)
		if err != nil {
			return err
		}

		b := &model.Booking{
			ID:          uuid.New().String(),
			OrderNumber: orderNumber,
			CustomerID:  req.CustomerID,
			StartDate:   start,
			EndDate:     end,
			Items:       items,
			Status:      model.BookingStatusPending,
			Subtotal:    quote.Subtotal,
			Discount:    quote.Discount,
			Tax:         quote.Tax,
			Total:       quote.Total,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}

		for _, item := range items {
			w := &model.ReservationWindow{
				ID:        uuid.New().String(),
				ProductID: item.ProductID,
				BookingID: b.ID,
				StartDate: start,
				EndDate:   end,
				Quantity:  item.Quantity,
				Status:    model.WindowStatusActive,
			}
			if err := tx.InsertWindow(ctx, w); err != nil {
				return err
			}
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// CancelBooking releases every reservation window the booking owns and is
// idempotent: cancelling an already-cancelled booking returns it unchanged.
// Cancellation never needs to re-validate availability, it only frees units.
func (c *Coordinator) CancelBooking(ctx context.Context, bookingID, reason string) (*model.Booking, error) {
	existing, err := c.store.Booking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	err = c.store.RunInTx(ctx, existing.ProductIDs(), func(tx store.Tx) error {
		b, err := tx.Booking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == model.BookingStatusCancelled {
			return nil
		}
		if !b.Cancellable() {
			return &model.InvalidTransitionError{BookingID: bookingID, From: b.Status, To: model.BookingStatusCancelled}
		}
		if err := tx.UpdateBookingStatus(ctx, bookingID, model.BookingStatusCancelled, reason); err != nil {
			return err
		}
		return tx.UpdateWindowStatus(ctx, bookingID, model.WindowStatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("booking cancelled",
		zap.String("booking_id", bookingID),
		zap.String("reason", reason))

	return c.store.Booking(ctx, bookingID)
}

func (c *Coordinator) ConfirmBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	return c.transition(ctx, bookingID, model.BookingStatusPending, model.BookingStatusConfirmed, "")
}

func (c *Coordinator) RecordPickup(ctx context.Context, bookingID string) (*model.Booking, error) {
	return c.transition(ctx, bookingID, model.BookingStatusConfirmed, model.BookingStatusActive, "")
}

// RecordReturn marks the rental returned; its windows stop counting against
// availability from this moment forward.
func (c *Coordinator) RecordReturn(ctx context.Context, bookingID string) (*model.Booking, error) {
	return c.transition(ctx, bookingID, model.BookingStatusActive, model.BookingStatusReturned, model.WindowStatusReturned)
}

func (c *Coordinator) CompleteBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	return c.transition(ctx, bookingID, model.BookingStatusReturned, model.BookingStatusCompleted, "")
}

func (c *Coordinator) GetBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	return c.store.Booking(ctx, bookingID)
}

func (c *Coordinator) transition(ctx context.Context, bookingID string, from, to model.BookingStatus, windowStatus model.WindowStatus) (*model.Booking, error) {
	existing, err := c.store.Booking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	err = c.store.RunInTx(ctx, existing.ProductIDs(), func(tx store.Tx) error {
		b, err := tx.Booking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != from {
			return &model.InvalidTransitionError{BookingID: bookingID, From: b.Status, To: to}
		}
		if err := tx.UpdateBookingStatus(ctx, bookingID, to, ""); err != nil {
			return err
		}
		if windowStatus != "" {
			return tx.UpdateWindowStatus(ctx, bookingID, windowStatus)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c.store.Booking(ctx, bookingID)
}

func (c *Coordinator) backoff(ctx context.Context, attempt int) error {
	delay := c.baseBackoff * (1 << attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
