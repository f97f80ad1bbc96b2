package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"rental-platform/internal/booking"
	"rental-platform/internal/model"
	"rental-platform/internal/service"
)

const dateLayout = "2006-01-02"

type Handler struct {
	coordinator  *booking.Coordinator
	availability *service.AvailabilityService
	ledger       *service.LedgerService
	logger       *zap.Logger
}

func NewHandler(c *booking.Coordinator, a *service.AvailabilityService, l *service.LedgerService, logger *zap.Logger) *Handler {
	return &Handler{
		coordinator:  c,
		availability: a,
		ledger:       l,
		logger:       logger,
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/bookings", h.CreateBooking)
	r.Get("/bookings/{id}", h.GetBooking)
	r.Post("/bookings/{id}/cancel", h.CancelBooking)
	r.Post("/bookings/{id}/confirm", h.ConfirmBooking)
	r.Post("/bookings/{id}/pickup", h.RecordPickup)
	r.Post("/bookings/{id}/return", h.RecordReturn)
	r.Post("/bookings/{id}/complete", h.CompleteBooking)

	r.Get("/availability", h.GetAvailability)
	r.Get("/products/{id}/stock", h.GetStock)
	r.Get("/health", h.HealthCheck)

	return r
}

type errorResponse struct {
	Reason  string      `json:"reason"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type lineItemResponse struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitRate  float64 `json:"unit_rate"`
	LineTotal float64 `json:"line_total"`
}

type bookingResponse struct {
	ID           string             `json:"id"`
	OrderNumber  string             `json:"order_number"`
	CustomerID   string             `json:"customer_id"`
	Start        string             `json:"start"`
	End          string             `json:"end"`
	Items        []lineItemResponse `json:"items"`
	Status       string             `json:"status"`
	Subtotal     float64            `json:"subtotal"`
	Discount     float64            `json:"discount"`
	Tax          float64            `json:"tax"`
	Total        float64            `json:"total"`
	CancelReason string             `json:"cancel_reason,omitempty"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
	items := make([]lineItemResponse, 0, len(b.Items))
	for _, item := range b.Items {
		items = append(items, lineItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitRate:  item.UnitRate,
			LineTotal: item.LineTotal,
		})
	}
	return bookingResponse{
		ID:           b.ID,
		OrderNumber:  b.OrderNumber,
		CustomerID:   b.CustomerID,
		Start:        b.StartDate.Format(dateLayout),
		End:          b.EndDate.Format(dateLayout),
		Items:        items,
		Status:       string(b.Status),
		Subtotal:     b.Subtotal,
		Discount:     b.Discount,
		Tax:          b.Tax,
		Total:        b.Total,
		CancelReason: b.CancelReason,
	}
}

type createBookingRequest struct {
	CustomerID string `json:"customer_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Items      []struct {
		ProductID string   `json:"product_id"`
		Quantity  int      `json:"quantity"`
		UnitPrice *float64 `json:"unit_price,omitempty"`
	} `json:"items"`
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid JSON body", nil)
		return
	}
	if req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "customer_id is required", nil)
		return
	}

	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRange", "start must be a YYYY-MM-DD date", nil)
		return
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRange", "end must be a YYYY-MM-DD date", nil)
		return
	}

	createReq := booking.CreateBookingRequest{
		CustomerID: req.CustomerID,
		StartDate:  start,
		EndDate:    end,
	}
	for _, item := range req.Items {
		createReq.Items = append(createReq.Items, booking.ItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitRate:  item.UnitPrice,
		})
	}

	b, err := h.coordinator.CreateBooking(r.Context(), createReq)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.coordinator.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.Body != nil {
		// missing or empty body means no reason given
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	b, err := h.coordinator.CancelBooking(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.coordinator.ConfirmBooking)
}

func (h *Handler) RecordPickup(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.coordinator.RecordPickup)
}

func (h *Handler) RecordReturn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.coordinator.RecordReturn)
}

func (h *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.coordinator.CompleteBooking)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (*model.Booking, error)) {
	b, err := op(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("productId")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "productId is required", nil)
		return
	}

	start, err := time.Parse(dateLayout, r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRange", "start must be a YYYY-MM-DD date", nil)
		return
	}
	end, err := time.Parse(dateLayout, r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRange", "end must be a YYYY-MM-DD date", nil)
		return
	}

	available, err := h.availability.AvailableQuantity(r.Context(), productID, start, end)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"availableQuantity": available})
}

func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRange", "at must be a YYYY-MM-DD date", nil)
			return
		}
		at = parsed
	}

	level, err := h.ledger.Snapshot(r.Context(), chi.URLParam(r, "id"), at)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product_id":  level.ProductID,
		"total":       level.Total,
		"maintenance": level.Maintenance,
		"reserved":    level.Reserved,
		"available":   level.Available,
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var invalidRange *model.InvalidRangeError
	var notFound *model.ProductNotFoundError
	var bookingNotFound *model.BookingNotFoundError
	var insufficient *model.InsufficientInventoryError
	var transition *model.InvalidTransitionError
	var conflict *model.ConcurrencyConflictError
	var persistence *model.PersistenceError

	switch {
	case errors.As(err, &invalidRange):
		writeError(w, http.StatusBadRequest, "InvalidRange", err.Error(), nil)
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "ProductNotFound", err.Error(),
			map[string]string{"product_id": notFound.ProductID})
	case errors.As(err, &bookingNotFound):
		writeError(w, http.StatusNotFound, "BookingNotFound", err.Error(), nil)
	case errors.As(err, &insufficient):
		writeError(w, http.StatusConflict, "InsufficientInventory", err.Error(),
			map[string]interface{}{
				"product_id": insufficient.ProductID,
				"available":  insufficient.Available,
				"requested":  insufficient.Requested,
			})
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, "InvalidTransition", err.Error(), nil)
	case errors.As(err, &conflict):
		writeError(w, http.StatusServiceUnavailable, "ConcurrencyConflict", err.Error(), nil)
	case errors.As(err, &persistence):
		h.logger.Error("storage failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "PersistenceFailure", "storage layer unavailable", nil)
	default:
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error(), nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, reason, message string, details interface{}) {
	writeJSON(w, status, errorResponse{Reason: reason, Message: message, Details: details})
}
