package service

import (
	"math"
	"sync"

	"rental-platform/internal/model"
)

// TaxStrategy is injected into the pricing path so the tax computation is
// never hardcoded in the coordinator.
type TaxStrategy interface {
	Tax(taxable float64) float64
}

type FlatRateTax struct {
	Rate float64
}

func (t FlatRateTax) Tax(taxable float64) float64 {
	return roundCents(taxable * t.Rate)
}

type Quote struct {
	Subtotal float64
	Discount float64
	Tax      float64
	Total    float64
}

type PricingService struct {
	mu                sync.RWMutex
	tax               TaxStrategy
	customerDiscounts map[string]float64
}

func NewPricingService(tax TaxStrategy) *PricingService {
	return &PricingService{
		tax:               tax,
		customerDiscounts: make(map[string]float64),
	}
}

func (s *PricingService) SetCustomerDiscount(customerID string, percentage float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customerDiscounts[customerID] = percentage
}

func (s *PricingService) Quote(customerID string, items []model.LineItem) Quote {
	s.mu.RLock()
	percentage := s.customerDiscounts[customerID]
	s.mu.RUnlock()

	subtotal := 0.0
	for _, item := range items {
		subtotal += item.LineTotal
	}
	subtotal = roundCents(subtotal)

	discount := roundCents(subtotal * percentage / 100.0)
	tax := s.tax.Tax(subtotal - discount)

	return Quote{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    roundCents(subtotal - discount + tax),
	}
}

// LineTotal prices one line item: rate per unit per day, over the inclusive
// day count of the rental range.
func LineTotal(unitRate float64, quantity, days int) float64 {
	return roundCents(unitRate * float64(quantity) * float64(days))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
