package model

type Product struct {
	ID                  string
	Name                string
	TotalQuantity       int
	MaintenanceQuantity int
	BaseRate            float64
	MinRentalDays       int
	MaxRentalDays       int
	Active              bool
}

// RentableQuantity is the number of units that can ever be reserved at one
// instant: units pulled for maintenance never count as available.
func (p *Product) RentableQuantity() int {
	q := p.TotalQuantity - p.MaintenanceQuantity
	if q < 0 {
		return 0
	}
	return q
}

type StockLevel struct {
	ProductID   string
	Total       int
	Maintenance int
	Reserved    int
	Available   int
}
