package product

import "time"

// DefaultVATFactor is applied when a product carries no tax rate of its own.
const DefaultVATFactor = 1.07

// Product is the catalog's core record.
type Product struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Tax         *float64  `json:"tax,omitempty"`
	Stock       int       `json:"stock"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PriceWithTax returns the unit price including tax. Products without an
// explicit rate fall back to the default VAT factor.
func (p Product) PriceWithTax() float64 {
	if p.Tax != nil {
		return p.Price * (1 + *p.Tax)
	}
	return p.Price * DefaultVATFactor
}
