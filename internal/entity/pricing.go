package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type ShippingMethod string

const (
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
	ShippingPickup    ShippingMethod = "pickup"
)

func (m ShippingMethod) Valid() bool {
	switch m {
	case ShippingStandard, ShippingExpress, ShippingOvernight, ShippingPickup:
		return true
	}
	return false
}

var (
	DefaultTaxRate               = decimal.RequireFromString("0.08")
	DefaultFreeShippingThreshold = decimal.RequireFromString("100")
)

// DefaultShippingRates is the flat rate per method below the free-shipping threshold.
func DefaultShippingRates() map[ShippingMethod]decimal.Decimal {
	return map[ShippingMethod]decimal.Decimal{
		ShippingStandard:  decimal.RequireFromString("9.99"),
		ShippingExpress:   decimal.RequireFromString("19.99"),
		ShippingOvernight: decimal.RequireFromString("39.99"),
		ShippingPickup:    decimal.Zero,
	}
}

type Pricing struct {
	Subtotal decimal.Decimal `json:"subtotal" bson:"subtotal"`
	Shipping decimal.Decimal `json:"shipping" bson:"shipping"`
	Tax      decimal.Decimal `json:"tax" bson:"tax"`
	Discount decimal.Decimal `json:"discount" bson:"discount"`
	Total    decimal.Decimal `json:"total" bson:"total"`

	// Frozen at order time so the breakdown can be re-derived later.
	TaxRate               decimal.Decimal `json:"taxRate" bson:"taxRate"`
	FreeShippingThreshold decimal.Decimal `json:"freeShippingThreshold" bson:"freeShippingThreshold"`
	ShippingRate          decimal.Decimal `json:"shippingRate" bson:"shippingRate"`
}

type PricingPolicy struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	Rates                 map[ShippingMethod]decimal.Decimal
}

func NewPricingPolicy(taxRate, threshold decimal.Decimal, rates map[ShippingMethod]decimal.Decimal) (PricingPolicy, error) {
	if taxRate.IsNegative() {
		return PricingPolicy{}, fmt.Errorf("tax rate must not be negative")
	}
	if threshold.IsNegative() {
		return PricingPolicy{}, fmt.Errorf("free shipping threshold must not be negative")
	}
	merged := DefaultShippingRates()
	for m, r := range rates {
		if !m.Valid() {
			return PricingPolicy{}, fmt.Errorf("unknown shipping method %q", m)
		}
		if r.IsNegative() {
			return PricingPolicy{}, fmt.Errorf("shipping rate for %s must not be negative", m)
		}
		merged[m] = r
	}
	merged[ShippingPickup] = decimal.Zero
	return PricingPolicy{TaxRate: taxRate, FreeShippingThreshold: threshold, Rates: merged}, nil
}

// Calculate is pure: the same items, method and discount always give the same breakdown.
func (p PricingPolicy) Calculate(items []LineItem, method ShippingMethod, discount decimal.Decimal) (Pricing, error) {
	rate, ok := p.Rates[method]
	if !ok {
		return Pricing{}, fmt.Errorf("%w: unknown shipping method %q", ErrValidation, method)
	}

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}

	shipping := rate
	if subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(p.TaxRate).Round(2)

	gross := subtotal.Add(shipping).Add(tax)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(gross) {
		discount = gross
	}

	return Pricing{
		Subtotal:              subtotal,
		Shipping:              shipping,
		Tax:                   tax,
		Discount:              discount,
		Total:                 gross.Sub(discount),
		TaxRate:               p.TaxRate,
		FreeShippingThreshold: p.FreeShippingThreshold,
		ShippingRate:          rate,
	}, nil
}

// Recalculate re-derives the breakdown from stored line items using the rate,
// threshold and shipping rate frozen on p.
func (p Pricing) Recalculate(items []LineItem, method ShippingMethod) (Pricing, error) {
	policy := PricingPolicy{
		TaxRate:               p.TaxRate,
		FreeShippingThreshold: p.FreeShippingThreshold,
		Rates:                 map[ShippingMethod]decimal.Decimal{method: p.ShippingRate},
	}
	return policy.Calculate(items, method, p.Discount)
}
