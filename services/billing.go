package services

import (
	"hotel-billing/models"

	"github.com/shopspring/decimal"
)

// GSTRate is applied to the subtotal when a bill includes GST.
var GSTRate = decimal.RequireFromString("0.18")

// Totals is the computed money part of a bill.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Subtotal is Σ rate × quantity, unrounded.
func Subtotal(items []models.OrderLineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Amount())
	}
	return sum
}

// Tax is the GST on subtotal, unrounded, or zero without GST.
func Tax(subtotal decimal.Decimal, includeGST bool) decimal.Decimal {
	if !includeGST {
		return decimal.Zero
	}
	return subtotal.Mul(GSTRate)
}

// Total rounds subtotal + tax up to a whole unit. This is the only rounding
// step of a bill.
func Total(subtotal, tax decimal.Decimal) decimal.Decimal {
	return subtotal.Add(tax).Ceil()
}

func Compose(items []models.OrderLineItem, includeGST bool) Totals {
	subtotal := Subtotal(items)
	tax := Tax(subtotal, includeGST)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    Total(subtotal, tax),
	}
}
