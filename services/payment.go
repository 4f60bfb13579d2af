package services

import (
	"hotel-billing/models"

	"github.com/shopspring/decimal"
)

// NewPayment is the payment state of a fresh bill: nothing received, the
// whole total outstanding.
func NewPayment(total decimal.Decimal) models.PaymentInfo {
	p, _ := Reconcile(total, decimal.Zero)
	return p
}

// Reconcile derives baki from total and jama. Overpayment is absorbed:
// baki never goes below zero.
func Reconcile(total, jama decimal.Decimal) (models.PaymentInfo, error) {
	if jama.IsNegative() {
		return models.PaymentInfo{}, invalid("jama", "must be >= 0")
	}
	baki := total.Ceil().Sub(jama)
	if baki.IsNegative() {
		baki = decimal.Zero
	}
	return models.PaymentInfo{Jama: jama, Baki: baki}, nil
}

// PaymentPatch carries the payment fields to change. Baki is always
// recomputed, so it cannot be patched directly.
type PaymentPatch struct {
	Jama *decimal.Decimal `json:"jama,omitempty"`
}
