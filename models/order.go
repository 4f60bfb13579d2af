package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusActive    = "active"
	OrderStatusCompleted = "completed"
)

// OrderLineItem is a quantity of a menu item. Name and Rate are copied when
// the line is added so later menu edits don't reprice open orders.
type OrderLineItem struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Rate     decimal.Decimal `json:"rate"`
	Quantity int             `json:"quantity"`
	AddedAt  time.Time       `json:"addedAt"`
}

// Amount is rate × quantity.
func (l OrderLineItem) Amount() decimal.Decimal {
	return l.Rate.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type CustomerInfo struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
}

// CustomerPatch carries the fields to overwrite; nil fields are kept.
type CustomerPatch struct {
	Name        *string `json:"name,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

func (c CustomerInfo) Apply(p CustomerPatch) CustomerInfo {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.PhoneNumber != nil {
		c.PhoneNumber = *p.PhoneNumber
	}
	return c
}

// TableOrder is the open order of one table.
type TableOrder struct {
	TableID      string          `json:"tableId"`
	Items        []OrderLineItem `json:"items"`
	Status       string          `json:"status"`
	StartTime    time.Time       `json:"startTime"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	CustomerInfo CustomerInfo    `json:"customerInfo"`

	// BillID is reserved when the order completes. The bill saved from the
	// order carries this id, so a repeated checkout cannot bill it twice.
	BillID string `json:"billId,omitempty"`
}

// Clone returns a copy that shares no slices with o.
func (o TableOrder) Clone() TableOrder {
	out := o
	out.Items = make([]OrderLineItem, len(o.Items))
	copy(out.Items, o.Items)
	if o.CompletedAt != nil {
		at := *o.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

func (o TableOrder) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

type OrderSummary struct {
	ItemCount    int             `json:"itemCount"`
	Total        decimal.Decimal `json:"total"`
	StartTime    time.Time       `json:"startTime"`
	Status       string          `json:"status"`
	CustomerInfo CustomerInfo    `json:"customerInfo"`
}
