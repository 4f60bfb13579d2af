package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderTypeParcel = "parcel"
	OrderTypeTable  = "table"
)

// PaymentInfo is the received (jama) and outstanding (baki) amount of a bill.
type PaymentInfo struct {
	Jama decimal.Decimal `json:"jama"`
	Baki decimal.Decimal `json:"baki"`
}

// BillRecord is a finalized bill. Only PaymentInfo changes after save.
type BillRecord struct {
	ID           string          `json:"id"`
	BillNumber   string          `json:"billNumber"`
	Date         string          `json:"date"`
	Time         string          `json:"time"`
	CreatedAt    time.Time       `json:"createdAt"`
	OrderType    string          `json:"orderType"`
	TableID      string          `json:"tableId,omitempty"`
	CustomerInfo CustomerInfo    `json:"customerInfo"`
	Items        []OrderLineItem `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
	PaymentInfo  PaymentInfo     `json:"paymentInfo"`
	IncludeGST   bool            `json:"includeGST"`
}

// IsSettled reports whether nothing is left to collect.
func (b BillRecord) IsSettled() bool {
	return b.PaymentInfo.Baki.IsZero()
}

type BillStatistics struct {
	TotalBills    int             `json:"totalBills"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	TodaysBills   int             `json:"todaysBills"`
	TodaysRevenue decimal.Decimal `json:"todaysRevenue"`
}
