package models

import "time"

const (
	EventBillSaved          = "bill.saved"
	EventBillPaymentUpdated = "bill.payment_updated"
	EventBillDeleted        = "bill.deleted"
)

// BillEvent is published after a ledger change for print and export
// consumers. Bill is the state after the change.
type BillEvent struct {
	Type       string     `json:"type"`
	TenantID   string     `json:"tenantId"`
	TenantName string     `json:"tenantName"`
	Bill       BillRecord `json:"bill"`
	Timestamp  time.Time  `json:"timestamp"`
}
