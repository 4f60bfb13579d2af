package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hotel-billing/models"
	"hotel-billing/queue"
	"hotel-billing/store"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	BillDateLayout = "02/01/2006"
	BillTimeLayout = "3:04:05 PM"
)

// BillDraft is what checkout hands to the ledger. Totals are computed by
// the ledger, never taken from the caller.
type BillDraft struct {
	// ID is used as the bill id when set. Saving a draft whose id is
	// already in the history returns the stored bill.
	ID           string
	OrderType    string
	TableID      string
	CustomerInfo models.CustomerInfo
	Items        []models.OrderLineItem
	IncludeGST   bool
	// Jama is the amount already received; nil means nothing yet.
	Jama *decimal.Decimal
}

type LedgerConfig struct {
	// Location decides the calendar day of a bill. Defaults to time.Local.
	Location *time.Location
	// NodeID distinguishes bill numbers minted by different processes (0–1023).
	NodeID int64
	Now    func() time.Time
}

// BillLedger is the per-tenant history of saved bills, most recent first.
type BillLedger struct {
	store    store.Store
	resolver TenantResolver
	events   billEvents
	logger   *zap.SugaredLogger
	loc      *time.Location
	now      func() time.Time
	numbers  *snowflake.Node
	locks    keyedMutex
}

func NewBillLedger(s store.Store, resolver TenantResolver, broker queue.Broker, logger *zap.SugaredLogger, cfg LedgerConfig) (*BillLedger, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("bill number generator: %w", err)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &BillLedger{
		store:    s,
		resolver: resolver,
		events:   billEvents{broker: broker, logger: logger},
		logger:   logger,
		loc:      cfg.Location,
		now:      cfg.Now,
		numbers:  node,
	}, nil
}

func (l *BillLedger) load(ctx context.Context, tenantID string) ([]models.BillRecord, error) {
	var bills []models.BillRecord
	if _, err := store.GetJSON(ctx, l.store, store.TenantKey(tenantID, store.KindBillHistory), &bills); err != nil {
		return nil, err
	}
	if bills == nil {
		bills = []models.BillRecord{}
	}
	return bills, nil
}

func (l *BillLedger) save(ctx context.Context, tenantID string, bills []models.BillRecord) error {
	return store.SetJSON(ctx, l.store, store.TenantKey(tenantID, store.KindBillHistory), bills)
}

// Save finalizes draft into a bill, prepends it to the tenant's history and
// returns it.
func (l *BillLedger) Save(ctx context.Context, draft BillDraft) (models.BillRecord, error) {
	sess, err := requireTenant(ctx, l.resolver)
	if err != nil {
		return models.BillRecord{}, err
	}
	if len(draft.Items) == 0 {
		return models.BillRecord{}, invalid("items", "bill has no items")
	}
	for _, item := range draft.Items {
		if item.Quantity <= 0 {
			return models.BillRecord{}, invalid("quantity", "must be positive for "+item.Code)
		}
	}
	orderType := draft.OrderType
	if orderType == "" {
		orderType = models.OrderTypeParcel
	}

	totals := Compose(draft.Items, draft.IncludeGST)
	payment := NewPayment(totals.Total)
	if draft.Jama != nil {
		if payment, err = Reconcile(totals.Total, *draft.Jama); err != nil {
			return models.BillRecord{}, err
		}
	}

	now := l.now().In(l.loc)
	items := make([]models.OrderLineItem, len(draft.Items))
	copy(items, draft.Items)
	id := strings.TrimSpace(draft.ID)
	if id == "" {
		id = uuid.NewString()
	}
	bill := models.BillRecord{
		ID:           id,
		BillNumber:   strings.ToUpper(l.numbers.Generate().Base36()),
		Date:         now.Format(BillDateLayout),
		Time:         now.Format(BillTimeLayout),
		CreatedAt:    now,
		OrderType:    orderType,
		TableID:      draft.TableID,
		CustomerInfo: draft.CustomerInfo,
		Items:        items,
		Subtotal:     totals.Subtotal,
		Tax:          totals.Tax,
		Total:        totals.Total,
		PaymentInfo:  payment,
		IncludeGST:   draft.IncludeGST,
	}

	unlock := l.locks.lock(store.TenantKey(sess.TenantID, store.KindBillHistory))
	bills, err := l.load(ctx, sess.TenantID)
	if err == nil && draft.ID != "" {
		for _, b := range bills {
			if b.ID == id {
				unlock()
				l.logger.Infow("bill already saved", "tenant", sess.TenantID, "bill_number", b.BillNumber)
				return b, nil
			}
		}
	}
	if err == nil {
		bills = append([]models.BillRecord{bill}, bills...)
		err = l.save(ctx, sess.TenantID, bills)
	}
	unlock()
	if err != nil {
		return models.BillRecord{}, fmt.Errorf("save bill: %w", err)
	}

	l.logger.Infow("bill saved", "tenant", sess.TenantID, "bill_number", bill.BillNumber, "total", bill.Total.String())
	l.events.publish(ctx, models.EventBillSaved, sess, bill)
	return bill, nil
}

// GetAll returns the tenant's bills, most recent first.
func (l *BillLedger) GetAll(ctx context.Context) ([]models.BillRecord, error) {
	sess, err := requireTenant(ctx, l.resolver)
	if err != nil {
		return []models.BillRecord{}, err
	}
	defer l.locks.lock(store.TenantKey(sess.TenantID, store.KindBillHistory))()
	return l.load(ctx, sess.TenantID)
}

// GetByID accepts a bill id or a bill number.
func (l *BillLedger) GetByID(ctx context.Context, id string) (models.BillRecord, bool, error) {
	bills, err := l.GetAll(ctx)
	if err != nil {
		return models.BillRecord{}, false, err
	}
	if i := findBill(bills, id); i >= 0 {
		return bills[i], true, nil
	}
	return models.BillRecord{}, false, nil
}

func findBill(bills []models.BillRecord, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	for i, b := range bills {
		if b.ID == id || strings.EqualFold(b.BillNumber, id) {
			return i
		}
	}
	return -1
}

// UpdatePayment applies patch to the bill's payment and recomputes baki.
// An unknown id changes nothing and is not an error; found reports it.
func (l *BillLedger) UpdatePayment(ctx context.Context, id string, patch PaymentPatch) (bill models.BillRecord, found bool, err error) {
	sess, err := requireTenant(ctx, l.resolver)
	if err != nil {
		return models.BillRecord{}, false, err
	}

	unlock := l.locks.lock(store.TenantKey(sess.TenantID, store.KindBillHistory))
	bills, err := l.load(ctx, sess.TenantID)
	if err != nil {
		unlock()
		return models.BillRecord{}, false, err
	}
	i := findBill(bills, id)
	if i < 0 {
		unlock()
		return models.BillRecord{}, false, nil
	}

	jama := bills[i].PaymentInfo.Jama
	if patch.Jama != nil {
		jama = *patch.Jama
	}
	payment, err := Reconcile(bills[i].Total, jama)
	if err != nil {
		unlock()
		return models.BillRecord{}, true, err
	}
	bills[i].PaymentInfo = payment
	bill = bills[i]
	err = l.save(ctx, sess.TenantID, bills)
	unlock()
	if err != nil {
		return models.BillRecord{}, true, fmt.Errorf("update payment: %w", err)
	}

	l.logger.Infow("bill payment updated", "tenant", sess.TenantID, "bill_number", bill.BillNumber,
		"jama", payment.Jama.String(), "baki", payment.Baki.String())
	l.events.publish(ctx, models.EventBillPaymentUpdated, sess, bill)
	return bill, true, nil
}

// Delete removes the bill. An unknown id is a no-op; found reports it.
func (l *BillLedger) Delete(ctx context.Context, id string) (bool, error) {
	sess, err := requireAdmin(ctx, l.resolver)
	if err != nil {
		return false, err
	}

	unlock := l.locks.lock(store.TenantKey(sess.TenantID, store.KindBillHistory))
	bills, err := l.load(ctx, sess.TenantID)
	if err != nil {
		unlock()
		return false, err
	}
	i := findBill(bills, id)
	if i < 0 {
		unlock()
		return false, nil
	}
	removed := bills[i]
	bills = append(bills[:i], bills[i+1:]...)
	err = l.save(ctx, sess.TenantID, bills)
	unlock()
	if err != nil {
		return true, fmt.Errorf("delete bill: %w", err)
	}

	l.logger.Infow("bill deleted", "tenant", sess.TenantID, "bill_number", removed.BillNumber, "by", sess.Username)
	l.events.publish(ctx, models.EventBillDeleted, sess, removed)
	return true, nil
}

// BillFilter selects bills. Zero From/To leave that side open; both bounds
// are inclusive calendar days.
type BillFilter struct {
	Search string
	From   time.Time
	To     time.Time
}

// Filter returns the matching bills, most recent first. Search matches the
// bill number, customer name or phone, case-insensitively.
func (l *BillLedger) Filter(ctx context.Context, f BillFilter) ([]models.BillRecord, error) {
	bills, err := l.GetAll(ctx)
	if err != nil {
		return bills, err
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.BillRecord, 0, len(bills))
	for _, b := range bills {
		if term != "" &&
			!strings.Contains(strings.ToLower(b.BillNumber), term) &&
			!strings.Contains(strings.ToLower(b.CustomerInfo.Name), term) &&
			!strings.Contains(strings.ToLower(b.CustomerInfo.PhoneNumber), term) {
			continue
		}
		if !f.From.IsZero() || !f.To.IsZero() {
			day := dayOf(l.billDay(b))
			if !f.From.IsZero() && day < dayOf(f.From) {
				continue
			}
			if !f.To.IsZero() && day > dayOf(f.To) {
				continue
			}
		}
		out = append(out, b)
	}
	return out, nil
}

// Statistics counts all bills and the ones dated today.
func (l *BillLedger) Statistics(ctx context.Context) (models.BillStatistics, error) {
	stats := models.BillStatistics{TotalRevenue: decimal.Zero, TodaysRevenue: decimal.Zero}
	bills, err := l.GetAll(ctx)
	if err != nil {
		return stats, err
	}
	today := dayOf(l.now().In(l.loc))
	for _, b := range bills {
		stats.TotalBills++
		stats.TotalRevenue = stats.TotalRevenue.Add(b.Total)
		if dayOf(l.billDay(b)) == today {
			stats.TodaysBills++
			stats.TodaysRevenue = stats.TodaysRevenue.Add(b.Total)
		}
	}
	return stats, nil
}

// billDay parses the stored day/month/year date, falling back to CreatedAt
// for records with an unreadable date.
func (l *BillLedger) billDay(b models.BillRecord) time.Time {
	if t, err := ParseBillDate(b.Date, l.loc); err == nil {
		return t
	}
	return b.CreatedAt.In(l.loc)
}

// ParseBillDate reads a DD/MM/YYYY date (leading zeros optional) or an ISO
// date.
func ParseBillDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{BillDateLayout, "2/1/2006", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised bill date %q", s)
}

func dayOf(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}
