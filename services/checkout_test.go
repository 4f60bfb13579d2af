package services

import (
	"context"
	"errors"
	"testing"

	"hotel-billing/models"
	"hotel-billing/store"
)

// Full order lifecycle on one table: order, summarize, check out with GST,
// take a part payment, table released.
func TestOrderLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := staffCtx("hotel_sai")

	if _, err := env.tables.AddMenuItem(ctx, "T5", "101", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := env.tables.AddMenuItem(ctx, "T5", "201", 2); err != nil {
		t.Fatal(err)
	}

	sum, err := env.tables.Summary(ctx, "T5")
	if err != nil {
		t.Fatal(err)
	}
	if sum.ItemCount != 3 || !sum.Total.Equal(dec("740")) {
		t.Fatalf("summary = %d items / %s", sum.ItemCount, sum.Total)
	}

	gst := true
	bill, found, err := env.checkout.CheckoutTable(ctx, "T5", CheckoutOptions{IncludeGST: &gst})
	if err != nil || !found {
		t.Fatalf("CheckoutTable = %v, %v", found, err)
	}
	if !bill.Subtotal.Equal(dec("740")) || !bill.Tax.Equal(dec("133.2")) || !bill.Total.Equal(dec("874")) {
		t.Errorf("bill totals = %s / %s / %s", bill.Subtotal, bill.Tax, bill.Total)
	}
	if bill.OrderType != models.OrderTypeTable || bill.TableID != "T5" {
		t.Errorf("bill = %+v", bill)
	}

	jama := dec("500")
	paid, _, err := env.ledger.UpdatePayment(ctx, bill.ID, PaymentPatch{Jama: &jama})
	if err != nil {
		t.Fatal(err)
	}
	if !paid.PaymentInfo.Baki.Equal(dec("374")) {
		t.Errorf("baki = %s, want 374", paid.PaymentInfo.Baki)
	}

	ids, _ := env.tables.ListActiveTables(ctx)
	for _, id := range ids {
		if id == "T5" {
			t.Error("T5 still active after checkout")
		}
	}
	if _, ok, _ := env.tables.Get(ctx, "T5"); ok {
		t.Error("T5 order not cleared")
	}
}

func TestCheckoutTable_TenantDefaultGST(t *testing.T) {
	env := newTestEnv(t)

	// hotel_annapurna bills with GST unless told otherwise
	anna := staffCtx("hotel_annapurna")
	_, _ = env.tables.AddMenuItem(anna, "1", "10", 1)
	bill, _, err := env.checkout.CheckoutTable(anna, "1", CheckoutOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !bill.IncludeGST || !bill.Total.Equal(dec("260")) {
		t.Errorf("annapurna bill gst=%v total=%s", bill.IncludeGST, bill.Total)
	}

	sai := staffCtx("hotel_sai")
	_, _ = env.tables.AddMenuItem(sai, "T1", "101", 1)
	bill, _, _ = env.checkout.CheckoutTable(sai, "T1", CheckoutOptions{})
	if bill.IncludeGST || !bill.Total.Equal(dec("180")) {
		t.Errorf("sai bill gst=%v total=%s", bill.IncludeGST, bill.Total)
	}
}

func TestCheckoutTable_AbsentTable(t *testing.T) {
	env := newTestEnv(t)
	_, found, err := env.checkout.CheckoutTable(staffCtx("hotel_sai"), "T99", CheckoutOptions{})
	if found || err != nil {
		t.Errorf("CheckoutTable absent = %v, %v", found, err)
	}
	bills, _ := env.ledger.GetAll(staffCtx("hotel_sai"))
	if len(bills) != 0 {
		t.Errorf("absent table produced %d bills", len(bills))
	}
}

type failingSetStore struct {
	store.Store
	failKind string
}

func (s failingSetStore) Set(ctx context.Context, key store.Key, value []byte) error {
	if key.Kind == s.failKind {
		return errors.New("disk full")
	}
	return s.Store.Set(ctx, key, value)
}

func TestCheckoutTable_SaveFailureKeepsOrderCompleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := staffCtx("hotel_sai")
	_, _ = env.tables.AddMenuItem(ctx, "T2", "101", 1)

	broken, err := NewBillLedger(failingSetStore{Store: env.store, failKind: store.KindBillHistory}, ContextResolver{}, nil, nopLogger(), LedgerConfig{Now: env.clock.now})
	if err != nil {
		t.Fatal(err)
	}
	co := NewCheckout(env.tables, env.menu, broken, env.table, ContextResolver{}, nopLogger())
	if _, found, err := co.CheckoutTable(ctx, "T2", CheckoutOptions{}); err == nil || !found {
		t.Fatalf("expected save failure, got found=%v err=%v", found, err)
	}
	order, ok, _ := env.tables.Get(ctx, "T2")
	if !ok || !order.IsCompleted() || order.BillID == "" {
		t.Errorf("order after failed save = %+v, %v", order, ok)
	}

	// retry with a working ledger bills the same order
	bill, found, err := env.checkout.CheckoutTable(ctx, "T2", CheckoutOptions{})
	if err != nil || !found || !bill.Total.Equal(dec("180")) || bill.ID != order.BillID {
		t.Errorf("retry = %+v, %v, %v", bill, found, err)
	}
	if _, ok, _ := env.tables.Get(ctx, "T2"); ok {
		t.Error("table not cleared after retry")
	}
}

// flakySetStore fails the nth Set of one kind and passes every other call.
type flakySetStore struct {
	store.Store
	kind  string
	failN int
	seen  *int
}

func (s flakySetStore) Set(ctx context.Context, key store.Key, value []byte) error {
	if key.Kind == s.kind {
		*s.seen++
		if *s.seen == s.failN {
			return errors.New("connection reset")
		}
	}
	return s.Store.Set(ctx, key, value)
}

func TestCheckoutTable_ClearFailureRetryKeepsOneBill(t *testing.T) {
	env := newTestEnv(t)
	ctx := staffCtx("hotel_sai")

	// writes to table orders: add, complete, clear; the clear fails
	seen := 0
	flaky := flakySetStore{Store: env.store, kind: store.KindTableOrders, failN: 3, seen: &seen}
	tables := NewTableOrders(flaky, env.menu, ContextResolver{}, nopLogger(), env.clock.now)
	co := NewCheckout(tables, env.menu, env.ledger, env.table, ContextResolver{}, nopLogger())

	if _, err := tables.AddMenuItem(ctx, "T5", "101", 2); err != nil {
		t.Fatal(err)
	}
	first, found, err := co.CheckoutTable(ctx, "T5", CheckoutOptions{})
	if err != nil || !found {
		t.Fatalf("CheckoutTable = %v, %v", found, err)
	}
	order, ok, _ := tables.Get(ctx, "T5")
	if !ok || !order.IsCompleted() || order.BillID != first.ID {
		t.Fatalf("order after failed clear = %+v, %v", order, ok)
	}

	again, found, err := co.CheckoutTable(ctx, "T5", CheckoutOptions{})
	if err != nil || !found {
		t.Fatalf("retry = %v, %v", found, err)
	}
	if again.ID != first.ID || again.BillNumber != first.BillNumber {
		t.Errorf("retry billed %s, first bill %s", again.BillNumber, first.BillNumber)
	}
	if _, ok, _ := tables.Get(ctx, "T5"); ok {
		t.Error("table not cleared after retry")
	}

	bills, _ := env.ledger.GetAll(ctx)
	if len(bills) != 1 {
		t.Fatalf("ledger has %d bills, want 1", len(bills))
	}
	stats, _ := env.ledger.Statistics(ctx)
	if stats.TotalBills != 1 || !stats.TotalRevenue.Equal(dec("360")) {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCheckoutParcel(t *testing.T) {
	env := newTestEnv(t)
	ctx := staffCtx("hotel_sai")

	jama := dec("1000")
	bill, err := env.checkout.CheckoutParcel(ctx, []ParcelLine{
		{Code: "101", Quantity: 2},
		{Code: "402", Quantity: 1},
		{Code: " 101 ", Quantity: 1},
	}, models.CustomerInfo{Name: "Meera"}, CheckoutOptions{Jama: &jama})
	if err != nil {
		t.Fatal(err)
	}
	if bill.OrderType != models.OrderTypeParcel || len(bill.Items) != 2 {
		t.Fatalf("bill = %+v", bill)
	}
	if bill.Items[0].Quantity != 3 {
		t.Errorf("merged quantity = %d, want 3", bill.Items[0].Quantity)
	}
	if !bill.Total.Equal(dec("625")) || !bill.PaymentInfo.Baki.IsZero() {
		t.Errorf("total = %s baki = %s", bill.Total, bill.PaymentInfo.Baki)
	}

	tests := []struct {
		name  string
		lines []ParcelLine
	}{
		{"empty", nil},
		{"unknown code", []ParcelLine{{Code: "999", Quantity: 1}}},
		{"zero quantity", []ParcelLine{{Code: "101", Quantity: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.checkout.CheckoutParcel(ctx, tt.lines, models.CustomerInfo{}, CheckoutOptions{}); !IsValidation(err) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}

	if _, err := env.checkout.CheckoutParcel(context.Background(), []ParcelLine{{Code: "101", Quantity: 1}}, models.CustomerInfo{}, CheckoutOptions{}); !errors.Is(err, ErrNoActiveTenant) {
		t.Errorf("no tenant: err = %v", err)
	}
}
