package services

import (
	"context"
	"testing"
	"time"

	"hotel-billing/queue"
	"hotel-billing/store"
	"hotel-billing/tenants"

	"go.uber.org/zap"
)

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	store    *store.Memory
	table    *tenants.Table
	clock    *fixedClock
	broker   *queue.Memory
	menu     *MenuCatalog
	tables   *TableOrders
	ledger   *BillLedger
	checkout *Checkout
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	table, err := tenants.Default()
	if err != nil {
		t.Fatalf("tenants.Default: %v", err)
	}
	loc := time.FixedZone("IST", 5*3600+1800)
	clock := &fixedClock{t: time.Date(2024, 3, 15, 13, 30, 0, 0, loc)}
	logger := zap.NewNop().Sugar()
	s := store.NewMemory()
	broker := queue.NewMemory()
	resolver := ContextResolver{}

	menu := NewMenuCatalog(s, table, resolver, logger)
	tables := NewTableOrders(s, menu, resolver, logger, clock.now)
	ledger, err := NewBillLedger(s, resolver, broker, logger, LedgerConfig{Location: loc, NodeID: 1, Now: clock.now})
	if err != nil {
		t.Fatalf("NewBillLedger: %v", err)
	}
	return &testEnv{
		store:    s,
		table:    table,
		clock:    clock,
		broker:   broker,
		menu:     menu,
		tables:   tables,
		ledger:   ledger,
		checkout: NewCheckout(tables, menu, ledger, table, resolver, logger),
	}
}

func staffCtx(tenantID string) context.Context {
	return WithSession(context.Background(), Session{TenantID: tenantID, DisplayName: tenantID, Username: tenantID + "_staff"})
}

func adminCtx(tenantID string) context.Context {
	return WithSession(context.Background(), Session{TenantID: tenantID, DisplayName: tenantID, Username: tenantID + "_admin", IsAdmin: true})
}

func nopLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }
