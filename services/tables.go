package services

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"hotel-billing/models"
	"hotel-billing/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TableOrders manages the open order of every table of a tenant. All of a
// tenant's tables live under one key and are rewritten together.
type TableOrders struct {
	store    store.Store
	menu     *MenuCatalog
	resolver TenantResolver
	logger   *zap.SugaredLogger
	now      func() time.Time
	locks    keyedMutex
}

func NewTableOrders(s store.Store, menu *MenuCatalog, resolver TenantResolver, logger *zap.SugaredLogger, now func() time.Time) *TableOrders {
	if now == nil {
		now = time.Now
	}
	return &TableOrders{
		store:    s,
		menu:     menu,
		resolver: resolver,
		logger:   logger,
		now:      now,
	}
}

type tableMap map[string]models.TableOrder

func emptyOrder(tableID string) models.TableOrder {
	return models.TableOrder{
		TableID: tableID,
		Items:   []models.OrderLineItem{},
		Status:  models.OrderStatusActive,
	}
}

func normalizeTableID(tableID string) string {
	return strings.ToUpper(strings.TrimSpace(tableID))
}

func (t *TableOrders) load(ctx context.Context, tenantID string) (tableMap, error) {
	orders := tableMap{}
	if _, err := store.GetJSON(ctx, t.store, store.TenantKey(tenantID, store.KindTableOrders), &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = tableMap{}
	}
	return orders, nil
}

func (t *TableOrders) save(ctx context.Context, tenantID string, orders tableMap) error {
	return store.SetJSON(ctx, t.store, store.TenantKey(tenantID, store.KindTableOrders), orders)
}

// mutate runs fn over the tenant's table map under the tenant lock and saves
// the map when fn reports a change.
func (t *TableOrders) mutate(ctx context.Context, fn func(tenantID string, orders tableMap) (bool, error)) error {
	sess, err := requireTenant(ctx, t.resolver)
	if err != nil {
		return err
	}
	defer t.locks.lock(store.TenantKey(sess.TenantID, store.KindTableOrders))()

	orders, err := t.load(ctx, sess.TenantID)
	if err != nil {
		return err
	}
	changed, err := fn(sess.TenantID, orders)
	if err != nil || !changed {
		return err
	}
	return t.save(ctx, sess.TenantID, orders)
}

// AddItem adds line to the table's order, opening the order if the table
// has none. A line whose code is already on the order increases that
// line's quantity instead of adding a row.
func (t *TableOrders) AddItem(ctx context.Context, tableID string, line models.OrderLineItem) (models.TableOrder, error) {
	tableID = normalizeTableID(tableID)
	if tableID == "" {
		return models.TableOrder{}, invalid("table", "is required")
	}
	line.Code = strings.TrimSpace(line.Code)
	if line.Code == "" {
		return models.TableOrder{}, invalid("code", "is required")
	}
	if line.Quantity <= 0 {
		return models.TableOrder{}, invalid("quantity", "must be positive")
	}
	if line.Rate.IsNegative() {
		return models.TableOrder{}, invalid("rate", "must be >= 0")
	}

	var result models.TableOrder
	err := t.mutate(ctx, func(tenantID string, orders tableMap) (bool, error) {
		now := t.now()
		order, ok := orders[tableID]
		if !ok {
			order = emptyOrder(tableID)
			order.StartTime = now
		}
		if order.IsCompleted() {
			return false, ErrOrderCompleted
		}

		merged := false
		for i := range order.Items {
			if order.Items[i].Code == line.Code {
				order.Items[i].Quantity += line.Quantity
				merged = true
				break
			}
		}
		if !merged {
			line.AddedAt = now
			order.Items = append(order.Items, line)
		}
		order.Status = models.OrderStatusActive

		orders[tableID] = order
		result = order.Clone()
		return true, nil
	})
	return result, err
}

// AddMenuItem adds quantity of the catalog item code at its current rate.
func (t *TableOrders) AddMenuItem(ctx context.Context, tableID, code string, quantity int) (models.TableOrder, error) {
	code = strings.TrimSpace(code)
	item, ok, err := t.menu.Lookup(ctx, code)
	if err != nil {
		return models.TableOrder{}, err
	}
	if !ok {
		return models.TableOrder{}, invalid("code", "unknown menu item "+code)
	}
	return t.AddItem(ctx, tableID, models.OrderLineItem{
		Code:     code,
		Name:     item.Name,
		Rate:     item.Rate,
		Quantity: quantity,
	})
}

// RemoveItem removes the line at index. Removing the last line closes the
// table. It reports false when the table or index does not exist.
func (t *TableOrders) RemoveItem(ctx context.Context, tableID string, index int) (bool, error) {
	tableID = normalizeTableID(tableID)
	removed := false
	err := t.mutate(ctx, func(_ string, orders tableMap) (bool, error) {
		order, ok := orders[tableID]
		if !ok || index < 0 || index >= len(order.Items) {
			return false, nil
		}
		if order.IsCompleted() {
			return false, ErrOrderCompleted
		}
		removeLine(orders, order, index)
		removed = true
		return true, nil
	})
	return removed, err
}

func removeLine(orders tableMap, order models.TableOrder, index int) {
	items := make([]models.OrderLineItem, 0, len(order.Items)-1)
	items = append(items, order.Items[:index]...)
	items = append(items, order.Items[index+1:]...)
	if len(items) == 0 {
		delete(orders, order.TableID)
		return
	}
	order.Items = items
	orders[order.TableID] = order
}

// UpdateQuantity sets the quantity of the line at index; a quantity of zero
// or less removes the line.
func (t *TableOrders) UpdateQuantity(ctx context.Context, tableID string, index, quantity int) (bool, error) {
	tableID = normalizeTableID(tableID)
	updated := false
	err := t.mutate(ctx, func(_ string, orders tableMap) (bool, error) {
		order, ok := orders[tableID]
		if !ok || index < 0 || index >= len(order.Items) {
			return false, nil
		}
		if order.IsCompleted() {
			return false, ErrOrderCompleted
		}
		if quantity <= 0 {
			removeLine(orders, order, index)
		} else {
			order.Items[index].Quantity = quantity
			orders[tableID] = order
		}
		updated = true
		return true, nil
	})
	return updated, err
}

// UpdateCustomerInfo merges patch into the table's customer info. It is a
// no-op when the table has no order.
func (t *TableOrders) UpdateCustomerInfo(ctx context.Context, tableID string, patch models.CustomerPatch) (bool, error) {
	tableID = normalizeTableID(tableID)
	updated := false
	err := t.mutate(ctx, func(_ string, orders tableMap) (bool, error) {
		order, ok := orders[tableID]
		if !ok {
			return false, nil
		}
		order.CustomerInfo = order.CustomerInfo.Apply(patch)
		orders[tableID] = order
		updated = true
		return true, nil
	})
	return updated, err
}

// Get returns the table's order, or an empty active order and false when
// the table has none.
func (t *TableOrders) Get(ctx context.Context, tableID string) (models.TableOrder, bool, error) {
	tableID = normalizeTableID(tableID)
	sess, err := requireTenant(ctx, t.resolver)
	if err != nil {
		return emptyOrder(tableID), false, err
	}
	defer t.locks.lock(store.TenantKey(sess.TenantID, store.KindTableOrders))()

	orders, err := t.load(ctx, sess.TenantID)
	if err != nil {
		return emptyOrder(tableID), false, err
	}
	order, ok := orders[tableID]
	if !ok {
		return emptyOrder(tableID), false, nil
	}
	if order.Items == nil {
		order.Items = []models.OrderLineItem{}
	}
	return order, true, nil
}

// ListActiveTables returns the ids of tables with an active order, in
// natural numeric order ("T2" before "T10").
func (t *TableOrders) ListActiveTables(ctx context.Context) ([]string, error) {
	sess, err := requireTenant(ctx, t.resolver)
	if err != nil {
		return nil, err
	}
	defer t.locks.lock(store.TenantKey(sess.TenantID, store.KindTableOrders))()

	orders, err := t.load(ctx, sess.TenantID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(orders))
	for id, order := range orders {
		if order.Status == models.OrderStatusActive && len(order.Items) > 0 {
			ids = append(ids, id)
		}
	}
	SortTableIDs(ids)
	return ids, nil
}

// SortTableIDs orders ids by the number formed by their digits; ids without
// digits count as 0. Ties fall back to the id itself.
func SortTableIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := tableNumber(ids[i]), tableNumber(ids[j])
		if a != b {
			return a < b
		}
		return ids[i] < ids[j]
	})
}

func tableNumber(id string) int {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, id)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// Complete marks the table's order completed, reserves its bill id and
// returns it for billing. Completing a completed order returns it unchanged.
// The order stays stored until Clear. It reports false when the table has
// no order.
func (t *TableOrders) Complete(ctx context.Context, tableID string) (models.TableOrder, bool, error) {
	tableID = normalizeTableID(tableID)
	var result models.TableOrder
	found := false
	err := t.mutate(ctx, func(tenantID string, orders tableMap) (bool, error) {
		order, ok := orders[tableID]
		if !ok || len(order.Items) == 0 {
			return false, nil
		}
		found = true
		if order.IsCompleted() && order.BillID != "" {
			result = order.Clone()
			return false, nil
		}
		if !order.IsCompleted() {
			now := t.now()
			order.Status = models.OrderStatusCompleted
			order.CompletedAt = &now
		}
		order.BillID = uuid.NewString()
		orders[tableID] = order
		result = order.Clone()
		t.logger.Infow("table order completed", "tenant", tenantID, "table", tableID, "items", len(order.Items))
		return true, nil
	})
	if err != nil || !found {
		return models.TableOrder{}, false, err
	}
	return result, true, nil
}

// Clear deletes the table's order whatever its status and reports whether
// there was one.
func (t *TableOrders) Clear(ctx context.Context, tableID string) (bool, error) {
	tableID = normalizeTableID(tableID)
	existed := false
	err := t.mutate(ctx, func(_ string, orders tableMap) (bool, error) {
		if _, ok := orders[tableID]; !ok {
			return false, nil
		}
		delete(orders, tableID)
		existed = true
		return true, nil
	})
	return existed, err
}

// Summary totals the table's order. An absent table yields a zero summary.
func (t *TableOrders) Summary(ctx context.Context, tableID string) (models.OrderSummary, error) {
	order, _, err := t.Get(ctx, tableID)
	if err != nil {
		return models.OrderSummary{Total: decimal.Zero}, err
	}
	return Summarize(order), nil
}

// Summarize totals an order without touching the store.
func Summarize(order models.TableOrder) models.OrderSummary {
	s := models.OrderSummary{
		Total:        decimal.Zero,
		StartTime:    order.StartTime,
		Status:       order.Status,
		CustomerInfo: order.CustomerInfo,
	}
	for _, item := range order.Items {
		s.ItemCount += item.Quantity
		s.Total = s.Total.Add(item.Amount())
	}
	return s
}
