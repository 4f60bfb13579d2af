package services

import (
	"context"
	"fmt"
	"strings"

	"hotel-billing/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TenantLookup returns tenant settings such as the GST default.
type TenantLookup interface {
	Tenant(id string) (models.Tenant, bool)
}

type CheckoutOptions struct {
	// IncludeGST overrides the tenant default when set.
	IncludeGST *bool
	// Jama is the amount received at the counter; nil means nothing yet.
	Jama *decimal.Decimal
}

// ParcelLine is one take-away item by menu code.
type ParcelLine struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

// Checkout turns table orders and parcel requests into saved bills.
type Checkout struct {
	tables   *TableOrders
	menu     *MenuCatalog
	ledger   *BillLedger
	tenants  TenantLookup
	resolver TenantResolver
	logger   *zap.SugaredLogger
}

func NewCheckout(tables *TableOrders, menu *MenuCatalog, ledger *BillLedger, tenants TenantLookup, resolver TenantResolver, logger *zap.SugaredLogger) *Checkout {
	return &Checkout{
		tables:   tables,
		menu:     menu,
		ledger:   ledger,
		tenants:  tenants,
		resolver: resolver,
		logger:   logger,
	}
}

func (c *Checkout) includeGST(sess Session, opts CheckoutOptions) bool {
	if opts.IncludeGST != nil {
		return *opts.IncludeGST
	}
	t, ok := c.tenants.Tenant(sess.TenantID)
	return ok && t.IncludeGSTByDefault
}

// CheckoutTable completes the table's order, saves it as a bill and clears
// the table. When saving or clearing fails the order stays completed and a
// retry returns the same bill. found is false when the table has no order.
func (c *Checkout) CheckoutTable(ctx context.Context, tableID string, opts CheckoutOptions) (bill models.BillRecord, found bool, err error) {
	sess, err := requireTenant(ctx, c.resolver)
	if err != nil {
		return models.BillRecord{}, false, err
	}
	order, ok, err := c.tables.Complete(ctx, tableID)
	if err != nil || !ok {
		return models.BillRecord{}, false, err
	}

	bill, err = c.ledger.Save(ctx, BillDraft{
		ID:           order.BillID,
		OrderType:    models.OrderTypeTable,
		TableID:      order.TableID,
		CustomerInfo: order.CustomerInfo,
		Items:        order.Items,
		IncludeGST:   c.includeGST(sess, opts),
		Jama:         opts.Jama,
	})
	if err != nil {
		return models.BillRecord{}, true, fmt.Errorf("checkout %s: %w", order.TableID, err)
	}

	if _, err := c.tables.Clear(ctx, order.TableID); err != nil {
		// the order keeps its bill id, so a retry returns the saved bill and clears
		c.logger.Errorw("failed to clear table after checkout", "tenant", sess.TenantID, "table", order.TableID, "bill_id", bill.ID, "error", err)
	}
	return bill, true, nil
}

// CheckoutParcel bills a take-away order directly from menu codes. Repeated
// codes are merged into one line.
func (c *Checkout) CheckoutParcel(ctx context.Context, lines []ParcelLine, customer models.CustomerInfo, opts CheckoutOptions) (models.BillRecord, error) {
	sess, err := requireTenant(ctx, c.resolver)
	if err != nil {
		return models.BillRecord{}, err
	}
	if len(lines) == 0 {
		return models.BillRecord{}, invalid("items", "parcel has no items")
	}
	menu, err := c.menu.GetMenu(ctx)
	if err != nil {
		return models.BillRecord{}, err
	}

	items := make([]models.OrderLineItem, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		code := strings.TrimSpace(line.Code)
		if line.Quantity <= 0 {
			return models.BillRecord{}, invalid("quantity", "must be positive for "+code)
		}
		if i, ok := index[code]; ok {
			items[i].Quantity += line.Quantity
			continue
		}
		item, ok := menu[code]
		if !ok {
			return models.BillRecord{}, invalid("code", "unknown menu item "+code)
		}
		index[code] = len(items)
		items = append(items, models.OrderLineItem{
			Code:     code,
			Name:     item.Name,
			Rate:     item.Rate,
			Quantity: line.Quantity,
		})
	}

	return c.ledger.Save(ctx, BillDraft{
		OrderType:    models.OrderTypeParcel,
		CustomerInfo: customer,
		Items:        items,
		IncludeGST:   c.includeGST(sess, opts),
		Jama:         opts.Jama,
	})
}
