package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"hotel-billing/models"
	"hotel-billing/store"

	"go.uber.org/zap"
)

// MenuSchemaVersion is compared with the stored marker. Bumping it discards
// every tenant's custom catalog once, on the next read.
const MenuSchemaVersion = "2"

// MenuDefaults supplies each tenant's built-in catalog.
type MenuDefaults interface {
	DefaultMenu(tenantID string) models.Menu
}

// MenuCatalog is the per-tenant item catalog.
type MenuCatalog struct {
	store    store.Store
	defaults MenuDefaults
	resolver TenantResolver
	logger   *zap.SugaredLogger
	locks    keyedMutex
}

func NewMenuCatalog(s store.Store, defaults MenuDefaults, resolver TenantResolver, logger *zap.SugaredLogger) *MenuCatalog {
	return &MenuCatalog{
		store:    s,
		defaults: defaults,
		resolver: resolver,
		logger:   logger,
	}
}

// GetMenu returns the tenant's custom catalog, or its built-in default when
// none is stored.
func (c *MenuCatalog) GetMenu(ctx context.Context) (models.Menu, error) {
	sess, err := requireTenant(ctx, c.resolver)
	if err != nil {
		return models.Menu{}, err
	}
	key := store.TenantKey(sess.TenantID, store.KindMenu)
	defer c.locks.lock(key)()

	return c.load(ctx, sess.TenantID)
}

func (c *MenuCatalog) load(ctx context.Context, tenantID string) (models.Menu, error) {
	if err := c.checkVersion(ctx, tenantID); err != nil {
		return nil, err
	}

	var menu models.Menu
	ok, err := store.GetJSON(ctx, c.store, store.TenantKey(tenantID, store.KindMenu), &menu)
	if err != nil {
		return nil, err
	}
	if !ok || menu == nil {
		return c.defaults.DefaultMenu(tenantID), nil
	}
	return menu, nil
}

// checkVersion drops a custom catalog written under an older schema marker.
func (c *MenuCatalog) checkVersion(ctx context.Context, tenantID string) error {
	versionKey := store.TenantKey(tenantID, store.KindMenuVersion)

	var marker string
	if _, err := store.GetJSON(ctx, c.store, versionKey, &marker); err != nil {
		return err
	}
	if marker == MenuSchemaVersion {
		return nil
	}

	if err := c.store.Remove(ctx, store.TenantKey(tenantID, store.KindMenu)); err != nil {
		return fmt.Errorf("drop stale menu: %w", err)
	}
	if err := store.SetJSON(ctx, c.store, versionKey, MenuSchemaVersion); err != nil {
		return err
	}
	c.logger.Infow("menu schema marker updated", "tenant", tenantID, "from", marker, "to", MenuSchemaVersion)
	return nil
}

func (c *MenuCatalog) save(ctx context.Context, tenantID string, menu models.Menu) error {
	return store.SetJSON(ctx, c.store, store.TenantKey(tenantID, store.KindMenu), menu)
}

// Lookup returns one item of the current catalog.
func (c *MenuCatalog) Lookup(ctx context.Context, code string) (models.MenuItem, bool, error) {
	menu, err := c.GetMenu(ctx)
	if err != nil {
		return models.MenuItem{}, false, err
	}
	item, ok := menu[strings.TrimSpace(code)]
	return item, ok, nil
}

func validateMenuItem(code string, item models.MenuItem) error {
	if code == "" {
		return invalid("code", "is required")
	}
	if strings.TrimSpace(item.Name) == "" {
		return invalid("name", "is required")
	}
	if item.Rate.IsNegative() {
		return invalid("rate", "must be >= 0")
	}
	return nil
}

// AddItem inserts or replaces the item under code.
func (c *MenuCatalog) AddItem(ctx context.Context, code string, item models.MenuItem) error {
	sess, err := requireAdmin(ctx, c.resolver)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	item.Name = strings.TrimSpace(item.Name)
	item.Category = strings.TrimSpace(item.Category)
	if err := validateMenuItem(code, item); err != nil {
		return err
	}

	defer c.locks.lock(store.TenantKey(sess.TenantID, store.KindMenu))()
	menu, err := c.load(ctx, sess.TenantID)
	if err != nil {
		return err
	}
	menu[code] = item
	return c.save(ctx, sess.TenantID, menu)
}

// UpdateItem replaces an existing item. It reports false when code is not
// in the catalog.
func (c *MenuCatalog) UpdateItem(ctx context.Context, code string, item models.MenuItem) (bool, error) {
	sess, err := requireAdmin(ctx, c.resolver)
	if err != nil {
		return false, err
	}
	code = strings.TrimSpace(code)
	item.Name = strings.TrimSpace(item.Name)
	item.Category = strings.TrimSpace(item.Category)
	if err := validateMenuItem(code, item); err != nil {
		return false, err
	}

	defer c.locks.lock(store.TenantKey(sess.TenantID, store.KindMenu))()
	menu, err := c.load(ctx, sess.TenantID)
	if err != nil {
		return false, err
	}
	if _, ok := menu[code]; !ok {
		return false, nil
	}
	menu[code] = item
	return true, c.save(ctx, sess.TenantID, menu)
}

// DeleteItem removes code from the catalog. It reports false when absent.
func (c *MenuCatalog) DeleteItem(ctx context.Context, code string) (bool, error) {
	sess, err := requireAdmin(ctx, c.resolver)
	if err != nil {
		return false, err
	}
	code = strings.TrimSpace(code)

	defer c.locks.lock(store.TenantKey(sess.TenantID, store.KindMenu))()
	menu, err := c.load(ctx, sess.TenantID)
	if err != nil {
		return false, err
	}
	if _, ok := menu[code]; !ok {
		return false, nil
	}
	delete(menu, code)
	return true, c.save(ctx, sess.TenantID, menu)
}

// ResetToDefault discards the custom catalog so reads fall back to the
// built-in one.
func (c *MenuCatalog) ResetToDefault(ctx context.Context) error {
	sess, err := requireAdmin(ctx, c.resolver)
	if err != nil {
		return err
	}
	key := store.TenantKey(sess.TenantID, store.KindMenu)
	defer c.locks.lock(key)()

	if err := c.store.Remove(ctx, key); err != nil {
		return fmt.Errorf("reset menu: %w", err)
	}
	c.logger.Infow("menu reset to default", "tenant", sess.TenantID, "by", sess.Username)
	return nil
}

// Categories returns the sorted distinct categories of the current catalog.
func (c *MenuCatalog) Categories(ctx context.Context) ([]string, error) {
	menu, err := c.GetMenu(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, item := range menu {
		seen[item.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out, nil
}

// ListByCategory returns the codes of one category in display order.
func (c *MenuCatalog) ListByCategory(ctx context.Context, category string) ([]string, models.Menu, error) {
	menu, err := c.GetMenu(ctx)
	if err != nil {
		return nil, nil, err
	}
	var codes []string
	for code, item := range menu {
		if strings.EqualFold(item.Category, category) {
			codes = append(codes, code)
		}
	}
	models.SortCodes(codes)
	return codes, menu, nil
}
