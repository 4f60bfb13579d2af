package store

import (
	"context"
	"strings"
)

// Store is a persistent mapping from keys to JSON documents. Single-key
// operations are atomic; sequences of calls are not.
type Store interface {
	// Get returns the stored value. A missing key is (nil, false, nil).
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, value []byte) error
	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key Key) error
	Ping(ctx context.Context) error
	Close() error
}

const (
	KindMenu          = "menu"
	KindMenuVersion   = "menu_language_version"
	KindTableOrders   = "tableOrders"
	KindBillHistory   = "bill_history"
	KindSession       = "session"
	KindLoginThrottle = "login_throttle"
	KindCardPointer   = "card_pointer"
)

// Key is a composite (tenant, kind, id) key. Backends only see String().
type Key struct {
	Tenant string
	Kind   string
	ID     string
}

// TenantKey builds the key of a per-tenant document such as the menu.
func TenantKey(tenantID, kind string) Key {
	return Key{Tenant: tenantID, Kind: kind}
}

// GlobalKey builds the key of a document that is not owned by a tenant.
func GlobalKey(kind, id string) Key {
	return Key{Kind: kind, ID: id}
}

// String renders the persisted layout, e.g. "menu_hotel_sai" or "session_42".
func (k Key) String() string {
	parts := make([]string, 0, 3)
	parts = append(parts, k.Kind)
	if k.Tenant != "" {
		parts = append(parts, k.Tenant)
	}
	if k.ID != "" {
		parts = append(parts, k.ID)
	}
	return strings.Join(parts, "_")
}
