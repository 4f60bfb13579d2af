package store

import (
	"context"
	"errors"
	"testing"
)

func TestKeyString(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{TenantKey("hotel_sai", KindMenu), "menu_hotel_sai"},
		{TenantKey("hotel_sai", KindMenuVersion), "menu_language_version_hotel_sai"},
		{TenantKey("hotel_sai", KindTableOrders), "tableOrders_hotel_sai"},
		{TenantKey("hotel_sai", KindBillHistory), "bill_history_hotel_sai"},
		{GlobalKey(KindSession, "42"), "session_42"},
		{GlobalKey(KindLoginThrottle, "sai_staff"), "login_throttle_sai_staff"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.key, got, tt.want)
		}
	}
}

// exerciseStore runs the contract every backend must satisfy.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := TenantKey("contract_test", KindMenu)
	_ = s.Remove(ctx, key)

	if _, ok, err := s.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get on missing key = ok %v err %v, want false, nil", ok, err)
	}
	if err := s.Set(ctx, key, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, key, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	var doc struct{ A int }
	ok, err := GetJSON(ctx, s, key, &doc)
	if err != nil || !ok {
		t.Fatalf("GetJSON = %v, %v", ok, err)
	}
	if doc.A != 2 {
		t.Errorf("A = %d, want 2", doc.A)
	}
	if err := s.Remove(ctx, key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, key); err != nil {
		t.Fatalf("Remove missing key: %v", err)
	}
	if _, ok, _ := s.Get(ctx, key); ok {
		t.Error("key still present after Remove")
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := GlobalKey(KindSession, "1")
	buf := []byte(`"x"`)
	_ = m.Set(ctx, key, buf)
	buf[1] = 'y'

	got, _, _ := m.Get(ctx, key)
	if string(got) != `"x"` {
		t.Errorf("stored value changed through caller buffer: %s", got)
	}
}

func TestJSONEnvelope(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := TenantKey("t1", KindBillHistory)

	if err := SetJSON(ctx, m, key, []string{"b", "a"}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	raw, _, _ := m.Get(ctx, key)
	if string(raw) != `{"v":1,"data":["b","a"]}` {
		t.Errorf("raw = %s", raw)
	}

	var got []string
	if ok, err := GetJSON(ctx, m, key, &got); err != nil || !ok {
		t.Fatalf("GetJSON = %v, %v", ok, err)
	}
	if len(got) != 2 || got[0] != "b" {
		t.Errorf("got %v", got)
	}
}

func TestGetJSON_LegacyValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	arrKey := TenantKey("t1", KindBillHistory)
	_ = m.Set(ctx, arrKey, []byte(`[{"id":"x"}]`))
	var bills []struct{ ID string }
	if ok, err := GetJSON(ctx, m, arrKey, &bills); err != nil || !ok {
		t.Fatalf("legacy array: %v, %v", ok, err)
	}
	if len(bills) != 1 || bills[0].ID != "x" {
		t.Errorf("bills = %+v", bills)
	}

	mapKey := TenantKey("t1", KindMenu)
	_ = m.Set(ctx, mapKey, []byte(`{"101":{"name":"Tea"}}`))
	var menu map[string]struct{ Name string }
	if ok, err := GetJSON(ctx, m, mapKey, &menu); err != nil || !ok {
		t.Fatalf("legacy map: %v, %v", ok, err)
	}
	if menu["101"].Name != "Tea" {
		t.Errorf("menu = %+v", menu)
	}
}

func TestGetJSON_RejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := TenantKey("t1", KindMenu)
	_ = m.Set(ctx, key, []byte(`{"v":99,"data":{}}`))

	var v map[string]any
	_, err := GetJSON(ctx, m, key, &v)
	if !errors.Is(err, ErrUnsupportedSchema) {
		t.Errorf("err = %v, want ErrUnsupportedSchema", err)
	}
}
