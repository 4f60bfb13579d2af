package services

import (
	"context"
	"testing"
	"time"

	"hotel-billing/store"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(store.NewMemory(), 0, nil)

	if _, ok, err := s.Load(ctx, 42); ok || err != nil {
		t.Fatalf("Load empty = %v, %v", ok, err)
	}

	want := Session{TenantID: "hotel_sai", DisplayName: "Hotel Sai Prasad", Username: "sai_admin", IsAdmin: true,
		LoggedInAt: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)}
	if err := s.Save(ctx, 42, want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Load(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if got.TenantID != want.TenantID || got.Username != want.Username || !got.IsAdmin || !got.LoggedInAt.Equal(want.LoggedInAt) {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
	if _, ok, _ := s.Load(ctx, 43); ok {
		t.Error("session visible from another chat")
	}

	if err := s.Delete(ctx, 42); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Load(ctx, 42); ok {
		t.Error("session survived Delete")
	}
}

func TestSessionStore_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	clock := &fixedClock{t: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)}
	s := NewSessionStore(kv, 12*time.Hour, clock.now)

	sess := Session{TenantID: "hotel_sai", Username: "sai_staff", LoggedInAt: clock.now()}
	if err := s.Save(ctx, 42, sess); err != nil {
		t.Fatal(err)
	}

	clock.advance(12 * time.Hour)
	if _, ok, err := s.Load(ctx, 42); !ok || err != nil {
		t.Fatalf("Load at ttl = %v, %v", ok, err)
	}

	clock.advance(time.Second)
	if _, ok, err := s.Load(ctx, 42); ok || err != nil {
		t.Fatalf("Load after ttl = %v, %v", ok, err)
	}
	if kv.Len() != 0 {
		t.Errorf("expired session left in store: %d keys", kv.Len())
	}

	// a fresh login starts a new lifetime
	sess.LoggedInAt = clock.now()
	if err := s.Save(ctx, 42, sess); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Load(ctx, 42); !ok {
		t.Error("fresh session not loaded")
	}
}

func TestContextResolver(t *testing.T) {
	r := ContextResolver{}
	if _, ok := r.CurrentTenant(context.Background()); ok {
		t.Error("resolved a tenant from an empty context")
	}
	if _, ok := r.CurrentTenant(WithSession(context.Background(), Session{Username: "x"})); ok {
		t.Error("resolved a session without tenant id")
	}
	sess, ok := r.CurrentTenant(staffCtx("hotel_udupi"))
	if !ok || sess.TenantID != "hotel_udupi" {
		t.Errorf("CurrentTenant = %+v, %v", sess, ok)
	}
}
