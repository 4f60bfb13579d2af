package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"hotel-billing/store"
)

// Session is the authenticated staff context every tenant-scoped operation
// runs under.
type Session struct {
	TenantID    string    `json:"tenantId"`
	DisplayName string    `json:"displayName"`
	Username    string    `json:"username"`
	IsAdmin     bool      `json:"isAdmin"`
	LoggedInAt  time.Time `json:"loggedInAt"`
}

type sessionKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session attached to ctx, if any.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	if !ok || s.TenantID == "" {
		return Session{}, false
	}
	return s, true
}

// TenantResolver yields the tenant the current operation belongs to.
type TenantResolver interface {
	CurrentTenant(ctx context.Context) (Session, bool)
}

// ContextResolver resolves the tenant from the session on the context.
type ContextResolver struct{}

func (ContextResolver) CurrentTenant(ctx context.Context) (Session, bool) {
	return SessionFrom(ctx)
}

func requireTenant(ctx context.Context, r TenantResolver) (Session, error) {
	s, ok := r.CurrentTenant(ctx)
	if !ok {
		return Session{}, ErrNoActiveTenant
	}
	return s, nil
}

func requireAdmin(ctx context.Context, r TenantResolver) (Session, error) {
	s, err := requireTenant(ctx, r)
	if err != nil {
		return Session{}, err
	}
	if !s.IsAdmin {
		return Session{}, ErrForbidden
	}
	return s, nil
}

// SessionStore persists bot chat sessions so a restart does not log staff out.
// A session older than ttl is removed on load, matching the lifetime of an
// API token. A zero ttl keeps sessions until logout.
type SessionStore struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionStore(s store.Store, ttl time.Duration, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{store: s, ttl: ttl, now: now}
}

func sessionKeyFor(chatID int64) store.Key {
	return store.GlobalKey(store.KindSession, strconv.FormatInt(chatID, 10))
}

func (s *SessionStore) Save(ctx context.Context, chatID int64, sess Session) error {
	if err := store.SetJSON(ctx, s.store, sessionKeyFor(chatID), sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, chatID int64) (Session, bool, error) {
	var sess Session
	ok, err := store.GetJSON(ctx, s.store, sessionKeyFor(chatID), &sess)
	if err != nil {
		return Session{}, false, fmt.Errorf("load session: %w", err)
	}
	if !ok || sess.TenantID == "" {
		return Session{}, false, nil
	}
	if s.ttl > 0 && s.now().Sub(sess.LoggedInAt) > s.ttl {
		if err := s.Delete(ctx, chatID); err != nil {
			return Session{}, false, fmt.Errorf("drop expired session: %w", err)
		}
		return Session{}, false, nil
	}
	return sess, true, nil
}

func (s *SessionStore) Delete(ctx context.Context, chatID int64) error {
	return s.store.Remove(ctx, sessionKeyFor(chatID))
}

// keyedMutex serialises read-modify-write cycles on one store key within
// this process.
type keyedMutex struct {
	locks sync.Map // map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key store.Key) func() {
	v, _ := k.locks.LoadOrStore(key.String(), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
