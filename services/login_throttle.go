package services

import (
	"context"
	"math"
	"strings"
	"time"

	"hotel-billing/store"
)

const ThrottleCooldownCapSeconds = 30

type throttleState struct {
	FailCount     int       `json:"failCount"`
	LastFailedAt  time.Time `json:"lastFailedAt"`
	CooldownUntil time.Time `json:"cooldownUntil"`
}

// LoginThrottle slows down password guessing per username. State lives in
// the store so it survives restarts.
type LoginThrottle struct {
	store store.Store
	now   func() time.Time
	locks keyedMutex
}

func NewLoginThrottle(s store.Store, now func() time.Time) *LoginThrottle {
	if now == nil {
		now = time.Now
	}
	return &LoginThrottle{store: s, now: now}
}

func throttleKey(username string) store.Key {
	return store.GlobalKey(store.KindLoginThrottle, strings.ToLower(strings.TrimSpace(username)))
}

// WaitSeconds returns how many seconds the user must wait before trying again (0 if no cooldown).
func (t *LoginThrottle) WaitSeconds(ctx context.Context, username string) (int, error) {
	var st throttleState
	ok, err := store.GetJSON(ctx, t.store, throttleKey(username), &st)
	if err != nil || !ok {
		return 0, err
	}
	now := t.now()
	if now.Before(st.CooldownUntil) {
		return int(st.CooldownUntil.Sub(now).Seconds()) + 1, nil // round up
	}
	return 0, nil
}

// RecordFailed increments the fail count and sets cooldown_until = now + min(30, 2^failCount) seconds.
func (t *LoginThrottle) RecordFailed(ctx context.Context, username string) error {
	key := throttleKey(username)
	defer t.locks.lock(key)()

	var st throttleState
	if _, err := store.GetJSON(ctx, t.store, key, &st); err != nil {
		return err
	}
	now := t.now()
	st.FailCount++
	st.LastFailedAt = now
	st.CooldownUntil = now.Add(time.Duration(CooldownSecondsForFailCount(st.FailCount)) * time.Second)
	return store.SetJSON(ctx, t.store, key, st)
}

// RecordSuccess clears the fail count and cooldown for the user.
func (t *LoginThrottle) RecordSuccess(ctx context.Context, username string) error {
	key := throttleKey(username)
	defer t.locks.lock(key)()
	return t.store.Remove(ctx, key)
}

// CooldownSecondsForFailCount returns min(30, 2^failCount).
func CooldownSecondsForFailCount(failCount int) int {
	s := math.Pow(2, float64(failCount))
	if s > ThrottleCooldownCapSeconds {
		return ThrottleCooldownCapSeconds
	}
	return int(s)
}
