package services

import (
	"context"
	"fmt"
	"time"

	"hotel-billing/store"
)

// MessagePointer locates the chat message showing a table card so it can be
// edited in place instead of posting a new card on every change.
type MessagePointer struct {
	ChatID    int64     `json:"chatId"`
	MessageID int       `json:"messageId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CardPointers struct {
	store    store.Store
	resolver TenantResolver
}

func NewCardPointers(s store.Store, resolver TenantResolver) *CardPointers {
	return &CardPointers{store: s, resolver: resolver}
}

func cardKey(tenantID, tableID string) store.Key {
	return store.Key{Tenant: tenantID, Kind: store.KindCardPointer, ID: normalizeTableID(tableID)}
}

// Get returns the pointer for the table's card. ok is false if none exists.
func (p *CardPointers) Get(ctx context.Context, tableID string) (MessagePointer, bool, error) {
	sess, err := requireTenant(ctx, p.resolver)
	if err != nil {
		return MessagePointer{}, false, err
	}
	var ptr MessagePointer
	ok, err := store.GetJSON(ctx, p.store, cardKey(sess.TenantID, tableID), &ptr)
	if err != nil {
		return MessagePointer{}, false, fmt.Errorf("get card pointer: %w", err)
	}
	return ptr, ok, nil
}

// Upsert records where the table's card now lives.
func (p *CardPointers) Upsert(ctx context.Context, tableID string, chatID int64, messageID int) error {
	sess, err := requireTenant(ctx, p.resolver)
	if err != nil {
		return err
	}
	return store.SetJSON(ctx, p.store, cardKey(sess.TenantID, tableID), MessagePointer{
		ChatID:    chatID,
		MessageID: messageID,
		UpdatedAt: time.Now(),
	})
}

// Delete forgets the table's card, e.g. after checkout.
func (p *CardPointers) Delete(ctx context.Context, tableID string) error {
	sess, err := requireTenant(ctx, p.resolver)
	if err != nil {
		return err
	}
	return p.store.Remove(ctx, cardKey(sess.TenantID, tableID))
}
