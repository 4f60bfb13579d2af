package bot

import (
	"context"
	"strings"
	"sync"

	"hotel-billing/models"
	"hotel-billing/services"

	"github.com/shopspring/decimal"
)

// itemFlow is a guided /newitem conversation: code, category, name, rate.
type itemFlow struct {
	Step     string // "code", "category", "name", "rate"
	Code     string
	Category string
	Name     string
}

type itemFlows struct {
	mu    sync.Mutex
	flows map[int64]*itemFlow
}

func newItemFlows() *itemFlows {
	return &itemFlows{flows: make(map[int64]*itemFlow)}
}

func (f *itemFlows) get(chatID int64) (*itemFlow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	flow, ok := f.flows[chatID]
	return flow, ok
}

func (f *itemFlows) start(chatID int64) {
	f.mu.Lock()
	f.flows[chatID] = &itemFlow{Step: "code"}
	f.mu.Unlock()
}

func (f *itemFlows) cancel(chatID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.flows[chatID]
	delete(f.flows, chatID)
	return ok
}

func (b *Bot) handleNewItem(ctx context.Context, chatID int64) (reply, error) {
	sess, _ := services.SessionFrom(ctx)
	if !sess.IsAdmin {
		return reply{}, services.ErrForbidden
	}
	b.flows.start(chatID)
	return textReply("🆕 New menu item. Send the item code (or /cancel)."), nil
}

// continueItemFlow feeds one plain message into the chat's /newitem flow.
func (b *Bot) continueItemFlow(ctx context.Context, chatID int64, flow *itemFlow, text string) (reply, error) {
	switch flow.Step {
	case "code":
		code := strings.TrimSpace(text)
		if _, exists, err := b.deps.Menu.Lookup(ctx, code); err != nil {
			return reply{}, err
		} else if exists {
			return textReply("Code %s is taken. Send another code, or use /setitem to change it.", code), nil
		}
		flow.Code = code
		flow.Step = "category"
		return textReply("Category for %s?", code), nil
	case "category":
		flow.Category = strings.TrimSpace(text)
		flow.Step = "name"
		return textReply("Item name?"), nil
	case "name":
		flow.Name = strings.TrimSpace(text)
		flow.Step = "rate"
		return textReply("Rate for %s?", flow.Name), nil
	case "rate":
		rate, err := decimal.NewFromString(strings.TrimSpace(text))
		if err != nil {
			return textReply("Send the rate as a number, e.g. 120 or 99.50."), nil
		}
		item := models.MenuItem{Name: flow.Name, Rate: rate, Category: flow.Category}
		if err := b.deps.Menu.AddItem(ctx, flow.Code, item); err != nil {
			return reply{}, err
		}
		b.flows.cancel(chatID)
		return textReply("✅ Added %s %s (%s) at %s.", flow.Code, item.Name, item.Category, rate.StringFixed(2)), nil
	}
	b.flows.cancel(chatID)
	return reply{}, nil
}

// handleSetItem adds or replaces an item in one line:
// /setitem code rate Category Name words. Underscores in the category
// stand for spaces.
func (b *Bot) handleSetItem(ctx context.Context, args []string) (reply, error) {
	if len(args) < 4 {
		return reply{}, usage("/setitem code rate Category Name")
	}
	rate, err := decimal.NewFromString(args[1])
	if err != nil {
		return reply{}, &services.ValidationError{Field: "rate", Reason: "not an amount: " + args[1]}
	}
	code := args[0]
	item := models.MenuItem{
		Name:     strings.Join(args[3:], " "),
		Rate:     rate,
		Category: strings.ReplaceAll(args[2], "_", " "),
	}
	updated, err := b.deps.Menu.UpdateItem(ctx, code, item)
	if err != nil {
		return reply{}, err
	}
	if updated {
		return textReply("✏️ Updated %s.", code), nil
	}
	if err := b.deps.Menu.AddItem(ctx, code, item); err != nil {
		return reply{}, err
	}
	return textReply("✅ Added %s.", code), nil
}

func (b *Bot) handleDeleteItem(ctx context.Context, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("/delitem code")
	}
	code := args[0]
	ok, err := b.deps.Menu.DeleteItem(ctx, code)
	if err != nil {
		return reply{}, err
	}
	if !ok {
		return textReply("No item %s.", code), nil
	}
	return textReply("🗑 Deleted %s.", code), nil
}

func (b *Bot) handleResetMenu(ctx context.Context, _ []string) (reply, error) {
	if err := b.deps.Menu.ResetToDefault(ctx); err != nil {
		return reply{}, err
	}
	return textReply("♻️ Menu reset to the default catalog."), nil
}

func (b *Bot) handleDeleteBill(ctx context.Context, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("/delbill ID")
	}
	ok, err := b.deps.Ledger.Delete(ctx, args[0])
	if err != nil {
		return reply{}, err
	}
	if !ok {
		return textReply("No bill %s.", args[0]), nil
	}
	return textReply("🗑 Bill deleted."), nil
}
