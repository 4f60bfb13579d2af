package bot

import (
	"context"
	"fmt"
	"strings"

	"hotel-billing/models"
	"hotel-billing/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TenantLookup resolves tenant details for receipts.
type TenantLookup interface {
	Tenant(id string) (models.Tenant, bool)
}

type Deps struct {
	Auth     *services.Authenticator
	Sessions *services.SessionStore
	Menu     *services.MenuCatalog
	Tables   *services.TableOrders
	Ledger   *services.BillLedger
	Checkout *services.Checkout
	Cards    *services.CardPointers
	Tenants  TenantLookup
	Logger   *zap.SugaredLogger
}

// Bot is the staff bot: each chat logs into one tenant and then works its
// tables and bills with slash commands and inline buttons.
type Bot struct {
	api    *tgbotapi.BotAPI
	deps   Deps
	logger *zap.SugaredLogger
	flows  *itemFlows
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return newBot(api, deps), nil
}

func newBot(api *tgbotapi.BotAPI, deps Deps) *Bot {
	return &Bot{api: api, deps: deps, logger: deps.Logger, flows: newItemFlows()}
}

// reply is what a command produces; deliver turns it into Telegram calls.
type reply struct {
	text string
	card *services.OrderCardContent
	// cardTable, when set, makes the card replace the table's previous card.
	cardTable string
	doc       *document
}

type document struct {
	name    string
	data    []byte
	caption string
}

func textReply(format string, args ...any) reply {
	return reply{text: fmt.Sprintf(format, args...)}
}

func (b *Bot) setBotCommands() error {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "login", Description: "Log in: /login user password"},
		tgbotapi.BotCommand{Command: "tables", Description: "Open tables"},
		tgbotapi.BotCommand{Command: "menu", Description: "Show the menu"},
		tgbotapi.BotCommand{Command: "bills", Description: "Recent bills"},
		tgbotapi.BotCommand{Command: "stats", Description: "Today's totals"},
		tgbotapi.BotCommand{Command: "help", Description: "All commands"},
	)
	_, err := b.api.Request(cfg)
	return err
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	if err := b.setBotCommands(); err != nil {
		b.logger.Warnw("failed to register bot commands", "error", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Infow("bot started", "username", b.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cq := update.CallbackQuery; cq != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			b.logger.Debugw("answer callback", "error", err)
		}
		if cq.Message == nil {
			return
		}
		chatID := cq.Message.Chat.ID
		b.deliver(ctx, chatID, b.dispatchCallback(ctx, chatID, cq.Data))
		return
	}
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/login") {
		// the password should not stay in the chat history
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
			b.logger.Debugw("delete login message", "chat_id", chatID, "error", err)
		}
	}
	b.deliver(ctx, chatID, b.dispatch(ctx, chatID, text))
}

func (b *Bot) deliver(ctx context.Context, chatID int64, r reply) {
	if r.doc != nil {
		if err := b.SendDocument(ctx, chatID, r.doc.name, r.doc.data, r.doc.caption); err != nil {
			b.logger.Errorw("send document", "chat_id", chatID, "error", err)
		}
	}
	if r.card != nil {
		if r.cardTable != "" {
			if sctx, ok := b.sessionContext(ctx, chatID); ok {
				b.UpsertTableCard(sctx, r.cardTable, chatID, *r.card)
			}
		} else {
			b.sendCard(chatID, *r.card)
		}
	}
	if r.text != "" {
		b.send(chatID, r.text)
	}
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Errorw("send error", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendCard(chatID int64, content services.OrderCardContent) (int, error) {
	msg := tgbotapi.NewMessage(chatID, content.Text)
	if kb := cardMarkup(content); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		b.logger.Errorw("send card", "chat_id", chatID, "error", err)
		return 0, err
	}
	return sent.MessageID, nil
}

// SendDocument uploads data as a file to chatID. It makes the bot usable as
// the receipt worker's sender.
func (b *Bot) SendDocument(_ context.Context, chatID int64, fileName string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: fileName, Bytes: data})
	doc.Caption = caption
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

// cardMarkup converts OrderCardContent.Buttons to a Telegram inline keyboard.
func cardMarkup(c services.OrderCardContent) *tgbotapi.InlineKeyboardMarkup {
	if len(c.Buttons) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range c.Buttons {
		var btns []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.CallbackData))
		}
		rows = append(rows, btns)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// UpsertTableCard edits the table's existing card if it lives in this chat;
// otherwise sends a new card and moves the pointer here.
// On "message not found" (e.g. deleted): send new message and upsert pointer.
// On "message is not modified": ignore.
func (b *Bot) UpsertTableCard(ctx context.Context, tableID string, chatID int64, content services.OrderCardContent) {
	ptr, ok, err := b.deps.Cards.Get(ctx, tableID)
	if err != nil {
		b.logger.Errorw("get card pointer", "table", tableID, "error", err)
	}
	if ok && ptr.ChatID == chatID {
		edit := tgbotapi.NewEditMessageText(ptr.ChatID, ptr.MessageID, content.Text)
		if kb := cardMarkup(content); kb != nil {
			edit.ReplyMarkup = kb
		} else {
			emptyKb := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
			edit.ReplyMarkup = &emptyKb
		}
		_, err = b.api.Send(edit)
		if err == nil {
			return
		}
		errStr := err.Error()
		if strings.Contains(errStr, "not modified") {
			return
		}
		if !strings.Contains(errStr, "not found") {
			b.logger.Errorw("edit table card", "table", tableID, "error", err)
			return
		}
	}

	messageID, err := b.sendCard(chatID, content)
	if err != nil {
		return
	}
	if err := b.deps.Cards.Upsert(ctx, tableID, chatID, messageID); err != nil {
		b.logger.Errorw("save card pointer", "table", tableID, "error", err)
	}
}
