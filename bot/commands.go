package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hotel-billing/models"
	"hotel-billing/receipt"
	"hotel-billing/services"

	"github.com/shopspring/decimal"
)

const helpText = `Staff commands:
/login user password
/logout
/menu
/tables
/table T5
/add T5 101 [qty]
/qty T5 line qty
/remove T5 line
/customer T5 Name | Phone
/checkout T5 [gst|nogst] [jama]
/parcel 101x2 201 [gst|nogst]
/bills [search]
/bill ID
/pay ID amount
/stats
/cancel

Admin commands:
/newitem
/setitem code rate Category Name
/delitem code
/resetmenu
/delbill ID`

const maxListedBills = 15

// parseCommand splits "/add@hotelbot T5 101 2" into "/add" and its args.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd, fields[1:]
}

func (b *Bot) sessionContext(ctx context.Context, chatID int64) (context.Context, bool) {
	sess, ok, err := b.deps.Sessions.Load(ctx, chatID)
	if err != nil {
		b.logger.Errorw("load session", "chat_id", chatID, "error", err)
		return ctx, false
	}
	if !ok {
		return ctx, false
	}
	return services.WithSession(ctx, sess), true
}

// errorReply turns a service error into a message for staff.
func (b *Bot) errorReply(chatID int64, err error) reply {
	var throttled *services.ThrottledError
	switch {
	case services.IsValidation(err):
		return textReply("⚠️ %s", err.Error())
	case errors.As(err, &throttled):
		return textReply("⏳ %s", err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		return textReply("❌ Wrong username or password.")
	case errors.Is(err, services.ErrNoActiveTenant):
		return textReply("🔒 Please /login first.")
	case errors.Is(err, services.ErrForbidden):
		return textReply("🔒 This needs an admin login.")
	case errors.Is(err, services.ErrOrderCompleted):
		return textReply("This order is already completed. Use /checkout to bill it.")
	}
	b.logger.Errorw("command failed", "chat_id", chatID, "error", err)
	return textReply("Something went wrong, please try again.")
}

func (b *Bot) dispatch(ctx context.Context, chatID int64, text string) reply {
	cmd, args := parseCommand(text)
	switch cmd {
	case "/start", "/help":
		return reply{text: helpText}
	case "/login":
		return b.handleLogin(ctx, chatID, args)
	case "/logout":
		if err := b.deps.Sessions.Delete(ctx, chatID); err != nil {
			return b.errorReply(chatID, err)
		}
		b.flows.cancel(chatID)
		return textReply("👋 Logged out.")
	case "/cancel":
		if b.flows.cancel(chatID) {
			return textReply("Cancelled.")
		}
		return textReply("Nothing to cancel.")
	}

	sctx, ok := b.sessionContext(ctx, chatID)
	if !ok {
		return textReply("🔒 Please /login first.")
	}
	if flow, active := b.flows.get(chatID); active && !strings.HasPrefix(text, "/") {
		r, err := b.continueItemFlow(sctx, chatID, flow, text)
		if err != nil {
			return b.errorReply(chatID, err)
		}
		return r
	}
	if cmd == "/newitem" {
		r, err := b.handleNewItem(sctx, chatID)
		if err != nil {
			return b.errorReply(chatID, err)
		}
		return r
	}
	handlers := map[string]func(context.Context, []string) (reply, error){
		"/menu":      b.handleMenu,
		"/tables":    b.handleTables,
		"/table":     b.handleTable,
		"/add":       b.handleAdd,
		"/qty":       b.handleQty,
		"/remove":    b.handleRemove,
		"/customer":  b.handleCustomer,
		"/checkout":  b.handleCheckout,
		"/parcel":    b.handleParcel,
		"/bills":     b.handleBills,
		"/bill":      b.handleBill,
		"/pay":       b.handlePay,
		"/stats":     b.handleStats,
		"/setitem":   b.handleSetItem,
		"/delitem":   b.handleDeleteItem,
		"/resetmenu": b.handleResetMenu,
		"/delbill":   b.handleDeleteBill,
	}
	h, ok := handlers[cmd]
	if !ok {
		return textReply("Unknown command. Send /help for the list.")
	}
	r, err := h(sctx, args)
	if err != nil {
		return b.errorReply(chatID, err)
	}
	return r
}

func (b *Bot) handleLogin(ctx context.Context, chatID int64, args []string) reply {
	if len(args) != 2 {
		return textReply("Usage: /login user password")
	}
	sess, err := b.deps.Auth.Login(ctx, args[0], args[1])
	if err != nil {
		return b.errorReply(chatID, err)
	}
	if err := b.deps.Sessions.Save(ctx, chatID, sess); err != nil {
		return b.errorReply(chatID, err)
	}
	role := "staff"
	if sess.IsAdmin {
		role = "admin"
	}
	return textReply("✅ Logged in to %s as %s (%s).", sess.DisplayName, sess.Username, role)
}

func usage(format string) error {
	return &services.ValidationError{Reason: "usage: " + format}
}

func (b *Bot) handleMenu(ctx context.Context, _ []string) (reply, error) {
	categories, err := b.deps.Menu.Categories(ctx)
	if err != nil {
		return reply{}, err
	}
	var sb strings.Builder
	sb.WriteString("📋 Menu\n")
	for _, cat := range categories {
		codes, menu, err := b.deps.Menu.ListByCategory(ctx, cat)
		if err != nil {
			return reply{}, err
		}
		name := cat
		if name == "" {
			name = "Other"
		}
		fmt.Fprintf(&sb, "\n%s\n", name)
		for _, code := range codes {
			fmt.Fprintf(&sb, "%s  %s  %s\n", code, menu[code].Name, receipt.Money(menu[code].Rate))
		}
	}
	return reply{text: sb.String()}, nil
}

func (b *Bot) handleTables(ctx context.Context, _ []string) (reply, error) {
	ids, err := b.deps.Tables.ListActiveTables(ctx)
	if err != nil {
		return reply{}, err
	}
	if len(ids) == 0 {
		return textReply("No open tables."), nil
	}
	var sb strings.Builder
	sb.WriteString("🍽 Open tables\n")
	for _, id := range ids {
		sum, err := b.deps.Tables.Summary(ctx, id)
		if err != nil {
			return reply{}, err
		}
		fmt.Fprintf(&sb, "%s: %d items, %s\n", id, sum.ItemCount, receipt.Money(sum.Total))
	}
	return reply{text: sb.String()}, nil
}

func (b *Bot) tableCard(ctx context.Context, tableID string) (reply, error) {
	order, _, err := b.deps.Tables.Get(ctx, tableID)
	if err != nil {
		return reply{}, err
	}
	card := services.BuildTableCard(order)
	return reply{card: &card, cardTable: order.TableID}, nil
}

func (b *Bot) handleTable(ctx context.Context, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("/table T5")
	}
	return b.tableCard(ctx, args[0])
}

func (b *Bot) handleAdd(ctx context.Context, args []string) (reply, error) {
	if len(args) < 2 || len(args) > 3 {
		return reply{}, usage("/add T5 101 [qty]")
	}
	qty := 1
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return reply{}, usage("/add T5 101 [qty]")
		}
		qty = n
	}
	if _, err := b.deps.Tables.AddMenuItem(ctx, args[0], args[1], qty); err != nil {
		return reply{}, err
	}
	return b.tableCard(ctx, args[0])
}

// lineArg reads a 1-based line number as shown on the table card.
func lineArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, &services.ValidationError{Field: "line", Reason: "must be a line number from the table card"}
	}
	return n - 1, nil
}

func (b *Bot) handleQty(ctx context.Context, args []string) (reply, error) {
	if len(args) != 3 {
		return reply{}, usage("/qty T5 line qty")
	}
	index, err := lineArg(args[1])
	if err != nil {
		return reply{}, err
	}
	qty, err := strconv.Atoi(args[2])
	if err != nil {
		return reply{}, usage("/qty T5 line qty")
	}
	ok, err := b.deps.Tables.UpdateQuantity(ctx, args[0], index, qty)
	if err != nil {
		return reply{}, err
	}
	if !ok {
		return textReply("No line %s on table %s.", args[1], strings.ToUpper(args[0])), nil
	}
	return b.tableCard(ctx, args[0])
}

func (b *Bot) handleRemove(ctx context.Context, args []string) (reply, error) {
	if len(args) != 2 {
		return reply{}, usage("/remove T5 line")
	}
	index, err := lineArg(args[1])
	if err != nil {
		return reply{}, err
	}
	ok, err := b.deps.Tables.RemoveItem(ctx, args[0], index)
	if err != nil {
		return reply{}, err
	}
	if !ok {
		return textReply("No line %s on table %s.", args[1], strings.ToUpper(args[0])), nil
	}
	return b.tableCard(ctx, args[0])
}

// parseCustomer reads "Name | Phone"; either side may be empty.
func parseCustomer(args []string) models.CustomerPatch {
	name, phone, hasPhone := strings.Cut(strings.Join(args, " "), "|")
	var patch models.CustomerPatch
	if n := strings.TrimSpace(name); n != "" {
		patch.Name = &n
	}
	if p := strings.TrimSpace(phone); hasPhone && p != "" {
		patch.PhoneNumber = &p
	}
	return patch
}

func (b *Bot) handleCustomer(ctx context.Context, args []string) (reply, error) {
	if len(args) < 2 {
		return reply{}, usage("/customer T5 Name | Phone")
	}
	ok, err := b.deps.Tables.UpdateCustomerInfo(ctx, args[0], parseCustomer(args[1:]))
	if err != nil {
		return reply{}, err
	}
	if !ok {
		return textReply("Table %s has no order.", strings.ToUpper(args[0])), nil
	}
	return b.tableCard(ctx, args[0])
}

// parseCheckoutFlags reads optional "gst"/"nogst" and an amount received.
func parseCheckoutFlags(args []string) (services.CheckoutOptions, error) {
	var opts services.CheckoutOptions
	for _, a := range args {
		switch strings.ToLower(a) {
		case "gst":
			v := true
			opts.IncludeGST = &v
		case "nogst":
			v := false
			opts.IncludeGST = &v
		default:
			jama, err := decimal.NewFromString(a)
			if err != nil {
				return opts, &services.ValidationError{Field: "jama", Reason: "not an amount: " + a}
			}
			opts.Jama = &jama
		}
	}
	return opts, nil
}

func (b *Bot) handleCheckout(ctx context.Context, args []string) (reply, error) {
	if len(args) < 1 {
		return reply{}, usage("/checkout T5 [gst|nogst] [jama]")
	}
	opts, err := parseCheckoutFlags(args[1:])
	if err != nil {
		return reply{}, err
	}
	bill, found, err := b.deps.Checkout.CheckoutTable(ctx, args[0], opts)
	if err != nil {
		return reply{}, err
	}
	if !found {
		return textReply("Table %s has no order.", strings.ToUpper(args[0])), nil
	}
	if err := b.deps.Cards.Delete(ctx, bill.TableID); err != nil {
		b.logger.Warnw("drop card pointer", "table", bill.TableID, "error", err)
	}
	card := services.BuildBillCard(bill)
	return reply{card: &card}, nil
}

// parseParcelLines reads "101x2 201 gst": code[xqty] items then flags.
func parseParcelLines(args []string) ([]services.ParcelLine, services.CheckoutOptions, error) {
	var lines []services.ParcelLine
	var flags []string
	for _, a := range args {
		switch strings.ToLower(a) {
		case "gst", "nogst":
			flags = append(flags, a)
			continue
		}
		code, qtyStr, hasQty := strings.Cut(strings.ToLower(a), "x")
		qty := 1
		if hasQty {
			n, err := strconv.Atoi(qtyStr)
			if err != nil {
				return nil, services.CheckoutOptions{}, &services.ValidationError{Field: "quantity", Reason: "bad item " + a}
			}
			qty = n
		}
		lines = append(lines, services.ParcelLine{Code: code, Quantity: qty})
	}
	opts, err := parseCheckoutFlags(flags)
	return lines, opts, err
}

func (b *Bot) handleParcel(ctx context.Context, args []string) (reply, error) {
	if len(args) == 0 {
		return reply{}, usage("/parcel 101x2 201 [gst|nogst]")
	}
	lines, opts, err := parseParcelLines(args)
	if err != nil {
		return reply{}, err
	}
	bill, err := b.deps.Checkout.CheckoutParcel(ctx, lines, models.CustomerInfo{}, opts)
	if err != nil {
		return reply{}, err
	}
	card := services.BuildBillCard(bill)
	return reply{card: &card}, nil
}

func (b *Bot) handleBills(ctx context.Context, args []string) (reply, error) {
	bills, err := b.deps.Ledger.Filter(ctx, services.BillFilter{Search: strings.Join(args, " ")})
	if err != nil {
		return reply{}, err
	}
	if len(bills) == 0 {
		return textReply("No bills found."), nil
	}
	var sb strings.Builder
	for i, bill := range bills {
		if i == maxListedBills {
			fmt.Fprintf(&sb, "… and %d more\n", len(bills)-maxListedBills)
			break
		}
		status := "✅"
		if !bill.IsSettled() {
			status = "baki " + receipt.Money(bill.PaymentInfo.Baki)
		}
		fmt.Fprintf(&sb, "%s  %s  %s  %s\n", bill.BillNumber, bill.Date, receipt.Money(bill.Total), status)
	}
	return reply{text: sb.String()}, nil
}

func (b *Bot) findBill(ctx context.Context, id string) (models.BillRecord, error) {
	bill, found, err := b.deps.Ledger.GetByID(ctx, id)
	if err != nil {
		return models.BillRecord{}, err
	}
	if !found {
		return models.BillRecord{}, &services.ValidationError{Field: "bill", Reason: "no bill " + id}
	}
	return bill, nil
}

func (b *Bot) receiptReply(ctx context.Context, bill models.BillRecord) (reply, error) {
	sess, _ := services.SessionFrom(ctx)
	tenant, ok := b.deps.Tenants.Tenant(sess.TenantID)
	if !ok {
		return reply{}, fmt.Errorf("tenant %q not in table", sess.TenantID)
	}
	data, err := receipt.PDF(tenant, bill)
	if err != nil {
		return reply{}, err
	}
	card := services.BuildBillCard(bill)
	return reply{
		doc:  &document{name: receipt.FileName(bill), data: data, caption: "Bill " + bill.BillNumber},
		card: &card,
	}, nil
}

func (b *Bot) handleBill(ctx context.Context, args []string) (reply, error) {
	if len(args) != 1 {
		return reply{}, usage("/bill ID")
	}
	bill, err := b.findBill(ctx, args[0])
	if err != nil {
		return reply{}, err
	}
	return b.receiptReply(ctx, bill)
}

func (b *Bot) handlePay(ctx context.Context, args []string) (reply, error) {
	if len(args) != 2 {
		return reply{}, usage("/pay ID amount")
	}
	jama, err := decimal.NewFromString(args[1])
	if err != nil {
		return reply{}, &services.ValidationError{Field: "jama", Reason: "not an amount: " + args[1]}
	}
	bill, found, err := b.deps.Ledger.UpdatePayment(ctx, args[0], services.PaymentPatch{Jama: &jama})
	if err != nil {
		return reply{}, err
	}
	if !found {
		return textReply("No bill %s.", args[0]), nil
	}
	card := services.BuildBillCard(bill)
	return reply{card: &card}, nil
}

func (b *Bot) handleStats(ctx context.Context, _ []string) (reply, error) {
	stats, err := b.deps.Ledger.Statistics(ctx)
	if err != nil {
		return reply{}, err
	}
	return textReply("📊 Today: %d bills, %s\nAll time: %d bills, %s",
		stats.TodaysBills, receipt.Money(stats.TodaysRevenue),
		stats.TotalBills, receipt.Money(stats.TotalRevenue)), nil
}

func (b *Bot) dispatchCallback(ctx context.Context, chatID int64, data string) reply {
	sctx, ok := b.sessionContext(ctx, chatID)
	if !ok {
		return textReply("🔒 Please /login first.")
	}
	action, args := services.ParseCallback(data)
	var (
		r   reply
		err error
	)
	switch {
	case action == services.CallbackCheckout && len(args) == 2:
		r, err = b.handleCheckout(sctx, args)
	case action == services.CallbackRemove && len(args) == 2:
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			return reply{}
		}
		r, err = b.handleRemove(sctx, []string{args[0], strconv.Itoa(n + 1)})
	case action == services.CallbackReceipt && len(args) == 1:
		r, err = b.handleBill(sctx, args)
	case action == services.CallbackSettle && len(args) == 1:
		r, err = b.settle(sctx, args[0])
	default:
		b.logger.Warnw("unknown callback", "data", data)
		return reply{}
	}
	if err != nil {
		return b.errorReply(chatID, err)
	}
	return r
}

// settle records the whole total as received.
func (b *Bot) settle(ctx context.Context, id string) (reply, error) {
	bill, err := b.findBill(ctx, id)
	if err != nil {
		return reply{}, err
	}
	return b.handlePay(ctx, []string{bill.ID, bill.Total.String()})
}
