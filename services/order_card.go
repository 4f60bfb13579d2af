package services

import (
	"fmt"
	"strings"

	"hotel-billing/models"
	"hotel-billing/receipt"
)

// OrderCardButton is one inline button (text + callback_data).
type OrderCardButton struct {
	Text         string
	CallbackData string
}

// OrderCardContent is the text and optional inline keyboard for a card.
type OrderCardContent struct {
	Text    string
	Buttons [][]OrderCardButton
}

// Callback data prefixes understood by the bot.
const (
	CallbackCheckout = "checkout"
	CallbackReceipt  = "receipt"
	CallbackSettle   = "settle"
	CallbackRemove   = "remove"
)

// BuildTableCard renders a table's running order with checkout buttons.
func BuildTableCard(order models.TableOrder) OrderCardContent {
	if len(order.Items) == 0 {
		return OrderCardContent{Text: fmt.Sprintf("Table %s is free.", order.TableID)}
	}
	sum := Summarize(order)

	var sb strings.Builder
	fmt.Fprintf(&sb, "🍽 Table %s", order.TableID)
	if order.IsCompleted() {
		sb.WriteString(" (completed)")
	}
	sb.WriteString("\n")
	if c := order.CustomerInfo; c.Name != "" || c.PhoneNumber != "" {
		fmt.Fprintf(&sb, "👤 %s %s\n", c.Name, c.PhoneNumber)
	}
	if !order.StartTime.IsZero() {
		fmt.Fprintf(&sb, "Since %s\n", order.StartTime.Format("3:04 PM"))
	}
	sb.WriteString("\n")
	for i, item := range order.Items {
		fmt.Fprintf(&sb, "%d. %s × %d = %s\n", i+1, item.Name, item.Quantity, receipt.Money(item.Amount()))
	}
	fmt.Fprintf(&sb, "\nItems: %d\nTotal: %s", sum.ItemCount, receipt.Money(sum.Total))

	var buttons [][]OrderCardButton
	if !order.IsCompleted() {
		row := make([]OrderCardButton, 0, len(order.Items))
		for i := range order.Items {
			row = append(row, OrderCardButton{
				Text:         fmt.Sprintf("➖ %d", i+1),
				CallbackData: fmt.Sprintf("%s:%s:%d", CallbackRemove, order.TableID, i),
			})
		}
		if len(row) > 0 {
			buttons = append(buttons, row)
		}
	}
	buttons = append(buttons, []OrderCardButton{
		{Text: "🧾 Checkout", CallbackData: CallbackCheckout + ":" + order.TableID + ":nogst"},
		{Text: "🧾 Checkout + GST", CallbackData: CallbackCheckout + ":" + order.TableID + ":gst"},
	})
	return OrderCardContent{Text: sb.String(), Buttons: buttons}
}

// BuildBillCard renders a saved bill with receipt and settle buttons.
func BuildBillCard(bill models.BillRecord) OrderCardContent {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🧾 Bill %s\n%s %s\n", bill.BillNumber, bill.Date, bill.Time)
	if bill.OrderType == models.OrderTypeTable {
		fmt.Fprintf(&sb, "Table %s\n", bill.TableID)
	} else {
		sb.WriteString("Parcel\n")
	}
	if bill.CustomerInfo.Name != "" {
		fmt.Fprintf(&sb, "👤 %s\n", bill.CustomerInfo.Name)
	}
	fmt.Fprintf(&sb, "\nSubtotal: %s\n", receipt.Money(bill.Subtotal))
	if bill.IncludeGST {
		fmt.Fprintf(&sb, "GST: %s\n", receipt.Money(bill.Tax))
	}
	fmt.Fprintf(&sb, "Total: %s\nJama: %s\nBaki: %s",
		receipt.Money(bill.Total), receipt.Money(bill.PaymentInfo.Jama), receipt.Money(bill.PaymentInfo.Baki))

	buttons := [][]OrderCardButton{{{Text: "📄 PDF", CallbackData: CallbackReceipt + ":" + bill.ID}}}
	if !bill.IsSettled() {
		buttons[0] = append(buttons[0], OrderCardButton{Text: "✅ Paid in full", CallbackData: CallbackSettle + ":" + bill.ID})
	}
	return OrderCardContent{Text: sb.String(), Buttons: buttons}
}

// ParseCallback splits "action:arg1:arg2".
func ParseCallback(data string) (action string, args []string) {
	parts := strings.Split(data, ":")
	return parts[0], parts[1:]
}
