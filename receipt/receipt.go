// Package receipt renders saved bills for the counter printer and for
// download.
package receipt

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"hotel-billing/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// Width is the character width of a text receipt (80 mm roll).
const Width = 40

// Money renders an amount with two decimals, e.g. "133.20".
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func center(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= Width {
		return s
	}
	return strings.Repeat(" ", (Width-n)/2) + s
}

func spread(left, right string) string {
	gap := Width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "."
}

func customerLine(c models.CustomerInfo) string {
	switch {
	case c.Name != "" && c.PhoneNumber != "":
		return fmt.Sprintf("%s (%s)", c.Name, c.PhoneNumber)
	case c.Name != "":
		return c.Name
	default:
		return c.PhoneNumber
	}
}

func orderLabel(b models.BillRecord) string {
	if b.OrderType == models.OrderTypeTable && b.TableID != "" {
		return "Table " + b.TableID
	}
	return "Parcel"
}

// Text renders a monospace receipt.
func Text(t models.Tenant, b models.BillRecord) string {
	rule := strings.Repeat("-", Width)
	var sb strings.Builder
	w := func(s string) { sb.WriteString(s); sb.WriteByte('\n') }

	w(center(t.DisplayName))
	if t.Address != "" {
		w(center(t.Address))
	}
	if t.Phone != "" {
		w(center("Ph: " + t.Phone))
	}
	w(rule)
	w(spread("Bill "+b.BillNumber, b.Date))
	w(spread(orderLabel(b), b.Time))
	if c := customerLine(b.CustomerInfo); c != "" {
		w("Customer: " + c)
	}
	w(rule)
	w(fmt.Sprintf("%-18s %4s %7s %8s", "Item", "Qty", "Rate", "Amount"))
	for _, item := range b.Items {
		w(fmt.Sprintf("%-18s %4d %7s %8s", truncate(item.Name, 18), item.Quantity, Money(item.Rate), Money(item.Amount())))
	}
	w(rule)
	w(spread("Subtotal", Money(b.Subtotal)))
	if b.IncludeGST {
		w(spread("GST 18%", Money(b.Tax)))
	}
	w(spread("TOTAL", Money(b.Total)))
	w(spread("Received (jama)", Money(b.PaymentInfo.Jama)))
	w(spread("Balance (baki)", Money(b.PaymentInfo.Baki)))
	w(rule)
	sb.WriteString(center("Thank you! Visit again"))
	return sb.String()
}

// PDF renders the bill as a one-page A5 document.
func PDF(t models.Tenant, b models.BillRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Bill "+b.BillNumber, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(t.DisplayName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if t.Address != "" {
		pdf.CellFormat(0, 5, tr(t.Address), "", 1, "C", false, 0, "")
	}
	if t.Phone != "" {
		pdf.CellFormat(0, 5, "Ph: "+t.Phone, "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(64, 6, "Bill No: "+b.BillNumber, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, b.Date+" "+b.Time, "", 1, "R", false, 0, "")
	pdf.CellFormat(64, 6, orderLabel(b), "", 1, "L", false, 0, "")
	if c := customerLine(b.CustomerInfo); c != "" {
		pdf.CellFormat(0, 6, tr("Customer: "+c), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 7, "Item", "1", 0, "C", false, 0, "")
	pdf.CellFormat(16, 7, "Qty", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 7, "Rate", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 7, "Amount", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, item := range b.Items {
		pdf.CellFormat(60, 7, tr(truncate(item.Name, 30)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(16, 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(26, 7, Money(item.Rate), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 7, Money(item.Amount()), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(2)

	total := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(102, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, value, "", 1, "R", false, 0, "")
	}
	total("Subtotal", Money(b.Subtotal), false)
	if b.IncludeGST {
		total("GST 18%", Money(b.Tax), false)
	}
	total("Total (Rs.)", Money(b.Total), true)
	total("Received", Money(b.PaymentInfo.Jama), false)
	total("Balance", Money(b.PaymentInfo.Baki), false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is the download name of a bill's PDF.
func FileName(b models.BillRecord) string {
	return "bill-" + b.BillNumber + ".pdf"
}
