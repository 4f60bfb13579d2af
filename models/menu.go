package models

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

func init() {
	// amounts are numbers on the wire, not quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

// MenuItem is one entry of a tenant's catalog; the code is the map key.
type MenuItem struct {
	Name     string          `json:"name"`
	Rate     decimal.Decimal `json:"rate"`
	Category string          `json:"category"`
}

// Menu maps item code to item.
type Menu map[string]MenuItem

// Clone returns an independent copy.
func (m Menu) Clone() Menu {
	out := make(Menu, len(m))
	for code, item := range m {
		out[code] = item
	}
	return out
}

// Codes returns the item codes, numeric codes in numeric order first.
func (m Menu) Codes() []string {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	SortCodes(codes)
	return codes
}

// SortCodes orders codes numerically when both parse as integers and
// lexically otherwise.
func SortCodes(codes []string) {
	sort.Slice(codes, func(i, j int) bool {
		a, errA := strconv.Atoi(codes[i])
		b, errB := strconv.Atoi(codes[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return codes[i] < codes[j]
	})
}
