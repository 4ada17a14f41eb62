// Package pricing computes proposal totals from line items using fixed-point money.
package pricing

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is one priced row of the pricing table.
type Item struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// VolumeRule grants a flat percentage off the subtotal once a designated
// item reaches a minimum quantity.
type VolumeRule struct {
	Item        string
	MinQuantity int
	Percent     int
}

// DefaultVolumeRule is 5% off for 3 or more robotic arms.
var DefaultVolumeRule = VolumeRule{
	Item:        "Robotic Arm",
	MinQuantity: 3,
	Percent:     5,
}

// Breakdown holds every derived pricing value shown under the table.
type Breakdown struct {
	Subtotal              decimal.Decimal `json:"subtotal"`
	VolumeDiscountPercent int             `json:"volumeDiscountPercent"`
	VolumeDiscount        decimal.Decimal `json:"volumeDiscount"`
	ManualDiscountPercent int             `json:"manualDiscountPercent"`
	ManualDiscount        decimal.Decimal `json:"manualDiscount"`
	Total                 decimal.Decimal `json:"total"`
}

// Cents is the number of decimal places discount amounts are rounded to.
const Cents = 2

var hundred = decimal.NewFromInt(100)

// Applies reports whether the rule is triggered by the given items.
func (r VolumeRule) Applies(items []Item) bool {
	if r.Item == "" || r.Percent <= 0 {
		return false
	}
	for _, item := range items {
		if item.Name == r.Item && item.Quantity >= r.MinQuantity {
			return true
		}
	}
	return false
}

// Subtotal is the exact sum of price times quantity.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(LineTotal(item))
	}
	return sum
}

// LineTotal is price times quantity for a single row.
func LineTotal(item Item) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// Compute derives the subtotal, both discounts and the total.
//
// Discount amounts are rounded half away from zero to cents before they are
// subtracted, so Total == Subtotal - VolumeDiscount - ManualDiscount holds
// exactly on the reported values.
func Compute(items []Item, rule VolumeRule, discountPercent int) Breakdown {
	subtotal := Subtotal(items)

	volumePercent := 0
	if rule.Applies(items) {
		volumePercent = rule.Percent
	}
	volume := percentOf(subtotal, volumePercent)
	manual := percentOf(subtotal, discountPercent)

	return Breakdown{
		Subtotal:              subtotal,
		VolumeDiscountPercent: volumePercent,
		VolumeDiscount:        volume,
		ManualDiscountPercent: discountPercent,
		ManualDiscount:        manual,
		Total:                 subtotal.Sub(volume).Sub(manual),
	}
}

func percentOf(amount decimal.Decimal, percent int) decimal.Decimal {
	if percent == 0 {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(int64(percent))).Div(hundred).Round(Cents)
}

// AdjustQuantity applies delta to quantity and clamps the result to
// 0..math.MaxInt.
func AdjustQuantity(quantity, delta int) int {
	if delta > 0 && quantity > math.MaxInt-delta {
		return math.MaxInt
	}
	if delta < 0 && quantity < math.MinInt-delta {
		return 0
	}
	next := quantity + delta
	if next < 0 {
		return 0
	}
	return next
}

// FormatUSD renders an amount as dollars with thousands separators, e.g. $15,000.00.
func FormatUSD(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(Cents)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(sign)
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
