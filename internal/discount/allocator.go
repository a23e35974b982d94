// Package discount spreads a single invoice-level discount across line
// items in proportion to their post-line-discount value.
package discount

import (
	"github.com/noah-isme/register-core/internal/money"
)

// Kind enumerates invoice discount shapes.
type Kind string

const (
	// KindPercent discounts a percentage of the post-line-discount sum.
	KindPercent Kind = "percent"
	// KindAmount discounts a fixed amount.
	KindAmount Kind = "amount"
)

// Invoice is the single invoice-level discount, resolved upstream and
// applied after line discounts, before tax.
type Invoice struct {
	Kind       Kind
	PercentBps int64
	Amount     money.Decimal
}

// Allocation is the invoice discount spread across lines.
type Allocation struct {
	Total  money.Decimal
	Shares []money.Decimal // aligned with the input subtotals
}

// Allocate computes the invoice discount amount and apportions it across
// the post-line-discount subtotals with the largest-remainder correction,
// so the shares sum exactly to the discount amount. A zero subtotal base
// produces a zero allocation rather than an error.
func Allocate(subtotals []money.Decimal, inv *Invoice) Allocation {
	alloc := Allocation{Shares: make([]money.Decimal, len(subtotals))}
	if inv == nil {
		return alloc
	}

	var base money.Decimal
	for _, s := range subtotals {
		if s > 0 {
			base += s
		}
	}
	if base <= 0 {
		return alloc
	}

	var total money.Decimal
	switch inv.Kind {
	case KindPercent:
		total = base.MulRatAt(inv.PercentBps, 10000, 2)
	case KindAmount:
		total = inv.Amount.RoundHalfUp(2)
	}
	if total > base {
		total = base
	}
	if total <= 0 {
		return alloc
	}

	alloc.Total = total
	alloc.Shares = money.Apportion(total, subtotals)
	return alloc
}
