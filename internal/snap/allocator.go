// Package snap apportions a SNAP/EBT tender across SNAP-eligible lines.
// The per-line amount it produces drives the tax engine's exemption: the
// fraction of a line paid by SNAP is exactly snapPaid/subtotal, carried as
// that rational pair rather than a rounded ratio.
package snap

import (
	"github.com/noah-isme/register-core/internal/money"
)

// Allocation reports how a SNAP tender is spread across eligible lines.
type Allocation struct {
	Amounts       []money.Decimal // per line; always zero for ineligible lines
	EligibleTotal money.Decimal
	Applied       money.Decimal // total actually spread: min(tender, eligible)
}

// Allocate apportions tender across the SNAP-eligible line subtotals. When
// the tender covers the whole eligible total every eligible line is fully
// paid; otherwise the largest-remainder split keeps the allocated amounts
// summing exactly to the tender.
func Allocate(subtotals []money.Decimal, eligible []bool, tender money.Decimal) Allocation {
	alloc := Allocation{Amounts: make([]money.Decimal, len(subtotals))}

	var total money.Decimal
	for i, s := range subtotals {
		if i < len(eligible) && eligible[i] && s > 0 {
			total += s
		}
	}
	alloc.EligibleTotal = total
	if tender <= 0 || total <= 0 {
		return alloc
	}

	if tender >= total {
		for i, s := range subtotals {
			if i < len(eligible) && eligible[i] && s > 0 {
				alloc.Amounts[i] = s
			}
		}
		alloc.Applied = total
		return alloc
	}

	weights := make([]money.Decimal, len(subtotals))
	for i, s := range subtotals {
		if i < len(eligible) && eligible[i] && s > 0 {
			weights[i] = s
		}
	}
	applied := tender.RoundHalfUp(2)
	alloc.Amounts = money.Apportion(applied, weights)
	alloc.Applied = applied
	return alloc
}
