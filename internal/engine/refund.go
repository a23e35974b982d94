package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/noah-isme/register-core/internal/money"
	"github.com/noah-isme/register-core/internal/tax"
)

var (
	// ErrUnknownReturnLine is returned when a return references a line that
	// is not part of the original transaction.
	ErrUnknownReturnLine = errors.New("returned line not in original transaction")
	// ErrReturnExceedsOriginal is returned when the returned quantity is
	// larger than what was purchased.
	ErrReturnExceedsOriginal = errors.New("returned quantity exceeds original")
	// ErrInvalidReturnQty is returned for a non-positive returned quantity.
	ErrInvalidReturnQty = errors.New("returned quantity must be positive")
)

// ReturnLine identifies a returned quantity of an original line.
type ReturnLine struct {
	LineID uuid.UUID
	Qty    money.Decimal
}

// Refund computes a proportional refund of price, discount, container
// value, and tax for the returned quantities, derived from the original
// Totals. Consumption is proportional, not FIFO or LIFO. All resulting
// amounts are negative; returning every line in full yields the exact
// negation of the original.
func Refund(original Totals, returns []ReturnLine) (Totals, error) {
	index := make(map[uuid.UUID]int, len(original.Lines))
	for i, ln := range original.Lines {
		index[ln.LineID] = i
	}

	refund := Totals{}
	agg := make(map[string]money.Decimal)
	for _, ret := range returns {
		i, ok := index[ret.LineID]
		if !ok {
			return Totals{}, fmt.Errorf("%s: %w", ret.LineID, ErrUnknownReturnLine)
		}
		orig := original.Lines[i]
		if ret.Qty <= 0 {
			return Totals{}, fmt.Errorf("%s: %w", ret.LineID, ErrInvalidReturnQty)
		}
		if ret.Qty > orig.Qty {
			return Totals{}, fmt.Errorf("%s: %w", ret.LineID, ErrReturnExceedsOriginal)
		}

		num, den := ret.Qty.Units(), orig.Qty.Units()
		price := orig.Subtotal.MulRatAt(num, den, 2)
		container := orig.ContainerValue.MulRatAt(num, den, 2)
		snapPaid := orig.SnapPaid.MulRatAt(num, den, 2)
		savings := orig.Savings.MulRatAt(num, den, 2)
		share := orig.InvoiceShare.MulRatAt(num, den, 2)
		lineDisc := orig.LineDiscount.MulRatAt(num, den, 2)

		// The per-authority path stays canonical: each authority's refund
		// is the fraction of its original amount and the line's tax refund
		// is their sum.
		var lineTax money.Decimal
		authorities := make([]tax.AuthorityTax, 0, len(orig.TaxByAuthority))
		for _, at := range orig.TaxByAuthority {
			amount := at.Amount.MulRatAt(num, den, 2)
			lineTax += amount
			authorities = append(authorities, tax.AuthorityTax{Authority: at.Authority, Amount: amount.Neg()})
			agg[at.Authority] += amount
		}

		refund.Lines = append(refund.Lines, LineTotals{
			LineID:             orig.LineID,
			SKU:                orig.SKU,
			Description:        orig.Description,
			Qty:                ret.Qty.Neg(),
			EffectiveUnitPrice: orig.EffectiveUnitPrice,
			Gross:              orig.Gross.MulRatAt(num, den, 2).Neg(),
			LineDiscount:       lineDisc.Neg(),
			InvoiceShare:       share.Neg(),
			Subtotal:           price.Neg(),
			ContainerValue:     container.Neg(),
			Tax:                lineTax.Neg(),
			TaxByAuthority:     authorities,
			SnapEligible:       orig.SnapEligible,
			SnapPaid:           snapPaid.Neg(),
			Savings:            savings.Neg(),
		})
		refund.Subtotal -= price
		refund.ContainerTotal -= container
		refund.TaxTotal -= lineTax
		refund.Savings -= savings
		refund.InvoiceDiscount -= share
		refund.SnapPaidTotal -= snapPaid
		if orig.SnapEligible {
			refund.SnapEligibleTotal -= price
		}
	}

	refund.TaxByAuthority = negatedAuthorities(agg)
	refund.GrandTotal = refund.Subtotal.Add(refund.ContainerTotal).Add(refund.TaxTotal)
	refund.NonSnapTotal = refund.GrandTotal.Sub(refund.SnapPaidTotal)
	return refund, nil
}

func negatedAuthorities(agg map[string]money.Decimal) []tax.AuthorityTax {
	if len(agg) == 0 {
		return nil
	}
	out := make([]tax.AuthorityTax, 0, len(agg))
	for authority, amount := range agg {
		out = append(out, tax.AuthorityTax{Authority: authority, Amount: amount.Neg()})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Authority < out[b].Authority })
	return out
}
