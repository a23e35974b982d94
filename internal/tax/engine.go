// Package tax computes per-line, per-authority sales tax. The taxable base
// is the post-discount price plus the redeemable container value, reduced
// by the fraction of the line already paid by SNAP. Each authority's amount
// is rounded half-up to cents independently and the itemized amounts are
// summed; the per-authority path is canonical, never a combined-rate
// shortcut.
package tax

import (
	"sort"

	"github.com/noah-isme/register-core/internal/money"
	"github.com/noah-isme/register-core/internal/pricing"
)

// Line is one line's tax input.
type Line struct {
	Subtotal       money.Decimal // post-discount line price
	ContainerValue money.Decimal
	SnapPaid       money.Decimal // portion of Subtotal covered by SNAP
	Rates          []pricing.TaxRate
}

// AuthorityTax is one authority's share of a tax amount.
type AuthorityTax struct {
	Authority string
	Amount    money.Decimal
}

// LineTax is the computed tax for one line.
type LineTax struct {
	Total       money.Decimal
	Authorities []AuthorityTax // sorted by authority id
}

// Result aggregates the per-line taxes for one calculation pass.
type Result struct {
	Total       money.Decimal
	Authorities []AuthorityTax // sorted by authority id
	Lines       []LineTax
}

// Compute taxes every line. The transaction total is the plain sum of the
// line totals with no further rounding.
func Compute(lines []Line) Result {
	res := Result{Lines: make([]LineTax, len(lines))}
	agg := make(map[string]money.Decimal)
	for i, ln := range lines {
		base := taxableBase(ln)
		lt := LineTax{}
		for _, rate := range ln.Rates {
			amount := base.MulRatAt(rate.RateBps, 10000, 2)
			lt.Total += amount
			lt.Authorities = append(lt.Authorities, AuthorityTax{Authority: rate.Authority, Amount: amount})
			agg[rate.Authority] += amount
		}
		sortAuthorities(lt.Authorities)
		res.Lines[i] = lt
		res.Total += lt.Total
	}
	res.Authorities = flatten(agg)
	return res
}

// taxableBase scales price plus container value by the fraction of the line
// not paid by SNAP, as a single rational multiplication rounded half-up at
// the third place. Exemption is fixed by the SNAP-paid fraction at
// calculation time, regardless of how any remainder is tendered later.
func taxableBase(ln Line) money.Decimal {
	base := ln.Subtotal.Add(ln.ContainerValue)
	if ln.SnapPaid <= 0 || ln.Subtotal <= 0 {
		return base
	}
	if ln.SnapPaid >= ln.Subtotal {
		return 0
	}
	unpaid := ln.Subtotal.Sub(ln.SnapPaid)
	return base.MulRatAt(unpaid.Units(), ln.Subtotal.Units(), 3)
}

func sortAuthorities(list []AuthorityTax) {
	sort.Slice(list, func(a, b int) bool { return list[a].Authority < list[b].Authority })
}

func flatten(agg map[string]money.Decimal) []AuthorityTax {
	if len(agg) == 0 {
		return nil
	}
	out := make([]AuthorityTax, 0, len(agg))
	for authority, amount := range agg {
		out = append(out, AuthorityTax{Authority: authority, Amount: amount})
	}
	sortAuthorities(out)
	return out
}
