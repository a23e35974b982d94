// Package engine turns an immutable transaction snapshot into a Totals
// value. Calculate is a pure function: it performs no I/O, holds no state,
// and recomputing an identical snapshot always produces an identical
// result. The cart-management layer re-invokes it after every mutation.
package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/register-core/internal/discount"
	"github.com/noah-isme/register-core/internal/money"
	"github.com/noah-isme/register-core/internal/pricing"
	"github.com/noah-isme/register-core/internal/snap"
	"github.com/noah-isme/register-core/internal/tax"
	"github.com/noah-isme/register-core/internal/tender"
)

// Snapshot is one consistent view of a transaction: its lines, the single
// invoice-level discount if any, and the tenders applied so far. The engine
// never mutates a snapshot.
type Snapshot struct {
	Lines    []pricing.LineItem
	Discount *discount.Invoice
	Tenders  []tender.Tender
}

// LineTotals is the computed detail for one line, consumed by receipts,
// the customer display, and the return flow.
type LineTotals struct {
	LineID             uuid.UUID
	SKU                string
	Description        string
	Qty                money.Decimal
	EffectiveUnitPrice money.Decimal
	Gross              money.Decimal
	LineDiscount       money.Decimal
	RequestedDiscount  money.Decimal
	DiscountClamped    bool
	InvoiceShare       money.Decimal
	Subtotal           money.Decimal // post line discount and invoice share
	ContainerValue     money.Decimal
	Tax                money.Decimal
	TaxByAuthority     []tax.AuthorityTax
	SnapEligible       bool
	SnapPaid           money.Decimal
	Savings            money.Decimal
}

// Totals is one immutable calculation pass. For every valid Totals,
// GrandTotal = Subtotal + ContainerTotal + TaxTotal holds exactly.
type Totals struct {
	Lines             []LineTotals
	Subtotal          money.Decimal
	ContainerTotal    money.Decimal
	TaxTotal          money.Decimal
	TaxByAuthority    []tax.AuthorityTax
	GrandTotal        money.Decimal
	Savings           money.Decimal
	InvoiceDiscount   money.Decimal
	SnapEligibleTotal money.Decimal
	SnapPaidTotal     money.Decimal
	NonSnapTotal      money.Decimal
	Payments          tender.Reconciliation
}

// Calculate prices every line, allocates the invoice discount and any SNAP
// tender, computes tax, and reconciles the tenders. It either returns a
// complete Totals or an error; a partially-computed Totals is never
// produced.
func Calculate(snapshot Snapshot) (Totals, error) {
	priced := make([]pricing.PricedLine, len(snapshot.Lines))
	subtotals := make([]money.Decimal, len(snapshot.Lines))
	for i, item := range snapshot.Lines {
		line, err := pricing.Price(item)
		if err != nil {
			return Totals{}, fmt.Errorf("line %d: %w", i, err)
		}
		priced[i] = line
		subtotals[i] = line.Subtotal
	}

	alloc := discount.Allocate(subtotals, snapshot.Discount)
	net := make([]money.Decimal, len(priced))
	eligible := make([]bool, len(priced))
	for i := range priced {
		net[i] = subtotals[i].Sub(alloc.Shares[i])
		eligible[i] = priced[i].Item.SnapEligible
	}

	var snapTendered money.Decimal
	for _, t := range snapshot.Tenders {
		if t.Method == tender.Snap {
			snapTendered += t.Amount
		}
	}
	snapAlloc := snap.Allocate(net, eligible, snapTendered)

	taxLines := make([]tax.Line, len(priced))
	for i := range priced {
		taxLines[i] = tax.Line{
			Subtotal:       net[i],
			ContainerValue: priced[i].ContainerValue,
			SnapPaid:       snapAlloc.Amounts[i],
			Rates:          priced[i].Item.TaxRates,
		}
	}
	taxRes := tax.Compute(taxLines)

	totals := Totals{
		Lines:             make([]LineTotals, len(priced)),
		TaxByAuthority:    taxRes.Authorities,
		TaxTotal:          taxRes.Total,
		InvoiceDiscount:   alloc.Total,
		SnapEligibleTotal: snapAlloc.EligibleTotal,
		SnapPaidTotal:     snapAlloc.Applied,
	}
	for i, line := range priced {
		totals.Lines[i] = LineTotals{
			LineID:             line.Item.ID,
			SKU:                line.Item.SKU,
			Description:        line.Item.Description,
			Qty:                line.Item.Qty,
			EffectiveUnitPrice: line.EffectiveUnitPrice,
			Gross:              line.Gross,
			LineDiscount:       line.Discount,
			RequestedDiscount:  line.Requested,
			DiscountClamped:    line.DiscountClamped,
			InvoiceShare:       alloc.Shares[i],
			Subtotal:           net[i],
			ContainerValue:     line.ContainerValue,
			Tax:                taxRes.Lines[i].Total,
			TaxByAuthority:     taxRes.Lines[i].Authorities,
			SnapEligible:       line.Item.SnapEligible,
			SnapPaid:           snapAlloc.Amounts[i],
			Savings:            line.Savings.Add(alloc.Shares[i]),
		}
		totals.Subtotal += net[i]
		totals.ContainerTotal += line.ContainerValue
		totals.Savings += totals.Lines[i].Savings
	}
	totals.GrandTotal = totals.Subtotal.Add(totals.ContainerTotal).Add(totals.TaxTotal)
	totals.NonSnapTotal = totals.GrandTotal.Sub(totals.SnapPaidTotal)

	payments, err := tender.Reconcile(totals.GrandTotal, snapAlloc.EligibleTotal, snapshot.Tenders)
	if err != nil {
		return Totals{}, err
	}
	totals.Payments = payments
	return totals, nil
}
