package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/noah-isme/register-core/internal/discount"
	"github.com/noah-isme/register-core/internal/money"
	"github.com/noah-isme/register-core/internal/pricing"
	"github.com/noah-isme/register-core/internal/tender"
)

func caRate(bps int64) []pricing.TaxRate {
	return []pricing.TaxRate{{Authority: "CA", RateBps: bps}}
}

// Single taxable line with a container deposit, paid in cash.
func TestCalculateBasicSale(t *testing.T) {
	totals, err := Calculate(Snapshot{
		Lines: []pricing.LineItem{{
			ID:               uuid.New(),
			UnitPrice:        money.Cents(299),
			Qty:              money.FromInt(1),
			ContainerDeposit: money.Cents(10),
			TaxRates:         caRate(850),
		}},
		Tenders: []tender.Tender{{Method: tender.Cash, Amount: money.Cents(500), Seq: 1}},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if totals.TaxTotal != money.Cents(26) {
		t.Fatalf("tax = %s, want 0.26", totals.TaxTotal)
	}
	if totals.GrandTotal != money.Cents(335) {
		t.Fatalf("grand total = %s, want 3.35", totals.GrandTotal)
	}
	if totals.Payments.ChangeDue != money.Cents(165) {
		t.Fatalf("change = %s, want 1.65", totals.Payments.ChangeDue)
	}
	if !totals.Payments.Completed {
		t.Fatalf("expected completed payment")
	}
}

// Single line with a 10% line discount.
func TestCalculateLineDiscount(t *testing.T) {
	totals, err := Calculate(Snapshot{
		Lines: []pricing.LineItem{{
			ID:        uuid.New(),
			UnitPrice: money.Cents(799),
			Qty:       money.FromInt(1),
			TaxRates:  caRate(850),
			Discount:  &pricing.LineDiscount{Kind: pricing.DiscountPercent, PercentBps: 1000},
		}},
		Tenders: []tender.Tender{{Method: tender.Cash, Amount: money.Cents(1000), Seq: 1}},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if totals.Lines[0].LineDiscount != money.Cents(80) {
		t.Fatalf("discount = %s, want 0.80", totals.Lines[0].LineDiscount)
	}
	if totals.Subtotal != money.Cents(719) {
		t.Fatalf("subtotal = %s, want 7.19", totals.Subtotal)
	}
	if totals.TaxTotal != money.Cents(61) {
		t.Fatalf("tax = %s, want 0.61", totals.TaxTotal)
	}
	if totals.GrandTotal != money.Cents(780) {
		t.Fatalf("grand total = %s, want 7.80", totals.GrandTotal)
	}
	if totals.Payments.ChangeDue != money.Cents(220) {
		t.Fatalf("change = %s, want 2.20", totals.Payments.ChangeDue)
	}
	if totals.Savings != money.Cents(80) {
		t.Fatalf("savings = %s, want 0.80", totals.Savings)
	}
}

// Floor price clamps a requested discount without an override.
func TestCalculateFloorPrice(t *testing.T) {
	totals, err := Calculate(Snapshot{
		Lines: []pricing.LineItem{{
			ID:         uuid.New(),
			UnitPrice:  money.Cents(799),
			Qty:        money.FromInt(1),
			FloorPrice: money.Cents(500),
			Discount:   &pricing.LineDiscount{Kind: pricing.DiscountAmount, Amount: money.Cents(400)},
		}},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if totals.Lines[0].LineDiscount != money.Cents(299) {
		t.Fatalf("realized discount = %s, want 2.99", totals.Lines[0].LineDiscount)
	}
	if totals.Subtotal != money.Cents(500) {
		t.Fatalf("subtotal = %s, want 5.00", totals.Subtotal)
	}
	if !totals.Lines[0].DiscountClamped {
		t.Fatalf("clamp must be disclosed")
	}
}

// Invoice discount split across two lines, one taxable.
func TestCalculateInvoiceDiscount(t *testing.T) {
	totals, err := Calculate(Snapshot{
		Lines: []pricing.LineItem{
			{ID: uuid.New(), UnitPrice: money.Cents(499), Qty: money.FromInt(1), SnapEligible: true},
			{ID: uuid.New(), UnitPrice: money.Cents(449), Qty: money.FromInt(1), TaxRates: caRate(850)},
		},
		Discount: &discount.Invoice{Kind: discount.KindPercent, PercentBps: 500},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if totals.InvoiceDiscount != money.Cents(47) {
		t.Fatalf("invoice discount = %s, want 0.47", totals.InvoiceDiscount)
	}
	if totals.Lines[0].InvoiceShare != money.Cents(25) || totals.Lines[1].InvoiceShare != money.Cents(22) {
		t.Fatalf("shares = %s, %s; want 0.25, 0.22",
			totals.Lines[0].InvoiceShare, totals.Lines[1].InvoiceShare)
	}
	if totals.TaxTotal != money.Cents(36) {
		t.Fatalf("tax = %s, want 0.36", totals.TaxTotal)
	}
	if totals.GrandTotal != money.Cents(937) {
		t.Fatalf("grand total = %s, want 9.37", totals.GrandTotal)
	}
}

// Partial SNAP payment shrinks the taxable fraction; remainder in cash.
func TestCalculateSplitSnapTender(t *testing.T) {
	totals, err := Calculate(Snapshot{
		Lines: []pricing.LineItem{{
			ID:           uuid.New(),
			UnitPrice:    money.Cents(1000),
			Qty:          money.FromInt(1),
			SnapEligible: true,
			TaxRates:     caRate(200),
		}},
		Tenders: []tender.Tender{
			{Method: tender.Snap, Amount: money.Cents(600), Seq: 1},
			{Method: tender.Cash, Amount: money.Cents(500), Seq: 2},
		},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if totals.TaxTotal != money.Cents(8) {
		t.Fatalf("tax = %s, want 0.08", totals.TaxTotal)
	}
	if totals.GrandTotal != money.Cents(1008) {
		t.Fatalf("grand total = %s, want 10.08", totals.GrandTotal)
	}
	if totals.Payments.Steps[0].RemainingAfter != money.Cents(408) {
		t.Fatalf("balance after snap = %s, want 4.08", totals.Payments.Steps[0].RemainingAfter)
	}
	if totals.Payments.ChangeDue != money.Cents(92) {
		t.Fatalf("change = %s, want 0.92", totals.Payments.ChangeDue)
	}
	if totals.SnapPaidTotal != money.Cents(600) {
		t.Fatalf("snap paid = %s, want 6.00", totals.SnapPaidTotal)
	}
	if totals.NonSnapTotal != money.Cents(408) {
		t.Fatalf("non-snap = %s, want 4.08", totals.NonSnapTotal)
	}
}

func TestCalculateGrandTotalIdentity(t *testing.T) {
	snapshots := []Snapshot{
		{},
		{Lines: []pricing.LineItem{
			{ID: uuid.New(), UnitPrice: money.Cents(1234), Qty: money.FromInt(3), TaxRates: caRate(725), ContainerDeposit: money.Cents(5)},
			{ID: uuid.New(), UnitPrice: money.Cents(89), Qty: money.Units(2450), SoldByWeight: true, SnapEligible: true},
			{ID: uuid.New(), UnitPrice: money.Cents(599), SalePrice: money.Cents(499), Qty: money.FromInt(2),
				TaxRates: []pricing.TaxRate{{Authority: "STATE", RateBps: 625}, {Authority: "CITY", RateBps: 100}}},
		},
			Discount: &discount.Invoice{Kind: discount.KindPercent, PercentBps: 750}},
	}
	for i, snapshot := range snapshots {
		totals, err := Calculate(snapshot)
		if err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
		if totals.GrandTotal != totals.Subtotal.Add(totals.ContainerTotal).Add(totals.TaxTotal) {
			t.Fatalf("snapshot %d: grand total identity broken", i)
		}
		var lineTax money.Decimal
		for _, ln := range totals.Lines {
			lineTax += ln.Tax
		}
		if lineTax != totals.TaxTotal {
			t.Fatalf("snapshot %d: line taxes sum to %s, total is %s", i, lineTax, totals.TaxTotal)
		}
	}
}

func TestCalculateDeterministic(t *testing.T) {
	snapshot := Snapshot{
		Lines: []pricing.LineItem{
			{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"),
				UnitPrice: money.Cents(1234), Qty: money.FromInt(3), TaxRates: caRate(725), SnapEligible: true},
			{ID: uuid.MustParse("22222222-2222-2222-2222-222222222222"),
				UnitPrice: money.Cents(567), Qty: money.FromInt(1), TaxRates: caRate(725)},
		},
		Discount: &discount.Invoice{Kind: discount.KindPercent, PercentBps: 300},
		Tenders:  []tender.Tender{{Method: tender.Snap, Amount: money.Cents(1000), Seq: 1}},
	}
	first, err := Calculate(snapshot)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := Calculate(snapshot)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical snapshots produced different totals")
	}
}

func TestCalculateRejectsInvalidQuantity(t *testing.T) {
	_, err := Calculate(Snapshot{Lines: []pricing.LineItem{{UnitPrice: money.Cents(100)}}})
	if !errors.Is(err, pricing.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestCalculateRejectsOverTender(t *testing.T) {
	_, err := Calculate(Snapshot{
		Lines:   []pricing.LineItem{{ID: uuid.New(), UnitPrice: money.Cents(100), Qty: money.FromInt(1)}},
		Tenders: []tender.Tender{{Method: tender.Credit, Amount: money.Cents(200), Seq: 1}},
	})
	if !errors.Is(err, tender.ErrOverTender) {
		t.Fatalf("expected ErrOverTender, got %v", err)
	}
}

func TestCalculateSnapTenderCappedByEligible(t *testing.T) {
	_, err := Calculate(Snapshot{
		Lines: []pricing.LineItem{
			{ID: uuid.New(), UnitPrice: money.Cents(500), Qty: money.FromInt(1), SnapEligible: true},
			{ID: uuid.New(), UnitPrice: money.Cents(1500), Qty: money.FromInt(1)},
		},
		Tenders: []tender.Tender{{Method: tender.Snap, Amount: money.Cents(600), Seq: 1}},
	})
	if !errors.Is(err, tender.ErrSnapExceedsEligible) {
		t.Fatalf("expected ErrSnapExceedsEligible, got %v", err)
	}
}
