package pricing

import (
	"errors"
	"testing"

	"github.com/noah-isme/register-core/internal/money"
)

func TestPricePlainLine(t *testing.T) {
	line, err := Price(LineItem{
		UnitPrice:        money.Cents(299),
		Qty:              money.FromInt(1),
		ContainerDeposit: money.Cents(10),
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if line.Subtotal != money.Cents(299) {
		t.Fatalf("subtotal = %s, want 2.99", line.Subtotal)
	}
	if line.ContainerValue != money.Cents(10) {
		t.Fatalf("container value = %s, want 0.10", line.ContainerValue)
	}
	if line.Savings != 0 {
		t.Fatalf("savings = %s, want 0", line.Savings)
	}
}

func TestPricePercentDiscount(t *testing.T) {
	line, err := Price(LineItem{
		UnitPrice: money.Cents(799),
		Qty:       money.FromInt(1),
		Discount:  &LineDiscount{Kind: DiscountPercent, PercentBps: 1000},
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if line.Discount != money.Cents(80) {
		t.Fatalf("discount = %s, want 0.80", line.Discount)
	}
	if line.Subtotal != money.Cents(719) {
		t.Fatalf("subtotal = %s, want 7.19", line.Subtotal)
	}
}

func TestPriceFloorClamp(t *testing.T) {
	line, err := Price(LineItem{
		UnitPrice:  money.Cents(799),
		Qty:        money.FromInt(1),
		FloorPrice: money.Cents(500),
		Discount:   &LineDiscount{Kind: DiscountAmount, Amount: money.Cents(400)},
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if line.Subtotal != money.Cents(500) {
		t.Fatalf("subtotal = %s, want 5.00", line.Subtotal)
	}
	if line.Discount != money.Cents(299) {
		t.Fatalf("realized discount = %s, want 2.99", line.Discount)
	}
	if line.Requested != money.Cents(400) {
		t.Fatalf("requested discount = %s, want 4.00", line.Requested)
	}
	if !line.DiscountClamped {
		t.Fatalf("expected clamp to be reported")
	}
}

func TestPriceFloorOverride(t *testing.T) {
	line, err := Price(LineItem{
		UnitPrice:     money.Cents(799),
		Qty:           money.FromInt(1),
		FloorPrice:    money.Cents(500),
		FloorOverride: true,
		Discount:      &LineDiscount{Kind: DiscountAmount, Amount: money.Cents(400)},
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if line.Subtotal != money.Cents(399) {
		t.Fatalf("subtotal = %s, want 3.99 under override", line.Subtotal)
	}
	if line.DiscountClamped {
		t.Fatalf("override must not clamp")
	}
}

func TestPriceSalePrice(t *testing.T) {
	line, err := Price(LineItem{
		UnitPrice: money.Cents(499),
		SalePrice: money.Cents(399),
		Qty:       money.FromInt(2),
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if line.EffectiveUnitPrice != money.Cents(399) {
		t.Fatalf("effective price = %s, want sale price", line.EffectiveUnitPrice)
	}
	if line.Subtotal != money.Cents(798) {
		t.Fatalf("subtotal = %s, want 7.98", line.Subtotal)
	}
	if line.Savings != money.Cents(200) {
		t.Fatalf("savings = %s, want 2.00", line.Savings)
	}
}

func TestPriceWeightedItem(t *testing.T) {
	// 2.99/lb at 1.505 lb = 4.49995 -> 4.50 at money precision.
	line, err := Price(LineItem{
		UnitPrice:    money.Cents(299),
		Qty:          money.Units(1505),
		SoldByWeight: true,
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if line.Subtotal != money.Cents(450) {
		t.Fatalf("subtotal = %s, want 4.50", line.Subtotal)
	}
}

func TestPricePerUnitDiscount(t *testing.T) {
	line, err := Price(LineItem{
		UnitPrice: money.Cents(250),
		Qty:       money.FromInt(3),
		Discount:  &LineDiscount{Kind: DiscountPerUnit, Amount: money.Cents(25)},
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if line.Discount != money.Cents(75) {
		t.Fatalf("discount = %s, want 0.75", line.Discount)
	}
	if line.Subtotal != money.Cents(675) {
		t.Fatalf("subtotal = %s, want 6.75", line.Subtotal)
	}
}

func TestPriceDiscountNeverNegative(t *testing.T) {
	line, err := Price(LineItem{
		UnitPrice: money.Cents(100),
		Qty:       money.FromInt(1),
		Discount:  &LineDiscount{Kind: DiscountAmount, Amount: money.Cents(500)},
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if line.Subtotal != 0 {
		t.Fatalf("subtotal = %s, want 0 after capping", line.Subtotal)
	}
	if line.Discount != money.Cents(100) {
		t.Fatalf("discount = %s, want capped at gross", line.Discount)
	}
}

func TestPriceInvalidQuantity(t *testing.T) {
	if _, err := Price(LineItem{UnitPrice: money.Cents(100)}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := Price(LineItem{UnitPrice: money.Cents(100), Qty: money.Units(-1)}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity for negative qty, got %v", err)
	}
}
