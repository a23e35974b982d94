// Package pricing resolves a single line item's effective price and applies
// its line-level discount, enforcing the floor price.
package pricing

import (
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/register-core/internal/money"
)

// ErrInvalidQuantity is returned when a line carries a non-positive
// quantity. The caller must reject the line before it enters the cart; the
// engine never clamps a quantity to a minimum.
var ErrInvalidQuantity = errors.New("quantity must be positive")

// DiscountKind enumerates the supported line discount shapes.
type DiscountKind string

const (
	// DiscountPercent reduces the line subtotal by a percentage.
	DiscountPercent DiscountKind = "percent"
	// DiscountPerUnit subtracts a fixed amount per unit sold.
	DiscountPerUnit DiscountKind = "per_unit"
	// DiscountAmount subtracts a fixed amount from the line subtotal.
	DiscountAmount DiscountKind = "amount"
)

// LineDiscount is a resolved discount instruction handed down by the
// upstream promotion lookup.
type LineDiscount struct {
	Kind       DiscountKind
	PercentBps int64         // percent kind, in basis points
	Amount     money.Decimal // per-unit and fixed-amount kinds
}

// TaxRate binds a taxing authority to its rate in basis points.
type TaxRate struct {
	Authority string
	RateBps   int64
}

// LineItem is one cart row as supplied by the cart collaborator. Prices
// come from the catalog or an embedded-price barcode decode; weights arrive
// from the scale already captured to three decimal places.
type LineItem struct {
	ID               uuid.UUID
	SKU              string
	Description      string
	UnitPrice        money.Decimal // regular unit price
	SalePrice        money.Decimal // active when greater than zero
	Qty              money.Decimal // unit count, or weight for scale items
	SoldByWeight     bool
	ContainerDeposit money.Decimal // redeemable container value per unit
	TaxRates         []TaxRate
	SnapEligible     bool
	FloorPrice       money.Decimal // minimum discounted unit price; zero means none
	FloorOverride    bool          // manager approval to price below the floor
	Discount         *LineDiscount
}

// PricedLine is the pricer's output for one line.
type PricedLine struct {
	Item               LineItem
	EffectiveUnitPrice money.Decimal
	Gross              money.Decimal // effective price x qty, before discounts
	Requested          money.Decimal // discount asked for by the instruction
	Discount           money.Decimal // discount actually realized
	DiscountClamped    bool          // floor price reduced the requested discount
	Subtotal           money.Decimal // post line discount
	ContainerValue     money.Decimal
	Savings            money.Decimal // regular-price gross minus subtotal
}

// Price resolves the line's effective unit price, applies the line
// discount, and clamps to the floor price unless an override is granted.
func Price(item LineItem) (PricedLine, error) {
	if item.Qty <= 0 {
		return PricedLine{}, ErrInvalidQuantity
	}

	unit := item.UnitPrice
	if item.SalePrice > 0 {
		unit = item.SalePrice
	}
	gross := unit.Mul(item.Qty).RoundHalfUp(2)
	regularGross := item.UnitPrice.Mul(item.Qty).RoundHalfUp(2)

	var requested money.Decimal
	if d := item.Discount; d != nil {
		switch d.Kind {
		case DiscountPercent:
			requested = gross.MulRatAt(d.PercentBps, 10000, 2)
		case DiscountPerUnit:
			requested = d.Amount.Mul(item.Qty).RoundHalfUp(2)
		case DiscountAmount:
			requested = d.Amount.RoundHalfUp(2)
		}
		if requested > gross {
			requested = gross
		}
		if requested < 0 {
			requested = 0
		}
	}

	subtotal := gross.Sub(requested)
	realized := requested
	clamped := false
	if item.FloorPrice > 0 && !item.FloorOverride {
		floor := item.FloorPrice.Mul(item.Qty).RoundHalfUp(2)
		if floor > gross {
			floor = gross
		}
		if subtotal < floor {
			subtotal = floor
			realized = gross.Sub(floor)
			clamped = realized != requested
		}
	}

	return PricedLine{
		Item:               item,
		EffectiveUnitPrice: unit,
		Gross:              gross,
		Requested:          requested,
		Discount:           realized,
		DiscountClamped:    clamped,
		Subtotal:           subtotal,
		ContainerValue:     item.ContainerDeposit.Mul(item.Qty).RoundHalfUp(2),
		Savings:            regularGross.Sub(subtotal),
	}, nil
}
