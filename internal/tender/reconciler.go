// Package tender applies payments against a transaction's grand total in
// application order, tracking the balance shown to the cashier after every
// tender and the change due on cash overpayment.
package tender

import (
	"errors"
	"fmt"

	"github.com/noah-isme/register-core/internal/money"
)

// Method enumerates accepted payment methods.
type Method string

const (
	Cash      Method = "cash"
	Credit    Method = "credit"
	Debit     Method = "debit"
	Snap      Method = "snap"
	EBTCash   Method = "ebt_cash"
	Check     Method = "check"
	OnAccount Method = "on_account"
)

var (
	// ErrOverTender is returned when a non-cash tender exceeds the
	// remaining balance. It is never auto-corrected.
	ErrOverTender = errors.New("tender exceeds remaining balance")
	// ErrSnapExceedsEligible is returned when SNAP tenders exceed the
	// unpaid SNAP-eligible total.
	ErrSnapExceedsEligible = errors.New("snap tender exceeds snap-eligible balance")
	// ErrInvalidAmount is returned for a non-positive tender amount.
	ErrInvalidAmount = errors.New("tender amount must be positive")
	// ErrUnknownMethod is returned for an unrecognized payment method.
	ErrUnknownMethod = errors.New("unknown tender method")
)

// Tender is one payment application supplied by the payment terminal
// collaborator after approval.
type Tender struct {
	Method Method
	Amount money.Decimal
	Seq    int
}

// Step records the effect of one tender in application order.
type Step struct {
	Tender         Tender
	Applied        money.Decimal
	RemainingAfter money.Decimal
}

// Reconciliation partitions the grand total across the applied tenders.
// sum(Applied) always equals grandTotal - Remaining, and change is only
// ever produced by cash.
type Reconciliation struct {
	Steps     []Step
	ChangeDue money.Decimal
	Remaining money.Decimal
	Completed bool
}

// Valid reports whether m names an accepted payment method.
func (m Method) Valid() bool {
	switch m {
	case Cash, Credit, Debit, Snap, EBTCash, Check, OnAccount:
		return true
	}
	return false
}

// Reconcile applies tenders in order against the grand total. Cash may
// overpay, with the excess becoming change due; every other method must not
// exceed the remaining balance, and SNAP tenders are additionally capped by
// the SNAP-eligible total still unpaid. EBT cash benefits spend like debit.
func Reconcile(grandTotal, snapEligibleTotal money.Decimal, tenders []Tender) (Reconciliation, error) {
	rec := Reconciliation{
		Remaining: grandTotal,
		Steps:     make([]Step, 0, len(tenders)),
	}
	snapRemaining := snapEligibleTotal
	for _, t := range tenders {
		if !t.Method.Valid() {
			return Reconciliation{}, fmt.Errorf("%q: %w", t.Method, ErrUnknownMethod)
		}
		if t.Amount <= 0 {
			return Reconciliation{}, fmt.Errorf("tender %d: %w", t.Seq, ErrInvalidAmount)
		}
		applied := t.Amount
		switch t.Method {
		case Cash:
			if applied > rec.Remaining {
				rec.ChangeDue += applied.Sub(rec.Remaining)
				applied = rec.Remaining
			}
		case Snap:
			if t.Amount > snapRemaining {
				return Reconciliation{}, fmt.Errorf("tender %d: %w", t.Seq, ErrSnapExceedsEligible)
			}
			if t.Amount > rec.Remaining {
				return Reconciliation{}, fmt.Errorf("tender %d: %w", t.Seq, ErrOverTender)
			}
			snapRemaining -= t.Amount
		default:
			if t.Amount > rec.Remaining {
				return Reconciliation{}, fmt.Errorf("tender %d: %w", t.Seq, ErrOverTender)
			}
		}
		rec.Remaining -= applied
		rec.Steps = append(rec.Steps, Step{Tender: t, Applied: applied, RemainingAfter: rec.Remaining})
	}
	rec.Completed = rec.Remaining == 0
	return rec, nil
}
