// Package register manages point-of-sale transaction lifecycle: opening a
// transaction, mutating its cart, applying tenders, voiding, and processing
// returns. Every mutation rebuilds the full totals from the transaction
// snapshot; nothing is incrementally patched.
package register

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/register-core/internal/discount"
	"github.com/noah-isme/register-core/internal/engine"
	"github.com/noah-isme/register-core/internal/money"
	"github.com/noah-isme/register-core/internal/obs"
	"github.com/noah-isme/register-core/internal/pricing"
	"github.com/noah-isme/register-core/internal/tender"
)

// Status tracks a transaction through its lifecycle.
type Status string

const (
	StatusOpen              Status = "open"
	StatusCompleted         Status = "completed"
	StatusVoided            Status = "voided"
	StatusPartiallyReturned Status = "partially_returned"
	StatusReturned          Status = "returned"
)

var (
	// ErrNotFound indicates the requested transaction could not be located.
	ErrNotFound = errors.New("transaction not found")
	// ErrNotOpen is returned when a cart mutation targets a transaction
	// that is no longer open.
	ErrNotOpen = errors.New("transaction is not open")
	// ErrNotReturnable is returned when a return targets a transaction
	// that was never completed.
	ErrNotReturnable = errors.New("transaction is not returnable")
	// ErrLineNotFound indicates the referenced line is not in the cart.
	ErrLineNotFound = errors.New("line not in transaction")
	// ErrReturnExceedsRemaining is returned when cumulative returns would
	// exceed the originally purchased quantity.
	ErrReturnExceedsRemaining = errors.New("return exceeds remaining quantity")
)

// Refund records one processed return adjustment.
type Refund struct {
	ID     uuid.UUID
	Lines  []engine.ReturnLine
	Totals engine.Totals
	At     time.Time
}

// Transaction is the register's unit of work. Totals always reflects the
// current lines, discount, and tenders.
type Transaction struct {
	ID        uuid.UUID
	Status    Status
	Lines     []pricing.LineItem
	Discount  *discount.Invoice
	Tenders   []tender.Tender
	Totals    engine.Totals
	Returned  map[uuid.UUID]money.Decimal
	Refunds   []Refund
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Service holds open and settled transactions in memory. A register owns
// its transactions; durable journaling happens downstream.
type Service struct {
	Log zerolog.Logger
	Now func() time.Time

	mu   sync.RWMutex
	txns map[uuid.UUID]*Transaction
}

// NewService constructs a Service.
func NewService(log zerolog.Logger) *Service {
	return &Service{Log: log, txns: make(map[uuid.UUID]*Transaction)}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Open starts a new empty transaction.
func (s *Service) Open(ctx context.Context) (Transaction, error) {
	totals, err := engine.Calculate(engine.Snapshot{})
	if err != nil {
		return Transaction{}, err
	}
	tx := &Transaction{
		ID:        uuid.New(),
		Status:    StatusOpen,
		Totals:    totals,
		Returned:  make(map[uuid.UUID]money.Decimal),
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	s.mu.Lock()
	s.txns[tx.ID] = tx
	s.mu.Unlock()
	s.Log.Info().Str("transaction_id", tx.ID.String()).Msg("transaction opened")
	return cloneTx(tx), nil
}

// Get returns a copy of the transaction.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txns[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return cloneTx(tx), nil
}

// AddLine appends a cart line. A zero line ID is assigned one.
func (s *Service) AddLine(ctx context.Context, id uuid.UUID, item pricing.LineItem) (Transaction, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return s.mutate(id, func(tx *Transaction) error {
		tx.Lines = append(tx.Lines, item)
		return nil
	})
}

// UpdateLine replaces the line matching item.ID.
func (s *Service) UpdateLine(ctx context.Context, id uuid.UUID, item pricing.LineItem) (Transaction, error) {
	return s.mutate(id, func(tx *Transaction) error {
		for i := range tx.Lines {
			if tx.Lines[i].ID == item.ID {
				tx.Lines[i] = item
				return nil
			}
		}
		return fmt.Errorf("%s: %w", item.ID, ErrLineNotFound)
	})
}

// RemoveLine drops a cart line.
func (s *Service) RemoveLine(ctx context.Context, id, lineID uuid.UUID) (Transaction, error) {
	return s.mutate(id, func(tx *Transaction) error {
		for i := range tx.Lines {
			if tx.Lines[i].ID == lineID {
				tx.Lines = append(tx.Lines[:i], tx.Lines[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%s: %w", lineID, ErrLineNotFound)
	})
}

// SetDiscount attaches the invoice-level discount, replacing any existing
// one. A transaction carries at most one.
func (s *Service) SetDiscount(ctx context.Context, id uuid.UUID, inv discount.Invoice) (Transaction, error) {
	return s.mutate(id, func(tx *Transaction) error {
		tx.Discount = &inv
		return nil
	})
}

// ClearDiscount removes the invoice-level discount.
func (s *Service) ClearDiscount(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return s.mutate(id, func(tx *Transaction) error {
		tx.Discount = nil
		return nil
	})
}

// ApplyTender records an approved payment against the transaction. When
// the balance reaches zero the transaction completes.
func (s *Service) ApplyTender(ctx context.Context, id uuid.UUID, method tender.Method, amount money.Decimal) (Transaction, error) {
	tx, err := s.mutate(id, func(tx *Transaction) error {
		tx.Tenders = append(tx.Tenders, tender.Tender{
			Method: method,
			Amount: amount,
			Seq:    len(tx.Tenders) + 1,
		})
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	if obs.TenderTotal != nil {
		obs.TenderTotal.WithLabelValues(string(method)).Inc()
	}
	if tx.Status == StatusCompleted {
		if obs.TransactionCompletedTotal != nil {
			obs.TransactionCompletedTotal.Inc()
		}
		s.Log.Info().
			Str("transaction_id", tx.ID.String()).
			Str("grand_total", tx.Totals.GrandTotal.MoneyString()).
			Str("change_due", tx.Totals.Payments.ChangeDue.MoneyString()).
			Msg("transaction completed")
	}
	return tx, nil
}

// Void cancels an open transaction. Completed transactions are adjusted
// through returns instead.
func (s *Service) Void(ctx context.Context, id uuid.UUID) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txns[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.Status != StatusOpen {
		return Transaction{}, ErrNotOpen
	}
	tx.Status = StatusVoided
	tx.UpdatedAt = s.now()
	if obs.TransactionVoidedTotal != nil {
		obs.TransactionVoidedTotal.Inc()
	}
	s.Log.Info().Str("transaction_id", tx.ID.String()).Msg("transaction voided")
	return cloneTx(tx), nil
}

// Return processes a return against a completed transaction. Quantities
// are tracked cumulatively: once a line is fully returned further returns
// of it are rejected.
func (s *Service) Return(ctx context.Context, id uuid.UUID, lines []engine.ReturnLine) (Transaction, Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txns[id]
	if !ok {
		return Transaction{}, Refund{}, ErrNotFound
	}
	switch tx.Status {
	case StatusCompleted, StatusPartiallyReturned:
	default:
		return Transaction{}, Refund{}, ErrNotReturnable
	}

	orig := make(map[uuid.UUID]money.Decimal, len(tx.Totals.Lines))
	for _, ln := range tx.Totals.Lines {
		orig[ln.LineID] = ln.Qty
	}
	for _, ret := range lines {
		total, ok := orig[ret.LineID]
		if !ok {
			return Transaction{}, Refund{}, fmt.Errorf("%s: %w", ret.LineID, engine.ErrUnknownReturnLine)
		}
		if ret.Qty <= 0 {
			return Transaction{}, Refund{}, fmt.Errorf("%s: %w", ret.LineID, engine.ErrInvalidReturnQty)
		}
		if tx.Returned[ret.LineID]+ret.Qty > total {
			return Transaction{}, Refund{}, fmt.Errorf("%s: %w", ret.LineID, ErrReturnExceedsRemaining)
		}
	}

	totals, err := engine.Refund(tx.Totals, lines)
	if err != nil {
		return Transaction{}, Refund{}, err
	}
	refund := Refund{
		ID:     uuid.New(),
		Lines:  append([]engine.ReturnLine(nil), lines...),
		Totals: totals,
		At:     s.now(),
	}
	for _, ret := range lines {
		tx.Returned[ret.LineID] += ret.Qty
	}
	tx.Refunds = append(tx.Refunds, refund)
	tx.Status = StatusPartiallyReturned
	if s.fullyReturned(tx) {
		tx.Status = StatusReturned
	}
	tx.UpdatedAt = s.now()
	if obs.ReturnTotal != nil {
		obs.ReturnTotal.Inc()
	}
	s.Log.Info().
		Str("transaction_id", tx.ID.String()).
		Str("refund_id", refund.ID.String()).
		Str("refund_total", totals.GrandTotal.MoneyString()).
		Msg("return processed")
	return cloneTx(tx), refund, nil
}

func (s *Service) fullyReturned(tx *Transaction) bool {
	for _, ln := range tx.Totals.Lines {
		if tx.Returned[ln.LineID] < ln.Qty {
			return false
		}
	}
	return len(tx.Totals.Lines) > 0
}

// mutate applies fn to a copy of the open transaction, recomputes totals,
// and commits only when both succeed. A failed mutation leaves the stored
// transaction untouched.
func (s *Service) mutate(id uuid.UUID, fn func(*Transaction) error) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txns[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.Status != StatusOpen {
		return Transaction{}, ErrNotOpen
	}

	next := cloneTx(tx)
	if err := fn(&next); err != nil {
		return Transaction{}, err
	}

	start := time.Now()
	totals, err := engine.Calculate(engine.Snapshot{
		Lines:    next.Lines,
		Discount: next.Discount,
		Tenders:  next.Tenders,
	})
	if obs.CalculationDuration != nil {
		obs.CalculationDuration.Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		if obs.CalculationTotal != nil {
			obs.CalculationTotal.WithLabelValues("error").Inc()
		}
		return Transaction{}, err
	}
	if obs.CalculationTotal != nil {
		obs.CalculationTotal.WithLabelValues("ok").Inc()
	}

	next.Totals = totals
	if totals.Payments.Completed && len(next.Tenders) > 0 {
		next.Status = StatusCompleted
	}
	next.UpdatedAt = s.now()
	stored := next
	s.txns[id] = &stored
	return cloneTx(&stored), nil
}

func cloneTx(tx *Transaction) Transaction {
	out := *tx
	out.Lines = append([]pricing.LineItem(nil), tx.Lines...)
	out.Tenders = append([]tender.Tender(nil), tx.Tenders...)
	out.Refunds = append([]Refund(nil), tx.Refunds...)
	if tx.Discount != nil {
		d := *tx.Discount
		out.Discount = &d
	}
	out.Returned = make(map[uuid.UUID]money.Decimal, len(tx.Returned))
	for k, v := range tx.Returned {
		out.Returned[k] = v
	}
	return out
}
