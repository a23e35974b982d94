// Package health exposes liveness and readiness endpoints. Readiness runs
// a canary calculation through the pricing engine, so a register that can
// no longer total a sale reports unready.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/register-core/internal/engine"
	"github.com/noah-isme/register-core/internal/money"
	"github.com/noah-isme/register-core/internal/pricing"
	"github.com/noah-isme/register-core/internal/tender"
)

// Checker probes a dependency for readiness.
type Checker interface {
	Check(ctx context.Context, timeout time.Duration) error
}

// EngineChecker verifies the calculation pipeline end to end with a fixed
// known-answer sale.
type EngineChecker struct{}

// Check runs the canary sale and compares the grand total.
func (EngineChecker) Check(ctx context.Context, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		totals, err := engine.Calculate(engine.Snapshot{
			Lines: []pricing.LineItem{{
				ID:               uuid.MustParse("c0ffee00-0000-0000-0000-000000000001"),
				UnitPrice:        money.Cents(299),
				Qty:              money.FromInt(1),
				ContainerDeposit: money.Cents(10),
				TaxRates:         []pricing.TaxRate{{Authority: "CA", RateBps: 850}},
			}},
			Tenders: []tender.Tender{{Method: tender.Cash, Amount: money.Cents(500), Seq: 1}},
		})
		if err != nil {
			done <- err
			return
		}
		if totals.GrandTotal != money.Cents(335) {
			done <- fmt.Errorf("canary grand total %s", totals.GrandTotal)
			return
		}
		done <- nil
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.New("canary calculation timed out")
	}
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker Checker
	Timeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on the canary probe.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	status := "ok"
	if err := h.Checker.Check(r.Context(), h.timeout()); err != nil {
		status = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	if status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"engine": status})
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.Timeout
}
