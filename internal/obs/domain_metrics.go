package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CalculationTotal counts totals recomputations by outcome.
	CalculationTotal *prometheus.CounterVec
	// CalculationDuration records totals recomputation latency in milliseconds.
	CalculationDuration prometheus.Histogram
	// TenderTotal counts applied tenders by payment method.
	TenderTotal *prometheus.CounterVec
	// TransactionCompletedTotal counts transactions fully paid off.
	TransactionCompletedTotal prometheus.Counter
	// TransactionVoidedTotal counts voided transactions.
	TransactionVoidedTotal prometheus.Counter
	// ReturnTotal counts processed return adjustments.
	ReturnTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CalculationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculation_total",
			Help:      "Count of transaction totals calculations by outcome.",
		}, []string{"result"})
		CalculationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculation_duration_ms",
			Help:      "Latency of a full totals calculation in milliseconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		})
		TenderTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tender_total",
			Help:      "Count of applied tenders by payment method.",
		}, []string{"method"})
		TransactionCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_completed_total",
			Help:      "Number of transactions paid in full.",
		})
		TransactionVoidedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_voided_total",
			Help:      "Number of voided transactions.",
		})
		ReturnTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "return_total",
			Help:      "Number of processed return adjustments.",
		})

		mustRegisterCollector(reg, CalculationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CalculationTotal = v
			}
		})
		mustRegisterCollector(reg, CalculationDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CalculationDuration = v
			}
		})
		mustRegisterCollector(reg, TenderTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TenderTotal = v
			}
		})
		mustRegisterCollector(reg, TransactionCompletedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				TransactionCompletedTotal = v
			}
		})
		mustRegisterCollector(reg, TransactionVoidedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				TransactionVoidedTotal = v
			}
		})
		mustRegisterCollector(reg, ReturnTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ReturnTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
