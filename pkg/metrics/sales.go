package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// SalesMetrics tracks the sale transaction processor.
type SalesMetrics struct {
	committed prometheus.Counter
	rejected  *prometheus.CounterVec
	amount    prometheus.Histogram
	batch     *prometheus.CounterVec
}

// NewSalesMetrics registers the sales metrics on the provided registerer.
func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	if reg == nil {
		return &SalesMetrics{}
	}
	committed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shopdesk_sales_committed_total",
		Help: "Sales committed with their items and stock movements.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopdesk_sales_rejected_total",
		Help: "Sale submissions rejected before commit.",
	}, []string{"kind"})
	amount := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopdesk_sale_amount",
		Help:    "Total amount of committed sales.",
		Buckets: prometheus.ExponentialBuckets(500, 2, 14),
	})
	batch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopdesk_sale_batch_operations_total",
		Help: "Offline batch operations by outcome.",
	}, []string{"status"})
	reg.MustRegister(committed, rejected, amount, batch)
	return &SalesMetrics{committed: committed, rejected: rejected, amount: amount, batch: batch}
}

// ObserveCommitted counts a committed sale and records its total.
func (m *SalesMetrics) ObserveCommitted(total decimal.Decimal) {
	if m == nil || m.committed == nil {
		return
	}
	m.committed.Inc()
	m.amount.Observe(total.InexactFloat64())
}

// IncRejected counts a rejected submission by reason.
func (m *SalesMetrics) IncRejected(kind string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncBatch counts one batch operation outcome.
func (m *SalesMetrics) IncBatch(status string) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.WithLabelValues(normalizeLabel(status)).Inc()
}
