package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InvoiceMetrics tracks invoice issuance.
type InvoiceMetrics struct {
	issued   *prometheus.CounterVec
	failures prometheus.Counter
	render   prometheus.Histogram
}

// NewInvoiceMetrics registers the invoice metrics on the provided registerer.
func NewInvoiceMetrics(reg prometheus.Registerer) *InvoiceMetrics {
	if reg == nil {
		return &InvoiceMetrics{}
	}
	issued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopdesk_invoices_issued_total",
		Help: "Invoice artifacts written, by mode (issue or regenerate).",
	}, []string{"mode"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shopdesk_invoice_failures_total",
		Help: "Invoice generations that failed.",
	})
	render := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopdesk_invoice_render_duration_seconds",
		Help:    "Time spent rendering and storing an invoice artifact.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(issued, failures, render)
	return &InvoiceMetrics{issued: issued, failures: failures, render: render}
}

func (m *InvoiceMetrics) IncIssued(mode string) {
	if m == nil || m.issued == nil {
		return
	}
	m.issued.WithLabelValues(normalizeLabel(mode)).Inc()
}

func (m *InvoiceMetrics) IncFailure() {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.Inc()
}

func (m *InvoiceMetrics) ObserveRender(d time.Duration) {
	if m == nil || m.render == nil {
		return
	}
	m.render.Observe(d.Seconds())
}
