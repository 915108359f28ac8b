// Package metrics exposes Prometheus instrumentation for the trust core.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Collector owns a private registry and the trust metrics.
type Collector struct {
	registry          *prometheus.Registry
	postings          *prometheus.CounterVec
	postingDuration   prometheus.Histogram
	insufficientFunds *prometheus.CounterVec
	voids             prometheus.Counter
	clears            prometheus.Counter
	reconciliations   *prometheus.CounterVec
	importRows        *prometheus.CounterVec
	accountDifference *prometheus.GaugeVec
	accountBalanced   *prometheus.GaugeVec
}

// NewCollector registers all metrics on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	f := promauto.With(registry)

	return &Collector{
		registry: registry,
		postings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_postings_total",
			Help: "Transaction postings by type and result",
		}, []string{"type", "result"}),
		postingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trust_posting_duration_seconds",
			Help:    "Time spent in the atomic posting unit of work",
			Buckets: prometheus.DefBuckets,
		}),
		insufficientFunds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_insufficient_funds_total",
			Help: "Rejected postings and reversals by the aggregate that would go negative",
		}, []string{"aggregate"}),
		voids: f.NewCounter(prometheus.CounterOpts{
			Name: "trust_voids_total",
			Help: "Voided transactions",
		}),
		clears: f.NewCounter(prometheus.CounterOpts{
			Name: "trust_cleared_transactions_total",
			Help: "Transactions marked cleared by the bank",
		}),
		reconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_reconciliations_total",
			Help: "Reconciliations by resulting status",
		}, []string{"status"}),
		importRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_import_rows_total",
			Help: "Bank statement rows by outcome",
		}, []string{"outcome"}),
		accountDifference: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trust_account_difference",
			Help: "Book balance minus client ledger total",
		}, []string{"trust_account_id"}),
		accountBalanced: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trust_account_balanced",
			Help: "1 when book balance equals the client ledger total",
		}, []string{"trust_account_id"}),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordPosting counts one posting attempt.
func (c *Collector) RecordPosting(txType, result string, d time.Duration) {
	if c == nil {
		return
	}
	c.postings.WithLabelValues(txType, result).Inc()
	c.postingDuration.Observe(d.Seconds())
}

// RecordInsufficientFunds counts an overdraft rejection.
func (c *Collector) RecordInsufficientFunds(aggregate string) {
	if c == nil {
		return
	}
	c.insufficientFunds.WithLabelValues(aggregate).Inc()
}

// RecordVoid counts a void.
func (c *Collector) RecordVoid() {
	if c == nil {
		return
	}
	c.voids.Inc()
}

// RecordCleared counts newly cleared transactions.
func (c *Collector) RecordCleared(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.clears.Add(float64(n))
}

// RecordReconciliation counts a reconciliation reaching status.
func (c *Collector) RecordReconciliation(status string) {
	if c == nil {
		return
	}
	c.reconciliations.WithLabelValues(status).Inc()
}

// RecordImport counts import rows by outcome.
func (c *Collector) RecordImport(matched, unmatched, errored int) {
	if c == nil {
		return
	}
	c.importRows.WithLabelValues("matched").Add(float64(matched))
	c.importRows.WithLabelValues("unmatched").Add(float64(unmatched))
	c.importRows.WithLabelValues("error").Add(float64(errored))
}

// SetAccountBalance publishes the three-way check for one account.
func (c *Collector) SetAccountBalance(accountID string, difference decimal.Decimal, balanced bool) {
	if c == nil {
		return
	}
	c.accountDifference.WithLabelValues(accountID).Set(difference.InexactFloat64())
	v := 0.0
	if balanced {
		v = 1
	}
	c.accountBalanced.WithLabelValues(accountID).Set(v)
}
