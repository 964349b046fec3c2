// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	ledgerOutcomes   *prometheus.CounterVec
	ledgerWriteFails prometheus.Counter
	skippedVolumes   prometheus.Counter
	summaryRows      prometheus.Gauge
	exportedJournals prometheus.Gauge
	recomputeSeconds prometheus.Histogram
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		ledgerOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compstat_ledger_outcomes_total",
			Help: "Reconciled metadata files by ledger status and match type",
		}, []string{"status", "matchtype"}),
		ledgerWriteFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compstat_ledger_write_errors_total",
			Help: "Ledger upserts that failed at the store",
		}),
		skippedVolumes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compstat_skipped_volumes_total",
			Help: "Volumes skipped during recompute because nothing was indexable",
		}),
		summaryRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compstat_summary_rows",
			Help: "Summary rows written by the last recompute",
		}),
		exportedJournals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compstat_exported_journals",
			Help: "Journals in the last completeness export",
		}),
		recomputeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compstat_recompute_duration_seconds",
			Help:    "Wall time of a full completeness recompute",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	registry.MustRegister(
		c.ledgerOutcomes,
		c.ledgerWriteFails,
		c.skippedVolumes,
		c.summaryRows,
		c.exportedJournals,
		c.recomputeSeconds,
		prometheus.NewGoCollector(),
	)
	return c
}

func (c *Collector) RecordLedgerOutcome(status, matchType string) {
	if c == nil {
		return
	}
	c.ledgerOutcomes.WithLabelValues(status, matchType).Inc()
}

func (c *Collector) RecordLedgerWriteError() {
	if c == nil {
		return
	}
	c.ledgerWriteFails.Inc()
}

func (c *Collector) RecordSkippedVolume() {
	if c == nil {
		return
	}
	c.skippedVolumes.Inc()
}

func (c *Collector) RecordRecompute(rows int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.summaryRows.Set(float64(rows))
	c.recomputeSeconds.Observe(elapsed.Seconds())
}

func (c *Collector) RecordExport(journals int) {
	if c == nil {
		return
	}
	c.exportedJournals.Set(float64(journals))
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
