// Package metrics exposes crawl counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "review_scraper"

// Record type labels
const (
	RecordAirline = "airline"
	RecordReview  = "review"
)

// Page outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds the collectors for one crawl process
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched     *prometheus.CounterVec   // outcome, kind
	FetchDuration    *prometheus.HistogramVec // kind
	RecordsEmitted   *prometheus.CounterVec   // type
	SinkErrors       *prometheus.CounterVec   // sink, type
	ChainsTerminated *prometheus.CounterVec   // reason
	PageErrors       *prometheus.CounterVec   // category
}

// New creates the collectors and registers them, plus Go runtime collectors, on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PagesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "pages_total", Help: "Pages processed by outcome."},
			[]string{"outcome", "kind"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Name: "page_fetch_duration_seconds",
				Help:    "Page fetch duration seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		RecordsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "records_emitted_total", Help: "Records handed to the sink."},
			[]string{"type"},
		),
		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "sink_errors_total", Help: "Records the sink failed to persist."},
			[]string{"sink", "type"},
		),
		ChainsTerminated: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "chains_terminated_total", Help: "Airline chains finished, by reason."},
			[]string{"reason"},
		),
		PageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "page_errors_total", Help: "Page failures by error category."},
			[]string{"category"},
		),
	}
	m.registry.MustRegister(
		m.PagesFetched, m.FetchDuration, m.RecordsEmitted, m.SinkErrors, m.ChainsTerminated, m.PageErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the crawl collectors
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePage records one processed page
func (m *Metrics) ObservePage(outcome, kind string, dur time.Duration) {
	m.PagesFetched.WithLabelValues(outcome, kind).Inc()
	if dur > 0 {
		m.FetchDuration.WithLabelValues(kind).Observe(dur.Seconds())
	}
}

// ObservePageError records the category of a failed page
func (m *Metrics) ObservePageError(category string) {
	m.PageErrors.WithLabelValues(category).Inc()
}

// ObserveRecord records a record handed to the sink
func (m *Metrics) ObserveRecord(recordType string) {
	m.RecordsEmitted.WithLabelValues(recordType).Inc()
}

// ObserveSinkError records a record the sink rejected
func (m *Metrics) ObserveSinkError(sink, recordType string) {
	m.SinkErrors.WithLabelValues(sink, recordType).Inc()
}

// ObserveChainEnd records why an airline chain stopped
func (m *Metrics) ObserveChainEnd(reason string) {
	m.ChainsTerminated.WithLabelValues(reason).Inc()
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables it.
func (m *Metrics) Serve(ctx context.Context, addr string, log *logrus.Entry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.WithField("addr", addr).Info("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()
}
