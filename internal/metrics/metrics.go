// Package metrics provides Prometheus metrics for pulseboard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard service.
type Metrics struct {
	RefreshesTotal       *prometheus.CounterVec
	RefreshDuration      *prometheus.HistogramVec
	TaskPagesFetched     prometheus.Counter
	CommentFetchFailures prometheus.Counter
	ProjectsCurrent      prometheus.Gauge
	ErrorsTotal          *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulseboard_refreshes_total",
				Help: "Total refresh runs by scope and status.",
			},
			[]string{"scope", "status"},
		),
		RefreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulseboard_refresh_duration_seconds",
				Help:    "Refresh duration by scope.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scope"},
		),
		TaskPagesFetched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulseboard_task_pages_fetched_total",
				Help: "Total task-listing pages fetched from ClickUp.",
			},
		),
		CommentFetchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulseboard_comment_fetch_failures_total",
				Help: "Total best-effort comment fetches that returned nothing.",
			},
		),
		ProjectsCurrent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pulseboard_projects_current",
				Help: "Projects in the current aggregation result.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulseboard_errors_total",
				Help: "Total errors by component and type.",
			},
			[]string{"component", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RefreshesTotal)
	reg.MustRegister(m.RefreshDuration)
	reg.MustRegister(m.TaskPagesFetched)
	reg.MustRegister(m.CommentFetchFailures)
	reg.MustRegister(m.ProjectsCurrent)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRefresh increments the refresh counter.
func (m *Metrics) RecordRefresh(scope, status string) {
	m.RefreshesTotal.WithLabelValues(scope, status).Inc()
}

// ObserveRefreshDuration records one refresh duration.
func (m *Metrics) ObserveRefreshDuration(scope string, seconds float64) {
	m.RefreshDuration.WithLabelValues(scope).Observe(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, errType string) {
	m.ErrorsTotal.WithLabelValues(component, errType).Inc()
}
