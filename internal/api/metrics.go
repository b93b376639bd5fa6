package api

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the client-side Prometheus metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	UploadsTotal    *prometheus.CounterVec
	ExportsTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	HistoryRecords  prometheus.Gauge
	Authenticated   prometheus.Gauge
	RequestDuration *prometheus.HistogramVec
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// InitMetrics initializes global Prometheus metrics
func InitMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cheminsight_api_requests_total",
					Help: "Backend calls by intent and outcome",
				},
				[]string{"intent", "status"},
			),
			UploadsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cheminsight_uploads_total",
					Help: "Upload submissions by outcome",
				},
				[]string{"outcome"},
			),
			ExportsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cheminsight_exports_total",
					Help: "Saved reports and charts by kind",
				},
				[]string{"kind"},
			),
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cheminsight_errors_total",
					Help: "Errors by component",
				},
				[]string{"component", "type"},
			),
			HistoryRecords: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "cheminsight_history_records",
					Help: "Records currently held in the history cache",
				},
			),
			Authenticated: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "cheminsight_session_authenticated",
					Help: "1 while a session credential is stored",
				},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cheminsight_api_request_duration_seconds",
					Help:    "Backend call duration",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"intent"},
			),
		}
	})
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

func (m *Metrics) RecordRequest(intent, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(intent, status).Inc()
	m.RequestDuration.WithLabelValues(intent).Observe(seconds)
}

func (m *Metrics) RecordUpload(outcome string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordExport(kind string) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func (m *Metrics) SetHistoryRecords(count int) {
	if m == nil {
		return
	}
	m.HistoryRecords.Set(float64(count))
}

func (m *Metrics) SetAuthenticated(authenticated bool) {
	if m == nil {
		return
	}
	if authenticated {
		m.Authenticated.Set(1)
		return
	}
	m.Authenticated.Set(0)
}
