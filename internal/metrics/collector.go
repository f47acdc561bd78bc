// Package metrics records Prometheus metrics for adapter calls and live chat sessions.
//
// Metrics:
//   - <ns>_adapter_requests_total: completed adapter calls by provider, api_type and outcome
//   - <ns>_adapter_request_duration_seconds: adapter call latency
//   - <ns>_sessions_active: chat sessions currently registered
//   - <ns>_sessions_created_total: chat sessions ever created
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"unifiedai/pkg/aitypes"
)

// Outcome labels.
const (
	OutcomeSuccess    = "success"
	OutcomeAuth       = "auth_error"
	OutcomeConnection = "connection_error"
	OutcomeTimeout    = "timeout"
	OutcomeConversion = "conversion_error"
	OutcomeOther      = "error"
)

// Config controls metric naming.
type Config struct {
	Namespace string

	// DurationBuckets override the latency histogram buckets (seconds)
	DurationBuckets []float64
}

// Collector owns the metric vectors. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	activeSessions prometheus.Gauge
	createdTotal   prometheus.Counter
}

// NewCollector creates and registers the metrics. A nil registry gets a fresh one.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "unifiedai"
	}
	if len(cfg.DurationBuckets) == 0 {
		// LLM round trips: 100ms to 60s
		cfg.DurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}
	}

	c := &Collector{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "adapter_requests_total",
				Help:      "Total adapter calls by provider, API type and outcome",
			},
			[]string{"provider", "api_type", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "adapter_request_duration_seconds",
				Help:      "Adapter call latency in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"provider", "api_type"},
		),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "sessions_active",
			Help:      "Chat sessions currently registered",
		}),
		createdTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "sessions_created_total",
			Help:      "Chat sessions created since start",
		}),
	}

	registry.MustRegister(c.requests, c.duration, c.activeSessions, c.createdTotal)
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordRequest records one adapter call.
func (c *Collector) RecordRequest(provider string, apiType aitypes.APIType, err error, duration time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(provider, string(apiType), Outcome(err)).Inc()
	c.duration.WithLabelValues(provider, string(apiType)).Observe(duration.Seconds())
}

// SessionOpened increments the live and created session counts.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.activeSessions.Inc()
	c.createdTotal.Inc()
}

// SessionClosed decrements the live session count.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.activeSessions.Dec()
}

// Outcome classifies err into an outcome label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var authErr *aitypes.AuthenticationError
	var connErr *aitypes.ConnectionError
	var convErr *aitypes.ResponseConversionError
	switch {
	case errors.As(err, &authErr):
		return OutcomeAuth
	case errors.As(err, &connErr):
		if connErr.Timeout {
			return OutcomeTimeout
		}
		return OutcomeConnection
	case errors.As(err, &convErr):
		return OutcomeConversion
	default:
		return OutcomeOther
	}
}
