package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region metrics

// Metrics holds the Prometheus instruments for the decision API.
type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	DeliveriesTotal     *prometheus.CounterVec
	FeedbackTotal       *prometheus.CounterVec
	StrategyWeight      *prometheus.GaugeVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers the metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			DecisionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "intervene_decisions_total",
					Help: "Decision pipeline runs by result and defer reason",
				},
				[]string{"result", "reason"},
			),
			DeliveriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "intervene_deliveries_total",
					Help: "Delivered interventions by strategy",
				},
				[]string{"strategy"},
			),
			FeedbackTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "intervene_feedback_total",
					Help: "Outcome feedback submissions by strategy",
				},
				[]string{"strategy"},
			),
			StrategyWeight: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "intervene_strategy_weight",
					Help: "Current learned weight per strategy",
				},
				[]string{"strategy"},
			),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "intervene_http_requests_total",
					Help: "HTTP requests by path, method and status",
				},
				[]string{"path", "method", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "intervene_http_request_duration_seconds",
					Help:    "HTTP request latency",
					Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
				},
				[]string{"path", "method"},
			),
		}
	})
	return sharedMetrics
}

// #endregion metrics

// #region middleware

// instrument records request counts and latency per route.
func (m *Metrics) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// #endregion middleware
