package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the HTTP and authentication collectors
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	signIns      *prometheus.CounterVec
	gateDecision *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "axiom",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "axiom",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "route"},
		),
		signIns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "axiom",
				Subsystem: "siwe",
				Name:      "sign_ins_total",
				Help:      "SIWE sign-in attempts by outcome.",
			},
			[]string{"outcome"},
		),
		gateDecision: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "axiom",
				Subsystem: "siwe",
				Name:      "gate_decisions_total",
				Help:      "Session gate decisions on protected routes.",
			},
			[]string{"decision"},
		),
	}

	reg.MustRegister(m.requests, m.duration, m.signIns, m.gateDecision)
	return m
}

// Middleware records request counts and latency per route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) signIn(outcome string) {
	if m != nil {
		m.signIns.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) gate(decision string) {
	if m != nil {
		m.gateDecision.WithLabelValues(decision).Inc()
	}
}
