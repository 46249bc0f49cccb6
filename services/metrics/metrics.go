// Package metricsvc exposes prometheus metrics for the API client, the query cache and the portal.
package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/masomo-portal/core/query"
)

const namespace = "masomo"

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
	cacheLookup *prometheus.CounterVec
	pages       *prometheus.CounterVec
	pageLatency *prometheus.HistogramVec
}

var _ query.Observer = (*Metrics)(nil)

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Requests sent to the school backend.",
		}, []string{"code", "method"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests sent to the school backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
		cacheLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "lookups_total",
			Help:      "Query cache lookups by entity and result.",
		}, []string{"entity", "result"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portal",
			Name:      "requests_total",
			Help:      "Portal requests by route and status.",
		}, []string{"route", "method", "code"}),
		pageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "portal",
			Name:      "request_duration_seconds",
			Help:      "Portal request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiDuration, m.cacheLookup, m.pages, m.pageLatency,
	)
	return m
}

// Registry exposes the registry to tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RoundTripper instruments calls to the school backend; pass it to apisvc.WithRoundTripper.
func (m *Metrics) RoundTripper(next http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperCounter(m.apiRequests,
		promhttp.InstrumentRoundTripperDuration(m.apiDuration, next))
}

func (m *Metrics) CacheHit(key query.Key) {
	m.cacheLookup.WithLabelValues(key.Entity(), "hit").Inc()
}

func (m *Metrics) CacheMiss(key query.Key) {
	m.cacheLookup.WithLabelValues(key.Entity(), "miss").Inc()
}

// Middleware counts portal requests by route pattern, not raw path.
func (m *Metrics) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)

		code := ctx.Response().Status
		if herr, ok := err.(*echo.HTTPError); ok {
			code = herr.Code
		}
		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		m.pages.WithLabelValues(route, ctx.Request().Method, strconv.Itoa(code)).Inc()
		m.pageLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		return err
	}
}
