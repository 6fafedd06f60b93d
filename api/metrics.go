package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/thisisjab/eventsearch/fault"
)

// Metrics holds the Prometheus metrics of the API server.
type Metrics struct {
	HTTPRequests    *prometheus.CounterVec
	CompileRequests *prometheus.CounterVec
	CompileDuration prometheus.Histogram
	Conditions      prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsearch_http_requests_total",
		Help: "Total HTTP requests by route and status code",
	}, []string{"route", "code"})

	compileRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsearch_compile_requests_total",
		Help: "Total compile requests by outcome",
	}, []string{"outcome"})

	compileDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventsearch_compile_duration_seconds",
		Help:    "Time spent compiling a query",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	conditions := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventsearch_compiled_conditions",
		Help:    "Number of top level conditions per compiled query",
		Buckets: prometheus.LinearBuckets(0, 2, 10),
	})

	reg.MustRegister(httpRequests, compileRequests, compileDuration, conditions)

	return &Metrics{
		HTTPRequests:    httpRequests,
		CompileRequests: compileRequests,
		CompileDuration: compileDuration,
		Conditions:      conditions,
	}
}

// outcome labels a compile result: ok or the fault code.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(fault.CodeOf(err))
}
