package sflow

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global-only Prometheus metrics for agent activity — no per-sample or
// per-key labels, to keep cardinality bounded regardless of how many
// distinct memcache keys a host samples.
var (
	samplesEncodedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sflow_samples_encoded_total",
		Help: "Total samples successfully encoded into a datagram buffer, by kind.",
	}, []string{"kind"})

	datagramsSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sflow_datagrams_sent_total",
		Help: "Total datagrams flushed to a collector.",
	})

	encodeErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sflow_encode_errors_total",
		Help: "Total rejected samples, by error kind.",
	}, []string{"kind"})

	flowDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sflow_flow_drops_total",
		Help: "Total events dropped before reaching the sampling decision (resource exhaustion, not sampling out).",
	})

	pollInvocationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sflow_poll_invocations_total",
		Help: "Total times a poller's get-counters callback was invoked.",
	})
)

var metricsRegistered bool

func registerMetricsOnce() {
	if metricsRegistered {
		return
	}
	prometheus.MustRegister(samplesEncodedTotal, datagramsSentTotal, encodeErrorsTotal, flowDropsTotal, pollInvocationsTotal)
	metricsRegistered = true
}

// EnableMetrics registers the package's Prometheus collectors and,
// if addr is non-empty, starts a dedicated HTTP server exposing /metrics.
// Safe to call once at process startup; calling it is entirely optional —
// an Agent with metrics never enabled behaves identically, just without
// the counters being registered.
func EnableMetrics(addr string) {
	registerMetricsOnce()
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
