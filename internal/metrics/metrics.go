// Package metrics defines the Prometheus counters exposed on the
// optional observability listener: traffic capture outcomes, filter
// drops by stage, leaf-mint outcomes, and persistence errors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TrafficCaptured counts every Traffic record that finished the
	// filter chain, labeled filtered="true" when a stage dropped it and
	// filtered="false" when it passed every stage.
	TrafficCaptured = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ohm_traffic_captured_total",
		Help: "Traffic records that finished the filter chain, by outcome.",
	}, []string{"filtered"})

	// FilterDropped counts records dropped at each filter stage.
	FilterDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ohm_filter_dropped_total",
		Help: "Traffic records dropped by the filter chain, by stage.",
	}, []string{"stage"})

	// MintTotal counts leaf-certificate mint attempts by result.
	MintTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ohm_mint_total",
		Help: "Leaf certificate mint attempts, by result (hit, miss, error).",
	}, []string{"result"})

	// PersistErrors counts datastore failures by operation.
	PersistErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ohm_persist_errors_total",
		Help: "Datastore persistence failures, by operation (add_traffic, add_auth).",
	}, []string{"op"})
)

// registry is a dedicated Prometheus registry so the observability
// listener never shares state with prometheus.DefaultRegisterer.
var registry = func() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(TrafficCaptured, FilterDropped, MintTotal, PersistErrors)
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return reg
}()

// Handler returns the promhttp handler serving the package registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
