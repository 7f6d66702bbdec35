// Package custompromauto holds the process wide metrics registry. Metrics are registered on a private registry so
// /metrics only exposes txledger's own series.
package custompromauto

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every txledger metric.
const Namespace = "txledger"

var (
	registry = prometheus.NewRegistry()
	auto     = promauto.With(registry)
)

// Auto returns a factory registering metrics on the private registry.
func Auto() promauto.Factory {
	return auto
}

// Handler serves the private registry, reporting collection errors in the response instead of failing the scrape.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
		Registry:      registry,
	})
}
