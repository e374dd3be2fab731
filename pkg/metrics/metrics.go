// Package metrics exposes the Prometheus registry used by the load-more
// packages. Collectors live next to the code that updates them (client,
// widget) and register themselves via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer the collectors are added to.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the matching gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - wp_requests_total{host, status} (Counter): Posts requests by host and HTTP status
//   - wp_request_duration_seconds{host} (Histogram): Posts request duration by host
//   - wp_errors_total{class} (Counter): Failures by class (client, server, unexpected, network, malformed)
//
// Widget Metrics (pkg/widget):
//   - loadmore_cycles_total{outcome} (Counter): Load cycles by outcome
//     (success, http_error, malformed, error, busy, render_error, insert_error)
//   - loadmore_records_rendered_total (Counter): Posts rendered into documents
//
// Example Prometheus Queries:
//
//   # Failed cycle ratio
//   sum(rate(loadmore_cycles_total{outcome!="success"}[5m])) / sum(rate(loadmore_cycles_total[5m]))
//
//   # Malformed upstream answers
//   rate(wp_errors_total{class="malformed"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(wp_request_duration_seconds_bucket[5m]))
//
//   # Posts per cycle
//   rate(loadmore_records_rendered_total[5m]) / rate(loadmore_cycles_total{outcome="success"}[5m])
