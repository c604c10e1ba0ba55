// Package metrics provides the Prometheus registry used by the coverage report.
// All metrics are defined in their respective packages (client, pagination,
// store) to maintain modularity and avoid circular dependencies.
//
// The report is a batch run, so nothing serves /metrics. WriteTextfile dumps
// the registry once the run ends, in the format read by node_exporter's
// textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the report.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics registered with Registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes every gathered metric to path. The file is written to
// a temporary name and renamed, so collectors never read a partial file.
func WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("metrics file path is required")
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - hapi_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - hapi_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - hapi_errors_total{class} (Counter): Errors by class (client, server, network)
//
// Pagination Metrics (pkg/pagination):
//   - hapi_pages_fetched_total (Counter): Pages decoded successfully
//   - hapi_records_fetched_total (Counter): Records read from all pages
//
// Store Metrics (pkg/store):
//   - hapi_store_writes_total{status} (Counter): Report writes by status (ok, error)
//   - hapi_store_bytes_total (Counter): Bytes of rendered reports written
//   - hapi_store_errors_total{operation} (Counter): Store operation errors
//
// Example Prometheus Queries:
//
//   # Records per page
//   hapi_records_fetched_total / hapi_pages_fetched_total
//
//   # Error Rate by class
//   sum by (class) (hapi_errors_total)
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(hapi_request_duration_seconds_bucket[1h]))
