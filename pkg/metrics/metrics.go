// Package metrics exposes the Prometheus registry shared by the exporter.
// All metrics are defined in their respective packages (client, pagination,
// ratelimit) via promauto and registered on the default registry.
//
// A run is a short-lived batch job, so metrics are not scraped. Instead the
// CLI writes the registry to a node_exporter textfile at the end of the run
// when metrics_file is configured.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer collects the metrics written by WriteTextfile.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes every registered metric to path in the text
// exposition format. The file is replaced atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - metafield_export_requests_total{operation, status} (Counter): Requests by operation and HTTP status
//   - metafield_export_request_duration_seconds{operation} (Histogram): Request duration by operation
//   - metafield_export_errors_total{class} (Counter): Errors by class (client, rate_limit, server, network)
//
// Retry Metrics (pkg/client):
//   - metafield_export_retries_total{state} (Counter): Retries by backoff state
//   - metafield_export_retry_backoff_seconds{state} (Histogram): Pause before each retry
//
// Collector Metrics (pkg/pagination):
//   - metafield_export_records_total{class} (Counter): Metafield records collected
//   - metafield_export_pages_total{class} (Counter): Listing pages processed
//
// Call Limit Metrics (pkg/ratelimit):
//   - metafield_export_call_limit_used (Gauge): Calls in the leaky bucket
//   - metafield_export_call_limit_size (Gauge): Bucket size
//   - metafield_export_call_limit_full_total (Counter): Responses observed with a full bucket
//
// Example Prometheus Queries:
//
//   # Records exported per class by the last run
//   metafield_export_records_total
//
//   # Share of calls that had to be retried
//   sum(metafield_export_retries_total) / sum(metafield_export_requests_total)
//
//   # Time spent pausing for rate limits
//   metafield_export_retry_backoff_seconds_sum{state="rate_limit_backoff"}
