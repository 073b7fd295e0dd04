// Package metrics holds the prometheus collectors exported on the health
// port's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "script_archive"

var (
	// StoreOperationDuration observes ledger calls by backend and operation.
	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_operation_duration_seconds",
		Help:      "Latency of blob store operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "operation", "result"})

	// LifecycleOperations counts create/analyze/archive/reload/repair outcomes.
	LifecycleOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lifecycle_operations_total",
		Help:      "Lifecycle operations by action and result.",
	}, []string{"action", "result"})

	// AuthorizationDecisions counts ownership decisions.
	AuthorizationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_decisions_total",
		Help:      "Ownership policy decisions by action and decision.",
	}, []string{"action", "decision"})

	// AuthorizationDuration observes policy evaluation latency.
	AuthorizationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "authorization_duration_seconds",
		Help:      "Latency of ownership policy evaluation.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	}, []string{"action"})

	// DecodeFailures counts payloads that could not be decoded.
	DecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_failures_total",
		Help:      "Index or script payloads that failed to decode.",
	}, []string{"kind"})

	// IndexAnomalies counts missing blobs and orphaned scripts.
	IndexAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "index_anomalies_total",
		Help:      "Index entries without a blob, and blobs without an index entry.",
	}, []string{"kind"})

	// CollectionScripts reports the cached collection size by status.
	CollectionScripts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "collection_scripts",
		Help:      "Scripts in the last loaded collection by status.",
	}, []string{"status"})

	// CollectionVersion reports the version of the last loaded collection.
	CollectionVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "collection_version",
		Help:      "Version of the cached collection snapshot.",
	})
)

// Result maps an error to a metric label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
