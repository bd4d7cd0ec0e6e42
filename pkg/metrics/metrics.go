// Package metrics exposes Prometheus collectors for the sync core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OpsAppended counts operations newly appended to the log.
	OpsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "obsync",
		Subsystem: "sync",
		Name:      "ops_appended_total",
		Help:      "Number of operations newly appended to the op log.",
	})

	// PushBatches counts processed push batches.
	PushBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "obsync",
		Subsystem: "sync",
		Name:      "push_batches_total",
		Help:      "Number of push batches processed.",
	})

	// PullRequests counts pull requests served.
	PullRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "obsync",
		Subsystem: "sync",
		Name:      "pull_requests_total",
		Help:      "Number of pull requests served.",
	})

	// RealtimeSubscribers tracks currently connected realtime subscriptions.
	RealtimeSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "obsync",
		Subsystem: "realtime",
		Name:      "subscribers",
		Help:      "Currently registered realtime subscriptions.",
	})

	// RealtimeDropped counts subscribers dropped for full send buffers.
	RealtimeDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "obsync",
		Subsystem: "realtime",
		Name:      "subscribers_dropped_total",
		Help:      "Subscriptions dropped because their send buffer was full.",
	})

	// ChunksWritten counts chunks persisted to the chunk store.
	ChunksWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "obsync",
		Subsystem: "blob",
		Name:      "chunks_written_total",
		Help:      "Chunks persisted to the chunk object store.",
	})

	// ChunkBytes counts bytes persisted to the chunk store.
	ChunkBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "obsync",
		Subsystem: "blob",
		Name:      "chunk_bytes_total",
		Help:      "Bytes persisted to the chunk object store.",
	})

	// BlobsCommitted counts blobs that passed the commit completeness check.
	BlobsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "obsync",
		Subsystem: "blob",
		Name:      "committed_total",
		Help:      "Blobs marked committed.",
	})
)

// Handler returns the Prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
