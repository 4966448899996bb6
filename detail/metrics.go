package detail

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meshsync/go-meshsync/metrics"
)

const namespace = "detail"

var (
	pruneLatency = metrics.NewHistogramWithBuckets(
		"prune_seconds",
		namespace,
		"prune time in seconds",
		[]string{"step"},
		prometheus.ExponentialBuckets(0.0001, 2, 12),
	)
	chunksLatency = pruneLatency.WithLabelValues("chunks")
	reseedLatency = pruneLatency.WithLabelValues("reseed")

	prunedChunks = metrics.NewCounter(
		"pruned_chunks",
		namespace,
		"number of raw detail chunks removed by age",
		[]string{},
	).WithLabelValues()
)
