package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsProcessed tracks per-item drain outcomes.
	// Labels allow filtering by result (synced/error) and operation type.
	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkauto_sync_items_processed_total",
		Help: "Total number of queue items processed by the sync engine",
	}, []string{"result", "type"})

	// DrainDuration measures how long a full drain pass takes.
	DrainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkauto_sync_drain_duration_seconds",
		Help:    "Duration of a full queue drain in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// QueueBacklog tracks the number of queued operations after each drain.
	// This is the primary indicator of device lag behind the server.
	QueueBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkauto_sync_queue_backlog",
		Help: "Current number of pending operations in the sync queue",
	})

	// DrainsSkipped counts drain triggers that did not run, by reason
	// (already_running/offline).
	DrainsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkauto_sync_drains_skipped_total",
		Help: "Total number of drain triggers skipped without processing",
	}, []string{"reason"})
)
