package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "paissadb_worker_build_info",
			Help: "Build information of the PaissaDB worker",
		},
		[]string{"version", "commit", "date"},
	)

	ReconcilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paissadb_worker_reconciles_total",
			Help: "Total number of reconciled observations by outcome",
		},
		[]string{"outcome"}, // "first", "extended", "appended", "merged", "mismatch", "error"
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paissadb_worker_reconcile_duration_seconds",
			Help:    "Duration of single-observation reconciles in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4.1s
		},
	)

	PayloadsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paissadb_worker_payloads_expired_total",
			Help: "Total number of popped keys whose payload TTL elapsed before processing",
		},
	)

	LastSeenGateTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paissadb_worker_last_seen_gate_total",
			Help: "Total number of extends where the last_seen advance was suppressed",
		},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paissadb_worker_broadcasts_total",
			Help: "Total number of transition broadcasts published",
		},
		[]string{"type"}, // "plot_open", "plot_sold", "plot_update"
	)

	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paissadb_worker_queue_length",
			Help: "Number of keys waiting in the event queue",
		},
	)
)
