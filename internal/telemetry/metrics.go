package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sensorhub"

// Метрики цикла опроса.
var (
	AcquisitionTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "acquisition",
		Name:      "ticks_total",
		Help:      "Total acquisition ticks completed",
	})

	AcquisitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "acquisition",
		Name:      "errors_total",
		Help:      "Transient sample acquisition errors by sensor address",
	}, []string{"sensor"})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "acquisition",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one acquisition tick including persistence",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	LastReading = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reading",
		Help:      "Latest reading per sensor and quantity",
	}, []string{"sensor", "quantity"})
)

// Метрики хранилища.
var (
	ReadingsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "readings_persisted_total",
		Help:      "Readings written to durable storage",
	})

	PersistErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "persist_errors_total",
		Help:      "Failed reading writes (sample lost from storage)",
	})

	PruneRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "prune_runs_total",
		Help:      "Retention sweeps by result",
	}, []string{"result"})

	PrunedRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "pruned_rows_total",
		Help:      "Reading rows removed by retention sweeps",
	})
)

// Метрики мультиплексора зрителей.
var (
	ViewersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "viewers",
		Name:      "connected",
		Help:      "Currently connected viewers",
	})

	ViewersAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "viewers",
		Name:      "accepted_total",
		Help:      "Viewer connections accepted into a slot",
	})

	ViewersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "viewers",
		Name:      "rejected_total",
		Help:      "Viewer connections rejected at capacity",
	})

	ViewersDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "viewers",
		Name:      "dropped_total",
		Help:      "Viewer slots torn down by reason",
	}, []string{"reason"})

	BroadcastSends = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "viewers",
		Name:      "broadcast_sends_total",
		Help:      "Envelopes delivered to viewer slots",
	})

	BroadcastsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "viewers",
		Name:      "broadcasts_coalesced_total",
		Help:      "Broadcasts replaced by a newer one before delivery",
	})
)

// Метрики зеркала снапшотов в RabbitMQ.
var (
	MirrorPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mirror",
		Name:      "publishes_total",
		Help:      "Snapshot publishes to RabbitMQ by result",
	}, []string{"result"})

	MirrorDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mirror",
		Name:      "deliveries_total",
		Help:      "Snapshot deliveries consumed from RabbitMQ by result",
	}, []string{"result"})
)

// Метрики HTTP API.
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method and status code",
	}, []string{"method", "code"})
)
