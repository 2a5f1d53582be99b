package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Engine operations
	// ============================================
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "untron_engine_operations_total",
			Help: "Total number of engine operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "untron_engine_operation_errors_total",
			Help: "Total number of failed engine operations by error name",
		},
		[]string{"operation", "error"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "untron_engine_operation_duration_seconds",
			Help:    "Engine operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ============================================
	// Claims and fills
	// ============================================
	ClaimsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "untron_engine_claims_created_total",
			Help: "Total number of claims enqueued",
		},
		[]string{"target_token", "origin"},
	)

	ClaimsFilled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "untron_engine_claims_filled_total",
			Help: "Total number of claims filled",
		},
		[]string{"target_token"},
	)

	ClaimsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "untron_engine_claims_dropped_total",
		Help: "Total number of claims dropped by lease nukes",
	})

	PendingClaims = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "untron_engine_pending_claims",
			Help: "Number of live claims waiting in a target token queue",
		},
		[]string{"target_token"},
	)

	// ============================================
	// Accounting
	// ============================================
	ProtocolPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "untron_engine_protocol_pnl",
		Help: "Protocol PnL in USDT base units (float approximation)",
	})

	FrontedLiquidity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "untron_engine_fronted_liquidity",
		Help: "Liquidity fronted to payouts and not yet rebalanced (float approximation)",
	})

	// ============================================
	// Event chains
	// ============================================
	HubEventSeq = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "untron_engine_hub_event_seq",
		Help: "Sequence number of the hub event chain head",
	})

	ControllerEventSeq = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "untron_engine_controller_event_seq",
		Help: "Last controller event sequence mirrored",
	})

	RelayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "untron_engine_relay_errors_total",
			Help: "Total number of controller relay errors",
		},
		[]string{"stage"},
	)

	// ============================================
	// Event dispatch
	// ============================================
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "untron_engine_events_dispatched_total",
			Help: "Total number of committed events handed to sinks",
		},
		[]string{"sink", "outcome"},
	)

	// ============================================
	// HTTP API
	// ============================================
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "untron_engine_http_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "untron_engine_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
