// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	// Feed metrics
	FeedEventsProcessed *prometheus.CounterVec
	FeedReconnects      prometheus.Counter

	// Discovery metrics
	CandidatesTracked  prometheus.Gauge
	CandidatesFiltered *prometheus.CounterVec
	CandidatesExpired  prometheus.Counter

	// Audit metrics
	AuditsRun      prometheus.Counter
	AuditsFailed   prometheus.Counter
	AuditDuration  prometheus.Histogram

	// Admission metrics
	Graduated prometheus.Counter
	Blocked   *prometheus.CounterVec

	// Trading metrics
	OrdersFired     *prometheus.CounterVec
	OrdersExpired   prometheus.Counter
	TradesSubmitted *prometheus.CounterVec
	TradesConfirmed *prometheus.CounterVec
	TradesRetried   prometheus.Counter
	TradesAbandoned prometheus.Counter
	OpenPositions   prometheus.Gauge
	RealizedPnL     prometheus.Gauge

	// Whale metrics
	WhaleVetoes prometheus.Counter
	WhaleExits  prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_token_agent"
	}

	return &Metrics{
		FeedEventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_processed_total",
			Help:      "Total number of feed events processed",
		}, []string{"type"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of WebSocket reconnects",
		}),
		CandidatesTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_tracked",
			Help:      "Number of candidates currently under observation",
		}),
		CandidatesFiltered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_filtered_total",
			Help:      "Candidates rejected by the eligibility filter",
		}, []string{"rule"}),
		CandidatesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_expired_total",
			Help:      "Candidates removed by the inactivity reaper",
		}),
		AuditsRun: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "runs_total",
			Help:      "Total number of audits started",
		}),
		AuditsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "failures_total",
			Help:      "Audits invalidated by a probe failure",
		}),
		AuditDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "duration_seconds",
			Help:      "Audit wall time",
			Buckets:   prometheus.DefBuckets,
		}),
		Graduated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "graduated_total",
			Help:      "Candidates promoted to live trading",
		}),
		Blocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "blocked_total",
			Help:      "Candidates rejected at admission",
		}, []string{"reason"}),
		OrdersFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "orders_fired_total",
			Help:      "Conditional orders that fired",
		}, []string{"side"}),
		OrdersExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "orders_expired_total",
			Help:      "Conditional orders dropped past their max age",
		}),
		TradesSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_submitted_total",
			Help:      "Trade instructions submitted to the venue",
		}, []string{"side"}),
		TradesConfirmed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_confirmed_total",
			Help:      "Trades confirmed by signature match",
		}, []string{"side"}),
		TradesRetried: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_retried_total",
			Help:      "Trade submissions retried after confirmation timeout",
		}),
		TradesAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_abandoned_total",
			Help:      "Trades abandoned after exhausting retries or leaving the validity window",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "open_positions",
			Help:      "Positions with non-zero holdings",
		}),
		RealizedPnL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "realized_pnl_sol",
			Help:      "Cumulative realized PnL in SOL",
		}),
		WhaleVetoes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "whale",
			Name:      "entry_vetoes_total",
			Help:      "Entries vetoed by whale sell activity",
		}),
		WhaleExits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "whale",
			Name:      "exit_triggers_total",
			Help:      "Partial exits triggered by whale rules",
		}),
	}
}

// Handler returns an HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
