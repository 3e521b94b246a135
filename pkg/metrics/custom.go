package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "usdtinr"

var (
	RateLimitBlockTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_block_total",
			Help:      "Total number of rate limit blocks.",
		},
		[]string{"route"},
	)

	PanicRecoveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_panic_recovered_total",
			Help:      "HTTP handler panics recovered by route.",
		},
		[]string{"route"},
	)

	CBRejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_reject_total",
			Help:      "Total number of circuit breaker rejections.",
		},
		[]string{"name", "reason"},
	)

	CBState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_state",
			Help:      "Circuit breaker state (0=closed 1=half_open 2=open).",
		},
		[]string{"name"},
	)

	// 余额变更：op=lock/unlock/credit/debit，result=ok/insufficient/integrity/error
	MutationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_mutation_total",
			Help:      "Balance mutations by operation and result.",
		},
		[]string{"op", "result"},
	)

	IntegrityViolationTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_integrity_violation_total",
			Help:      "Mutations rolled back because a post-condition failed.",
		},
	)

	ReconcileCycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciler_cycle_total",
			Help:      "Deposit reconciler cycles by result.",
		},
		[]string{"result"}, // ok / skipped / stopped / error
	)

	ReconcileDepositTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciler_deposit_total",
			Help:      "Pending deposits processed by outcome.",
		},
		[]string{"outcome"},
	)

	IndexerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "indexer_request_duration_seconds",
			Help:      "Chain indexer request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms ~ 20s
		},
		[]string{"endpoint", "status"},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		RateLimitBlockTotal, PanicRecoveredTotal, CBRejectTotal, CBState,
		MutationTotal, IntegrityViolationTotal,
		ReconcileCycleTotal, ReconcileDepositTotal,
		IndexerRequestDuration,
	)
}
