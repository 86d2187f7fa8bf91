package ledger

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ledgerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zcoin",
			Name:      "ledger_operations_total",
			Help:      "Total ledger operations by type.",
		},
		[]string{"type"},
	)

	ledgerOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zcoin",
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"type"},
	)

	ledgerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zcoin",
			Name:      "ledger_rejections_total",
			Help:      "Ledger operations rejected, by reason.",
		},
		[]string{"reason"},
	)

	ledgerReplaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zcoin",
			Name:      "ledger_replays_total",
			Help:      "Idempotent replays answered from stored transactions.",
		},
	)
)

func init() {
	prometheus.MustRegister(ledgerOpsTotal, ledgerOpDuration, ledgerErrorsTotal, ledgerReplaysTotal)
}

func observeOp(opType string) func() {
	ledgerOpsTotal.WithLabelValues(opType).Inc()
	start := time.Now()
	return func() {
		ledgerOpDuration.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	}
}

func recordError(err error) {
	reason := "other"
	for _, known := range []error{ErrInsufficientFunds, ErrAccountBanned, ErrSelfTransfer, ErrIdempotencyConflict, ErrInvalidAmount} {
		if errors.Is(err, known) {
			reason = known.Error()
			break
		}
	}
	ledgerErrorsTotal.WithLabelValues(reason).Inc()
}
